package http

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kjstillabower/vehicles-api/internal/models"
	"github.com/kjstillabower/vehicles-api/internal/observability"
	"github.com/kjstillabower/vehicles-api/internal/pricing"
	"github.com/kjstillabower/vehicles-api/internal/validation"
)

// PriceService looks up the current price of a vehicle.
type PriceService interface {
	GetPrice(ctx context.Context, vehicleID int64) (models.Price, error)
}

// PriceHandler serves the pricing-service lookup endpoint.
type PriceHandler struct {
	prices PriceService
}

// NewPriceHandler returns a new PriceHandler.
func NewPriceHandler(prices PriceService) *PriceHandler {
	return &PriceHandler{prices: prices}
}

// GetPrice handles GET /services/price?vehicleId={id}.
func (h *PriceHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ParseID(r.URL.Query().Get("vehicleId"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_VEHICLE_ID", "vehicleId must be a positive integer")
		return
	}
	price, err := h.prices.GetPrice(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, price)
	case errors.Is(err, pricing.ErrPriceNotFound):
		writeError(w, r, http.StatusNotFound, "PRICE_NOT_FOUND", "no price for vehicle")
	default:
		observability.LoggerFromContext(r.Context()).Error("price lookup failed",
			zap.Int64("vehicle_id", id),
			zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}
