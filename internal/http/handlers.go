package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/vehicles-api/internal/models"
	"github.com/kjstillabower/vehicles-api/internal/observability"
	"github.com/kjstillabower/vehicles-api/internal/storage"
	"github.com/kjstillabower/vehicles-api/internal/validation"
)

// maxBodyBytes caps request bodies on write endpoints.
const maxBodyBytes = 1 << 20

// CarService is the subset of service.VehicleService the car handlers need.
type CarService interface {
	Create(ctx context.Context, car models.Car) (models.Car, error)
	FindByID(ctx context.Context, id int64) (models.Car, error)
	List(ctx context.Context) ([]models.Car, error)
	Update(ctx context.Context, id int64, car models.Car) (models.Car, error)
	Delete(ctx context.Context, id int64) error
}

// CarHandler serves the /cars resource.
type CarHandler struct {
	cars CarService
}

// NewCarHandler returns a new CarHandler.
func NewCarHandler(cars CarService) *CarHandler {
	return &CarHandler{cars: cars}
}

// CreateCar handles POST /cars.
func (h *CarHandler) CreateCar(w http.ResponseWriter, r *http.Request) {
	car, ok := decodeCar(w, r)
	if !ok {
		return
	}
	created, err := h.cars.Create(r.Context(), car)
	if err != nil {
		writeCarError(w, r, err)
		return
	}
	w.Header().Set("Location", "/cars/"+strconv.FormatInt(created.ID, 10))
	writeJSON(w, http.StatusCreated, created)
}

// ListCars handles GET /cars.
func (h *CarHandler) ListCars(w http.ResponseWriter, r *http.Request) {
	cars, err := h.cars.List(r.Context())
	if err != nil {
		writeCarError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.CarList{Items: cars})
}

// GetCar handles GET /cars/{id}.
func (h *CarHandler) GetCar(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	car, err := h.cars.FindByID(r.Context(), id)
	if err != nil {
		writeCarError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, car)
}

// UpdateCar handles PUT /cars/{id}.
func (h *CarHandler) UpdateCar(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	car, ok := decodeCar(w, r)
	if !ok {
		return
	}
	updated, err := h.cars.Update(r.Context(), id, car)
	if err != nil {
		writeCarError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteCar handles DELETE /cars/{id}.
func (h *CarHandler) DeleteCar(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.cars.Delete(r.Context(), id); err != nil {
		writeCarError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := validation.ParseID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_ID", err.Error())
		return 0, false
	}
	return id, true
}

func decodeCar(w http.ResponseWriter, r *http.Request) (models.Car, bool) {
	var car models.Car
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&car); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
				"car body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return models.Car{}, false
		}
		writeError(w, r, http.StatusBadRequest, "INVALID_CAR", "malformed car body")
		return models.Car{}, false
	}
	return car, true
}

// writeCarError maps service errors onto the error envelope. Unexpected errors are
// logged at ERROR and reported as INTERNAL without detail.
func writeCarError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, validation.ErrInvalidCar):
		msg := err.Error()
		var verr *validation.Error
		if errors.As(err, &verr) {
			msg = verr.Error()
		}
		writeError(w, r, http.StatusBadRequest, "INVALID_CAR", msg)
	case errors.Is(err, validation.ErrInvalidID):
		writeError(w, r, http.StatusBadRequest, "INVALID_ID", err.Error())
	case errors.Is(err, storage.ErrCarNotFound):
		writeError(w, r, http.StatusNotFound, "CAR_NOT_FOUND", "car not found")
	default:
		observability.LoggerFromContext(r.Context()).Error("car request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationIDFromContext(r.Context()),
		},
	})
}
