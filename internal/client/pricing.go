package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/kjstillabower/vehicles-api/internal/models"
)

// PriceClient fetches the current price of a vehicle.
type PriceClient interface {
	GetPrice(ctx context.Context, vehicleID int64) (models.Price, error)
}

// PricingClient calls the pricing service: GET {url}?vehicleId={id}.
type PricingClient struct {
	up *upstream
}

// NewPricingClient creates a PricingClient.
func NewPricingClient(opts Options) (*PricingClient, error) {
	up, err := newUpstream("pricing", opts)
	if err != nil {
		return nil, err
	}
	return &PricingClient{up: up}, nil
}

// GetPrice returns the price for vehicleID. A 404 from the pricing service is ErrNotFound.
func (c *PricingClient) GetPrice(ctx context.Context, vehicleID int64) (models.Price, error) {
	params := url.Values{"vehicleId": {strconv.FormatInt(vehicleID, 10)}}
	var p models.Price
	if err := c.up.getJSON(ctx, params, &p); err != nil {
		return models.Price{}, fmt.Errorf("get price for vehicle %d: %w", vehicleID, err)
	}
	if p.Currency == "" {
		return models.Price{}, fmt.Errorf("get price for vehicle %d: %w: missing currency", vehicleID, ErrUpstreamFailure)
	}
	return p, nil
}
