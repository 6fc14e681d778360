package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/kjstillabower/vehicles-api/internal/models"
)

// LocationClient resolves coordinates to a street address.
type LocationClient interface {
	Resolve(ctx context.Context, lat, lon float64) (models.Address, error)
}

// MapsClient calls the maps service: GET {url}?lat={lat}&lon={lon}.
type MapsClient struct {
	up  *upstream
	now func() time.Time
}

// NewMapsClient creates a MapsClient.
func NewMapsClient(opts Options) (*MapsClient, error) {
	up, err := newUpstream("maps", opts)
	if err != nil {
		return nil, err
	}
	return &MapsClient{up: up, now: time.Now}, nil
}

// Resolve returns the address for the coordinates, stamped with the time it was resolved.
func (c *MapsClient) Resolve(ctx context.Context, lat, lon float64) (models.Address, error) {
	params := url.Values{
		"lat": {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon": {strconv.FormatFloat(lon, 'f', -1, 64)},
	}
	var addr models.Address
	if err := c.up.getJSON(ctx, params, &addr); err != nil {
		return models.Address{}, fmt.Errorf("resolve %v,%v: %w", lat, lon, err)
	}
	addr.ResolvedAt = c.now().UTC()
	return addr, nil
}
