// Package pricing is the in-process price table behind the pricing service.
package pricing

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"github.com/kjstillabower/vehicles-api/internal/models"
	"github.com/kjstillabower/vehicles-api/internal/observability"
)

// ErrPriceNotFound is returned for vehicle ids with no price.
var ErrPriceNotFound = errors.New("price not found")

// Currency is the currency every seeded price is quoted in.
const Currency = "USD"

// Seeded prices fall in [minCents, maxCents).
const (
	minCents = 10_000_00
	maxCents = 50_000_00
)

// Service looks up prices by vehicle id. Safe for concurrent use.
type Service struct {
	mu     sync.RWMutex
	prices map[int64]models.Price
}

// NewService creates a Service holding a copy of prices.
func NewService(prices map[int64]models.Price) *Service {
	s := &Service{prices: make(map[int64]models.Price, len(prices))}
	for id, p := range prices {
		p.VehicleID = id
		s.prices[id] = p
	}
	return s
}

// NewSeededService creates a Service with a random USD price for each vehicle id in
// [1, vehicles]. rng may be nil.
func NewSeededService(vehicles int64, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	prices := make(map[int64]models.Price, vehicles)
	for id := int64(1); id <= vehicles; id++ {
		prices[id] = models.Price{Currency: Currency, Price: randomPrice(rng), VehicleID: id}
	}
	return NewService(prices)
}

// randomPrice returns a price with two decimals in [10000, 50000).
func randomPrice(rng *rand.Rand) float64 {
	cents := minCents + rng.Int63n(maxCents-minCents)
	return float64(cents) / 100
}

// GetPrice returns the price for vehicleID or ErrPriceNotFound.
func (s *Service) GetPrice(ctx context.Context, vehicleID int64) (models.Price, error) {
	if err := ctx.Err(); err != nil {
		return models.Price{}, err
	}
	s.mu.RLock()
	p, ok := s.prices[vehicleID]
	s.mu.RUnlock()
	if !ok {
		observability.PriceLookupsTotal.WithLabelValues("not_found").Inc()
		return models.Price{}, ErrPriceNotFound
	}
	observability.PriceLookupsTotal.WithLabelValues("found").Inc()
	return p, nil
}

// Len returns the number of priced vehicles.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.prices)
}
