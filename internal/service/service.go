// Package service implements vehicle CRUD with read-time price and address enrichment.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kjstillabower/vehicles-api/internal/client"
	"github.com/kjstillabower/vehicles-api/internal/degraded"
	"github.com/kjstillabower/vehicles-api/internal/events"
	"github.com/kjstillabower/vehicles-api/internal/models"
	"github.com/kjstillabower/vehicles-api/internal/observability"
	"github.com/kjstillabower/vehicles-api/internal/storage"
	"github.com/kjstillabower/vehicles-api/internal/validation"
)

// Options tunes enrichment and event publishing.
type Options struct {
	// EnrichmentTimeout bounds each price and address lookup.
	EnrichmentTimeout time.Duration
	// ListConcurrency caps how many cars are enriched at once by List.
	ListConcurrency int
	// PublishTimeout bounds each event publish.
	PublishTimeout time.Duration
}

// VehicleService orchestrates the car store, the pricing and maps clients and the
// event publisher.
type VehicleService struct {
	store     storage.Store
	prices    client.PriceClient
	locations client.LocationClient
	publisher events.Publisher
	opts      Options
	now       func() time.Time
}

// NewVehicleService creates a VehicleService. A nil publisher discards events.
func NewVehicleService(store storage.Store, prices client.PriceClient, locations client.LocationClient, publisher events.Publisher, opts Options) *VehicleService {
	if opts.EnrichmentTimeout <= 0 {
		opts.EnrichmentTimeout = 2 * time.Second
	}
	if opts.ListConcurrency <= 0 {
		opts.ListConcurrency = 8
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 2 * time.Second
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &VehicleService{
		store:     store,
		prices:    prices,
		locations: locations,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
	}
}

// Create validates and stores a new car. The returned car carries the assigned id and
// timestamps but no enrichment.
func (s *VehicleService) Create(ctx context.Context, car models.Car) (models.Car, error) {
	valid, err := validation.ValidateCar(car)
	if err != nil {
		observeOperation("create", err)
		return models.Car{}, err
	}
	now := s.now()
	valid.CreatedAt, valid.ModifiedAt = now, now
	stored, err := s.store.Insert(ctx, valid.Stored())
	observeOperation("create", err)
	if err != nil {
		return models.Car{}, fmt.Errorf("create car: %w", err)
	}
	observability.LoggerFromContext(ctx).Info("car created", zap.Int64("car_id", stored.ID))
	s.publish(ctx, events.CarCreated, stored)
	return stored, nil
}

// FindByID returns the enriched car or storage.ErrCarNotFound.
func (s *VehicleService) FindByID(ctx context.Context, id int64) (models.Car, error) {
	car, err := s.store.FindByID(ctx, id)
	observeOperation("find", err)
	if err != nil {
		return models.Car{}, fmt.Errorf("find car %d: %w", id, err)
	}
	return s.enrich(ctx, car), nil
}

// List returns every stored car ordered by id, each enriched.
func (s *VehicleService) List(ctx context.Context) ([]models.Car, error) {
	cars, err := s.store.FindAll(ctx)
	observeOperation("list", err)
	if err != nil {
		return nil, fmt.Errorf("list cars: %w", err)
	}
	var g errgroup.Group
	g.SetLimit(s.opts.ListConcurrency)
	for i := range cars {
		i := i
		g.Go(func() error {
			cars[i] = s.enrich(ctx, cars[i])
			return nil
		})
	}
	_ = g.Wait()
	if cars == nil {
		cars = []models.Car{}
	}
	return cars, nil
}

// Update replaces the mutable fields of car id. createdAt is kept and modifiedAt moves
// strictly forward.
func (s *VehicleService) Update(ctx context.Context, id int64, car models.Car) (models.Car, error) {
	valid, err := validation.ValidateCar(car)
	if err != nil {
		observeOperation("update", err)
		return models.Car{}, err
	}
	valid.ID = id
	valid.ModifiedAt = s.now()
	updated, err := s.store.Replace(ctx, valid.Stored())
	observeOperation("update", err)
	if err != nil {
		return models.Car{}, fmt.Errorf("update car %d: %w", id, err)
	}
	observability.LoggerFromContext(ctx).Info("car updated", zap.Int64("car_id", id))
	s.publish(ctx, events.CarUpdated, updated)
	return s.enrich(ctx, updated), nil
}

// Delete removes car id. Deleting an absent car returns storage.ErrCarNotFound.
func (s *VehicleService) Delete(ctx context.Context, id int64) error {
	err := s.store.Remove(ctx, id)
	observeOperation("delete", err)
	if err != nil {
		return fmt.Errorf("delete car %d: %w", id, err)
	}
	observability.LoggerFromContext(ctx).Info("car deleted", zap.Int64("car_id", id))
	s.publish(ctx, events.CarDeleted, models.Car{ID: id})
	return nil
}

// StoredLocations lists the coordinates of every stored car. Used to warm the address cache.
func (s *VehicleService) StoredLocations(ctx context.Context) ([]models.Location, error) {
	cars, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list car locations: %w", err)
	}
	out := make([]models.Location, 0, len(cars))
	for _, c := range cars {
		out = append(out, c.Location.Coordinates())
	}
	return out, nil
}

// enrich fills in price and address concurrently. A failed lookup leaves its field
// empty; enrich never fails the read. A car without a price is not counted as degraded.
func (s *VehicleService) enrich(ctx context.Context, car models.Car) models.Car {
	var (
		wg                sync.WaitGroup
		price             models.Price
		addr              models.Address
		priceErr, addrErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		lctx, cancel := context.WithTimeout(ctx, s.opts.EnrichmentTimeout)
		defer cancel()
		price, priceErr = s.prices.GetPrice(lctx, car.ID)
	}()
	go func() {
		defer wg.Done()
		lctx, cancel := context.WithTimeout(ctx, s.opts.EnrichmentTimeout)
		defer cancel()
		addr, addrErr = s.locations.Resolve(lctx, car.Location.Lat, car.Location.Lon)
	}()
	wg.Wait()

	car = car.Stored()
	// A vehicle the pricing service has no price for is a valid answer, not a failure.
	unpriced := errors.Is(priceErr, client.ErrNotFound)
	switch {
	case priceErr == nil:
		car.Price = price.String()
	case unpriced:
		observability.LoggerFromContext(ctx).Debug("car has no price", zap.Int64("car_id", car.ID))
	default:
		s.enrichmentFailed(ctx, car.ID, "price", priceErr)
	}
	if addrErr == nil {
		car.Location = car.Location.WithAddress(addr)
	} else {
		s.enrichmentFailed(ctx, car.ID, "address", addrErr)
	}
	if (priceErr == nil || unpriced) && addrErr == nil {
		degraded.RecordEnriched()
	} else {
		degraded.RecordEnrichmentFailure()
	}
	return car
}

func (s *VehicleService) enrichmentFailed(ctx context.Context, carID int64, field string, err error) {
	observability.EnrichmentFailuresTotal.WithLabelValues(field).Inc()
	observability.LoggerFromContext(ctx).Warn("enrichment failed",
		zap.Int64("car_id", carID),
		zap.String("field", field),
		zap.String("category", string(client.CategorizeError(err))),
		zap.Error(err),
	)
}

// publish sends the event detached from request cancellation; failures are logged and counted.
func (s *VehicleService) publish(ctx context.Context, t events.Type, car models.Car) {
	e := events.New(t, car, observability.CorrelationIDFromContext(ctx))
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PublishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pctx, e); err != nil {
		observability.EventsPublishedTotal.WithLabelValues(string(t), "error").Inc()
		observability.LoggerFromContext(ctx).Warn("event publish failed",
			zap.String("event_type", string(t)),
			zap.String("event_id", e.ID),
			zap.Int64("car_id", car.ID),
			zap.Error(err),
		)
		return
	}
	observability.EventsPublishedTotal.WithLabelValues(string(t), "published").Inc()
}

// observeOperation counts an operation by outcome.
func observeOperation(op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrCarNotFound):
		result = "not_found"
	case errors.Is(err, validation.ErrInvalidCar):
		result = "invalid"
	default:
		result = "error"
	}
	observability.CarOperationsTotal.WithLabelValues(op, result).Inc()
}
