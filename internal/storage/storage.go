// Package storage defines the persistence boundary for car records.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/kjstillabower/vehicles-api/internal/models"
)

// ErrCarNotFound is returned when no record exists for the requested id.
var ErrCarNotFound = errors.New("car not found")

// Store persists cars. Implementations hold no business rules beyond the record invariants:
// ids are assigned on Insert and never change, Replace keeps CreatedAt and moves ModifiedAt
// strictly forward, Remove is terminal.
type Store interface {
	// Insert stores car under a newly assigned id and returns the stored record.
	Insert(ctx context.Context, car models.Car) (models.Car, error)
	// FindByID returns the record or ErrCarNotFound.
	FindByID(ctx context.Context, id int64) (models.Car, error)
	// FindAll returns every record ordered by id.
	FindAll(ctx context.Context) ([]models.Car, error)
	// Replace overwrites the mutable fields of the record with car.ID and returns it.
	Replace(ctx context.Context, car models.Car) (models.Car, error)
	// Remove deletes the record or returns ErrCarNotFound.
	Remove(ctx context.Context, id int64) error
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Timestamp normalizes t to the precision every backend can round-trip.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// NextModified returns want, or prev plus one microsecond when want does not advance past prev.
func NextModified(prev, want time.Time) time.Time {
	want = Timestamp(want)
	if !want.After(prev) {
		return Timestamp(prev).Add(time.Microsecond)
	}
	return want
}
