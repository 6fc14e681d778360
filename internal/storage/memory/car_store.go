// Package memory is an in-process Store for local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/kjstillabower/vehicles-api/internal/models"
	"github.com/kjstillabower/vehicles-api/internal/storage"
)

// CarStore keeps cars in a map. Reads share the lock; writes are serialized.
type CarStore struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]models.Car
}

// NewCarStore returns an empty store whose first id is 1.
func NewCarStore() *CarStore {
	return &CarStore{
		nextID: 1,
		items:  make(map[int64]models.Car),
	}
}

func (s *CarStore) Insert(ctx context.Context, car models.Car) (models.Car, error) {
	if err := ctx.Err(); err != nil {
		return models.Car{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	car = car.Stored()
	car.ID = s.nextID
	s.nextID++
	car.CreatedAt = storage.Timestamp(car.CreatedAt)
	car.ModifiedAt = storage.Timestamp(car.ModifiedAt)
	s.items[car.ID] = car
	return car, nil
}

func (s *CarStore) FindByID(ctx context.Context, id int64) (models.Car, error) {
	if err := ctx.Err(); err != nil {
		return models.Car{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	car, ok := s.items[id]
	if !ok {
		return models.Car{}, storage.ErrCarNotFound
	}
	return car, nil
}

func (s *CarStore) FindAll(ctx context.Context) ([]models.Car, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Car, 0, len(s.items))
	for _, car := range s.items {
		result = append(result, car)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *CarStore) Replace(ctx context.Context, car models.Car) (models.Car, error) {
	if err := ctx.Err(); err != nil {
		return models.Car{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.items[car.ID]
	if !ok {
		return models.Car{}, storage.ErrCarNotFound
	}
	car = car.Stored()
	car.CreatedAt = current.CreatedAt
	car.ModifiedAt = storage.NextModified(current.ModifiedAt, car.ModifiedAt)
	s.items[car.ID] = car
	return car, nil
}

func (s *CarStore) Remove(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return storage.ErrCarNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *CarStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *CarStore) Close() error {
	return nil
}

var _ storage.Store = (*CarStore)(nil)
