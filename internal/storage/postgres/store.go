// Package postgres is a Store backed by PostgreSQL through pgxpool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kjstillabower/vehicles-api/internal/models"
	"github.com/kjstillabower/vehicles-api/internal/storage"
)

const (
	defaultConnTimeout = 5 * time.Second
	opTimeout          = 5 * time.Second
)

// CarStore persists cars in the cars table.
type CarStore struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, verifies the connection and applies pending migrations.
// maxConns <= 0 keeps the pgxpool default.
func Open(ctx context.Context, dsn string, maxConns int32) (*CarStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	s := &CarStore{pool: pool}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

const carColumns = `id, details, condition, lat, lon, created_at, modified_at`

func (s *CarStore) Insert(ctx context.Context, car models.Car) (models.Car, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	car = car.Stored()
	car.CreatedAt = storage.Timestamp(car.CreatedAt)
	car.ModifiedAt = storage.Timestamp(car.ModifiedAt)
	details, err := json.Marshal(car.Details)
	if err != nil {
		return models.Car{}, fmt.Errorf("encode details: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO cars (details, condition, lat, lon, created_at, modified_at)
		VALUES ($1::jsonb, $2, $3, $4, $5, $6)
		RETURNING id
	`, string(details), string(car.Condition), car.Location.Lat, car.Location.Lon, car.CreatedAt, car.ModifiedAt).Scan(&car.ID)
	if err != nil {
		return models.Car{}, fmt.Errorf("insert car: %w", err)
	}
	return car, nil
}

func (s *CarStore) FindByID(ctx context.Context, id int64) (models.Car, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	car, err := scanCar(s.pool.QueryRow(ctx, `SELECT `+carColumns+` FROM cars WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Car{}, storage.ErrCarNotFound
		}
		return models.Car{}, fmt.Errorf("select car %d: %w", id, err)
	}
	return car, nil
}

func (s *CarStore) FindAll(ctx context.Context) ([]models.Car, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT `+carColumns+` FROM cars ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select cars: %w", err)
	}
	defer rows.Close()

	cars := make([]models.Car, 0)
	for rows.Next() {
		car, err := scanCar(rows)
		if err != nil {
			return nil, fmt.Errorf("scan car: %w", err)
		}
		cars = append(cars, car)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cars: %w", err)
	}
	return cars, nil
}

// Replace updates in one statement; the row lock taken by UPDATE serializes concurrent
// replace and remove calls for the same id.
func (s *CarStore) Replace(ctx context.Context, car models.Car) (models.Car, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	car = car.Stored()
	details, err := json.Marshal(car.Details)
	if err != nil {
		return models.Car{}, fmt.Errorf("encode details: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		UPDATE cars
		SET details = $2::jsonb,
		    condition = $3,
		    lat = $4,
		    lon = $5,
		    modified_at = GREATEST($6, modified_at + INTERVAL '1 microsecond')
		WHERE id = $1
		RETURNING created_at, modified_at
	`, car.ID, string(details), string(car.Condition), car.Location.Lat, car.Location.Lon, storage.Timestamp(car.ModifiedAt)).
		Scan(&car.CreatedAt, &car.ModifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Car{}, storage.ErrCarNotFound
		}
		return models.Car{}, fmt.Errorf("update car %d: %w", car.ID, err)
	}
	car.CreatedAt = storage.Timestamp(car.CreatedAt)
	car.ModifiedAt = storage.Timestamp(car.ModifiedAt)
	return car, nil
}

func (s *CarStore) Remove(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `DELETE FROM cars WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete car %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrCarNotFound
	}
	return nil
}

func (s *CarStore) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("postgres store is not initialized")
	}
	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.pool.Ping(pingCtx)
}

func (s *CarStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func scanCar(row pgx.Row) (models.Car, error) {
	var (
		car       models.Car
		details   []byte
		condition string
	)
	if err := row.Scan(&car.ID, &details, &condition, &car.Location.Lat, &car.Location.Lon, &car.CreatedAt, &car.ModifiedAt); err != nil {
		return models.Car{}, err
	}
	if err := json.Unmarshal(details, &car.Details); err != nil {
		return models.Car{}, fmt.Errorf("decode details: %w", err)
	}
	car.Condition = models.Condition(condition)
	car.CreatedAt = storage.Timestamp(car.CreatedAt)
	car.ModifiedAt = storage.Timestamp(car.ModifiedAt)
	return car, nil
}

var _ storage.Store = (*CarStore)(nil)
