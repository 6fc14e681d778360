package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kjstillabower/vehicles-api/internal/models"
)

// AddressResolver is implemented by the caching location client. Resolving through it
// populates the cache as a side effect, so the warmer never writes to the cache directly.
type AddressResolver interface {
	Resolve(ctx context.Context, lat, lon float64) (models.Address, error)
}

// LocationSource lists the coordinates worth warming, typically every stored car.
type LocationSource func(ctx context.Context) ([]models.Location, error)

// CacheWarmer pre-resolves addresses so the first reads after startup hit the cache.
type CacheWarmer struct {
	resolver    AddressResolver
	source      LocationSource
	concurrency int
	logger      *zap.Logger
}

// NewCacheWarmer creates a CacheWarmer. concurrency <= 0 means 4.
func NewCacheWarmer(resolver AddressResolver, source LocationSource, concurrency int, logger *zap.Logger) *CacheWarmer {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheWarmer{resolver: resolver, source: source, concurrency: concurrency, logger: logger}
}

// Warm resolves every distinct coordinate from the source. Returns the joined errors of
// failed lookups; a failed lookup does not stop the others.
func (w *CacheWarmer) Warm(ctx context.Context) error {
	start := time.Now()
	locations, err := w.source(ctx)
	if err != nil {
		return fmt.Errorf("cache warming: list locations: %w", err)
	}
	seen := make(map[string]struct{}, len(locations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	errCh := make(chan error, len(locations))
	for _, loc := range locations {
		key := Key(loc.Lat, loc.Lon)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		loc := loc
		g.Go(func() error {
			if _, err := w.resolver.Resolve(gctx, loc.Lat, loc.Lon); err != nil {
				errCh <- fmt.Errorf("warm %s: %w", key, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	w.logger.Info("address cache warming complete",
		zap.Int("locations", len(seen)),
		zap.Int("errors", len(errs)),
		zap.Float64("duration_seconds", time.Since(start).Seconds()),
	)
	if len(errs) > 0 {
		return fmt.Errorf("cache warming: %w", errors.Join(errs...))
	}
	return nil
}

// WarmPeriodic runs an initial Warm, then refreshes at the given interval until ctx is done.
func (w *CacheWarmer) WarmPeriodic(ctx context.Context, interval time.Duration) error {
	if err := w.Warm(ctx); err != nil {
		w.logger.Warn("initial cache warm failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx); err != nil {
				w.logger.Warn("periodic cache warm failed", zap.Error(err))
			}
		}
	}
}
