package client

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kjstillabower/vehicles-api/internal/cache"
	"github.com/kjstillabower/vehicles-api/internal/models"
	"github.com/kjstillabower/vehicles-api/internal/observability"
)

// CachedLocationClient serves addresses from the cache and collapses concurrent misses
// for the same coordinates into one upstream call. Cache errors fall through to the
// upstream; they never fail a lookup.
type CachedLocationClient struct {
	next    LocationClient
	cache   cache.Cache
	backend string
	ttl     time.Duration
	group   singleflight.Group
}

// NewCachedLocationClient wraps next with c. backend labels cache metrics.
func NewCachedLocationClient(next LocationClient, c cache.Cache, backend string, ttl time.Duration) *CachedLocationClient {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedLocationClient{next: next, cache: c, backend: backend, ttl: ttl}
}

// Resolve returns the cached address for the rounded coordinates, or resolves and caches it.
func (c *CachedLocationClient) Resolve(ctx context.Context, lat, lon float64) (models.Address, error) {
	key := cache.Key(lat, lon)
	logger := observability.LoggerFromContext(ctx)

	addr, ok, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		observability.AddressCacheLookupsTotal.WithLabelValues(c.backend, "error").Inc()
		logger.Warn("address cache get failed", zap.String("key", key), zap.Error(err))
	case ok:
		observability.AddressCacheLookupsTotal.WithLabelValues(c.backend, "hit").Inc()
		return addr, nil
	default:
		observability.AddressCacheLookupsTotal.WithLabelValues(c.backend, "miss").Inc()
	}

	// Each caller waits on its own context. The shared lookup is detached from the leader.
	results := c.group.DoChan(key, func() (any, error) {
		callCtx := context.WithoutCancel(ctx)
		if deadline, ok := ctx.Deadline(); ok {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithDeadline(callCtx, deadline)
			defer cancel()
		}
		resolved, err := c.next.Resolve(callCtx, lat, lon)
		if err != nil {
			return models.Address{}, err
		}
		if err := c.cache.Set(callCtx, key, resolved, c.ttl); err != nil {
			logger.Warn("address cache set failed", zap.String("key", key), zap.Error(err))
		}
		return resolved, nil
	})
	select {
	case res := <-results:
		if res.Err != nil {
			return models.Address{}, res.Err
		}
		return res.Val.(models.Address), nil
	case <-ctx.Done():
		return models.Address{}, ctx.Err()
	}
}
