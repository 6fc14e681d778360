// Package cache stores resolved street addresses keyed by rounded coordinates.
// Prices are never cached: they are fetched fresh on every read.
package cache

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/kjstillabower/vehicles-api/internal/models"
)

// Cache defines the interface for address caching implementations.
// Get returns cached data if present and not expired, Set stores data with TTL.
type Cache interface {
	Get(ctx context.Context, key string) (models.Address, bool, error)
	Set(ctx context.Context, key string, value models.Address, ttl time.Duration) error
}

// Backend is a Cache with health and shutdown hooks.
type Backend interface {
	Cache
	Name() string
	Ping(ctx context.Context) error
	Close() error
}

// keyPrecision is the number of decimal places kept in a key (about 1.1m at the equator).
const keyPrecision = 5

// Key returns the cache key for a coordinate pair. Coordinates that round to the same
// five decimal places share an entry.
func Key(lat, lon float64) string {
	return fmt.Sprintf("%.*f,%.*f", keyPrecision, round(lat), keyPrecision, round(lon))
}

func round(v float64) float64 {
	const scale = 1e5
	r := math.Round(v*scale) / scale
	if r == 0 {
		return 0 // normalizes -0
	}
	return r
}

// InMemoryCache implements Cache using an in-memory map with TTL-based expiration.
// Expired entries are removed on access. Safe for concurrent use.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
}

type cacheEntry struct {
	value     models.Address
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
	}
}

// Get retrieves the cached address for the key if present and not expired.
// Returns (data, true, nil) on cache hit, (zero, false, nil) on miss or expiration.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.Address, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Address{}, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.data[key]
	if !ok {
		return models.Address{}, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.data, key)
		return models.Address{}, false, nil
	}
	return entry.value, true, nil
}

// Set stores an address with the specified TTL.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.Address, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Len returns the number of entries, including expired ones not yet evicted.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

func (c *InMemoryCache) Name() string { return "in_memory" }

func (c *InMemoryCache) Ping(ctx context.Context) error { return nil }

func (c *InMemoryCache) Close() error { return nil }
