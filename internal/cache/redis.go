package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kjstillabower/vehicles-api/internal/models"
)

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// RedisCache implements Backend using Redis string keys with native expiry.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a RedisCache. The connection is not checked; call Ping.
func NewRedisCache(opts RedisOptions) *RedisCache {
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	return &RedisCache{client: redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
	})}
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get implements Cache.Get. redis.Nil is a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (models.Address, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Address{}, false, nil
		}
		return models.Address{}, false, fmt.Errorf("redis get: %w", err)
	}
	var addr models.Address
	if err := json.Unmarshal(raw, &addr); err != nil {
		return models.Address{}, false, fmt.Errorf("redis decode: %w", err)
	}
	return addr, true, nil
}

// Set implements Cache.Set.
func (c *RedisCache) Set(ctx context.Context, key string, value models.Address, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("redis encode: %w", err)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if err := c.client.Set(ctx, keyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Name() string { return "redis" }

// Ping checks if Redis is reachable. Used for health checks.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
