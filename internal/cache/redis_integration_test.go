//go:build integration
// +build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func newTestRedis(t *testing.T) *RedisCache {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	c := NewRedisCache(RedisOptions{Addr: addr, Password: os.Getenv("REDIS_PASSWORD"), DialTimeout: time.Second})
	t.Cleanup(func() { _ = c.Close() })
	if err := c.Ping(context.Background()); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}
	return c
}

func TestRedisCache_GetSet_Integration(t *testing.T) {
	c := newTestRedis(t)
	ctx := context.Background()
	key := Key(40.730610, -73.935242)
	val := sampleAddress()

	if err := c.Set(ctx, key, val, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || got != val {
		t.Errorf("Get() = %+v, %v, want %+v, true", got, ok, val)
	}
}

func TestRedisCache_Expiry_Integration(t *testing.T) {
	c := newTestRedis(t)
	ctx := context.Background()
	key := Key(1.5, 2.5)

	if err := c.Set(ctx, key, sampleAddress(), 50*time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	_, ok, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true after expiry, want false")
	}
}
