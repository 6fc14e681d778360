//go:build integration
// +build integration

package testhelpers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kjstillabower/vehicles-api/internal/cache"
	"github.com/kjstillabower/vehicles-api/internal/client"
	"github.com/kjstillabower/vehicles-api/internal/events"
	"github.com/kjstillabower/vehicles-api/internal/observability"
	"github.com/kjstillabower/vehicles-api/internal/service"
	"github.com/kjstillabower/vehicles-api/internal/storage/postgres"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	PostgresDSN    string
	CacheBackend   string // "in_memory", "memcached" or "redis"
	MemcachedAddrs string
	RedisAddr      string
	RabbitMQURL    string // empty disables event publishing
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test if POSTGRES_TEST_DSN is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set, skipping integration test")
	}
	memcachedAddrs := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddrs == "" {
		memcachedAddrs = "localhost:11211"
	}
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	return IntegrationTestConfig{
		PostgresDSN:    dsn,
		CacheBackend:   os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddrs: memcachedAddrs,
		RedisAddr:      redisAddr,
		RabbitMQURL:    os.Getenv("RABBITMQ_URL"),
	}
}

// IntegrationStack is a VehicleService wired to real backing services.
type IntegrationStack struct {
	Service *service.VehicleService
	Cache   cache.Backend
	Store   *postgres.CarStore
}

// SetupIntegrationService wires a VehicleService to postgres, the configured address cache
// and, when configured, RabbitMQ. pricing and maps are the upstream handlers to serve over
// httptest. Everything is closed via t.Cleanup.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig, pricing, maps http.Handler) IntegrationStack {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger, err := observability.NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN, 4)
	if err != nil {
		t.Skipf("postgres not reachable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := TruncateCars(ctx, cfg.PostgresDSN); err != nil {
		t.Fatalf("truncate cars: %v", err)
	}

	backend := setupCache(t, cfg)
	t.Cleanup(func() { _ = backend.Close() })

	pricingSrv := httptest.NewServer(pricing)
	t.Cleanup(pricingSrv.Close)
	mapsSrv := httptest.NewServer(maps)
	t.Cleanup(mapsSrv.Close)

	priceClient, err := client.NewPricingClient(client.Options{URL: pricingSrv.URL + "/services/price", Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewPricingClient() error = %v", err)
	}
	mapsClient, err := client.NewMapsClient(client.Options{URL: mapsSrv.URL, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewMapsClient() error = %v", err)
	}
	locations := client.NewCachedLocationClient(mapsClient, backend, backend.Name(), time.Minute)

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.RabbitMQURL != "" {
		rp := events.NewRabbitMQPublisher(cfg.RabbitMQURL, events.DefaultExchange, logger)
		if err := rp.Connect(); err != nil {
			t.Logf("RabbitMQ not available (%v), events disabled", err)
		} else {
			publisher = rp
			t.Cleanup(func() { _ = rp.Close() })
		}
	}

	svc := service.NewVehicleService(store, priceClient, locations, publisher, service.Options{})
	return IntegrationStack{Service: svc, Cache: backend, Store: store}
}

// setupCache returns the configured cache backend, falling back to in-memory when the
// configured one is unreachable.
func setupCache(t *testing.T, cfg IntegrationTestConfig) cache.Backend {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, 500*time.Millisecond, 2)
		if err == nil {
			err = mc.Ping(ctx)
		}
		if err == nil {
			t.Logf("Using Memcached cache at %s", cfg.MemcachedAddrs)
			return mc
		}
		t.Logf("Memcached not available (%v), using in-memory cache", err)
	case "redis":
		rc := cache.NewRedisCache(cache.RedisOptions{Addr: cfg.RedisAddr, Password: os.Getenv("REDIS_PASSWORD"), DialTimeout: time.Second})
		err := rc.Ping(ctx)
		if err == nil {
			t.Logf("Using Redis cache at %s", cfg.RedisAddr)
			return rc
		}
		t.Logf("Redis not available (%v), using in-memory cache", err)
		_ = rc.Close()
	}
	return cache.NewInMemoryCache()
}

// TruncateCars empties the cars table and resets its id sequence so ids start at 1.
func TruncateCars(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, `TRUNCATE cars RESTART IDENTITY`)
	return err
}
