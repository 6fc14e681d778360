package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/vehicles-api/internal/cache"
	"github.com/kjstillabower/vehicles-api/internal/circuitbreaker"
	"github.com/kjstillabower/vehicles-api/internal/client"
	"github.com/kjstillabower/vehicles-api/internal/config"
	"github.com/kjstillabower/vehicles-api/internal/events"
	httphandler "github.com/kjstillabower/vehicles-api/internal/http"
	"github.com/kjstillabower/vehicles-api/internal/lifecycle"
	"github.com/kjstillabower/vehicles-api/internal/observability"
	"github.com/kjstillabower/vehicles-api/internal/service"
	"github.com/kjstillabower/vehicles-api/internal/storage"
	"github.com/kjstillabower/vehicles-api/internal/storage/memory"
	"github.com/kjstillabower/vehicles-api/internal/storage/postgres"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("storage", zap.Error(err))
	}

	pricingClient, err := client.NewPricingClient(upstreamOptions(cfg, cfg.PricingAPIURL, cfg.PricingAPITimeout, "pricing", logger))
	if err != nil {
		logger.Fatal("pricing client", zap.Error(err))
	}
	mapsClient, err := client.NewMapsClient(upstreamOptions(cfg, cfg.MapsAPIURL, cfg.MapsAPITimeout, "maps", logger))
	if err != nil {
		logger.Fatal("maps client", zap.Error(err))
	}

	addressCache, err := openCache(cfg, logger)
	if err != nil {
		logger.Fatal("address cache", zap.Error(err))
	}
	locations := client.NewCachedLocationClient(mapsClient, addressCache, addressCache.Name(), cfg.AddressCacheTTL)

	publisher := openPublisher(cfg, logger)

	vehicleService := service.NewVehicleService(store, pricingClient, locations, publisher, service.Options{
		EnrichmentTimeout: cfg.EnrichmentTimeout,
		ListConcurrency:   cfg.ListConcurrency,
		PublishTimeout:    cfg.PublishTimeout,
	})

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	observability.RegisterRateLimitGauges(cfg.OverloadWindow)

	health := httphandler.NewHealthHandler(httphandler.HealthConfig{
		Service:              "vehicles-api",
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		RateLimitRPS:         cfg.RateLimitRPS,
		DegradedWindow:       cfg.DegradedWindow,
		DegradedErrorPct:     cfg.DegradedErrorPct,
		CheckTimeout:         cfg.HealthCheckTimeout,
		Checks: []httphandler.HealthCheck{
			{Name: "storage", Check: store.Ping, Critical: true},
			{Name: "cache", Check: addressCache.Ping},
		},
	}, logger)

	router := httphandler.NewVehiclesRouter(httphandler.NewCarHandler(vehicleService), httphandler.RouterConfig{
		Logger:         logger,
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
		Health:         health,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.WarmCache {
		startCacheWarming(ctx, cfg, locations, vehicleService, logger)
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()
	lifecycle.MarkReady()

	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	observability.RecordShutdownInFlight(inFlight)
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := publisher.Close(); err != nil {
		logger.Error("event publisher close", zap.Error(err))
	}
	if err := addressCache.Close(); err != nil {
		logger.Error("cache close", zap.Error(err))
	}
	if err := store.Close(); err != nil {
		logger.Error("storage close", zap.Error(err))
	}
	logger.Info("shutdown complete")

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry flush: %v\n", err)
	}
}

func openStore(cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	switch cfg.StorageBackend {
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		store, err := postgres.Open(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			return nil, err
		}
		logger.Info("storage backend: postgres", zap.Int32("max_conns", cfg.PostgresMaxConns))
		return store, nil
	default:
		logger.Info("storage backend: memory")
		return memory.NewCarStore(), nil
	}
}

func openCache(cfg *config.Config, logger *zap.Logger) (cache.Backend, error) {
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return nil, err
		}
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
		return mc, nil
	case "redis":
		rc := cache.NewRedisCache(cache.RedisOptions{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  cfg.RedisTimeout,
			ReadTimeout:  cfg.RedisTimeout,
			WriteTimeout: cfg.RedisTimeout,
			PoolSize:     cfg.RedisPoolSize,
		})
		logger.Info("cache backend: redis", zap.String("addr", cfg.RedisAddr), zap.Int("db", cfg.RedisDB))
		return rc, nil
	default:
		logger.Info("cache backend: in_memory")
		return cache.NewInMemoryCache(), nil
	}
}

// openPublisher returns the configured event publisher. An unreachable broker at startup
// is logged; the publisher redials on the next publish.
func openPublisher(cfg *config.Config, logger *zap.Logger) events.Publisher {
	if cfg.EventsBackend != "rabbitmq" {
		logger.Info("events backend: none")
		return events.NoopPublisher{}
	}
	p := events.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.EventsExchange, logger)
	if err := p.Connect(); err != nil {
		logger.Warn("rabbitmq connect failed; will retry on publish", zap.Error(err))
	} else {
		logger.Info("events backend: rabbitmq", zap.String("exchange", cfg.EventsExchange))
	}
	return p
}

func upstreamOptions(cfg *config.Config, url string, timeout time.Duration, name string, logger *zap.Logger) client.Options {
	opts := client.Options{
		URL:            url,
		Timeout:        timeout,
		RetryAttempts:  cfg.RetryAttempts,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RetryMaxDelay:  cfg.RetryMaxDelay,
	}
	if cfg.CircuitBreakerEnabled {
		opts.Breaker = circuitbreaker.New(circuitbreaker.Config{
			Name:             name,
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			IsFailure:        client.IsBreakerFailure,
			OnStateChange: func(upstream string, from, to circuitbreaker.State) {
				observability.RecordCircuitBreakerTransition(upstream, from.String(), to.String(), int(to))
				logger.Warn("circuit breaker state change",
					zap.String("upstream", upstream),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
		observability.CircuitBreakerState.WithLabelValues(name).Set(0)
		logger.Info("circuit breaker enabled",
			zap.String("upstream", name),
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}
	return opts
}

// startCacheWarming warms the address cache from stored cars once, then every WarmInterval
// until ctx is cancelled.
func startCacheWarming(ctx context.Context, cfg *config.Config, resolver cache.AddressResolver, vehicles *service.VehicleService, logger *zap.Logger) {
	warmer := cache.NewCacheWarmer(resolver, vehicles.StoredLocations, cfg.WarmConcurrency, logger)
	warmCtx, warmCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := warmer.Warm(warmCtx); err != nil {
		logger.Warn("cache warming failed", zap.Error(err))
	}
	warmCancel()
	if cfg.WarmInterval <= 0 {
		return
	}
	go func() {
		if err := warmer.WarmPeriodic(ctx, cfg.WarmInterval); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("periodic cache warming stopped", zap.Error(err))
		}
	}()
}
