package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds configuration for both vehicles-api and pricing-service, loaded from YAML and env.
type Config struct {
	ServerPort string

	PricingServicePort  string
	PricingSeedVehicles int64
	PricingSeed         int64 // 0 seeds from the clock

	PricingAPIURL     string
	PricingAPITimeout time.Duration
	MapsAPIURL        string
	MapsAPITimeout    time.Duration

	EnrichmentTimeout time.Duration
	ListConcurrency   int

	RequestTimeout time.Duration

	StorageBackend   string // "memory" or "postgres"
	PostgresDSN      string
	PostgresMaxConns int32

	CacheBackend    string // "in_memory", "memcached" or "redis"
	AddressCacheTTL time.Duration

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTimeout  time.Duration
	RedisPoolSize int

	WarmCache       bool
	WarmInterval    time.Duration
	WarmConcurrency int

	EventsBackend  string // "none" or "rabbitmq"
	RabbitMQURL    string
	EventsExchange string
	PublishTimeout time.Duration

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	OverloadWindow       time.Duration
	OverloadThresholdPct int
	DegradedWindow       time.Duration
	DegradedErrorPct     int
	HealthCheckTimeout   time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	PricingService struct {
		Port         string `yaml:"port"`
		SeedVehicles int64  `yaml:"seed_vehicles"`
		Seed         int64  `yaml:"seed"`
	} `yaml:"pricing_service"`

	PricingAPI upstreamConfig `yaml:"pricing_api"`
	MapsAPI    upstreamConfig `yaml:"maps_api"`

	Enrichment struct {
		Timeout         string `yaml:"timeout"`
		ListConcurrency int    `yaml:"list_concurrency"`
	} `yaml:"enrichment"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Storage struct {
		Backend  string `yaml:"backend"`
		MaxConns int32  `yaml:"max_conns"`
	} `yaml:"storage"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Redis struct {
			Addr     string `yaml:"addr"`
			DB       int    `yaml:"db"`
			Timeout  string `yaml:"timeout"`
			PoolSize int    `yaml:"pool_size"`
		} `yaml:"redis"`
		Warm            bool   `yaml:"warm"`
		WarmInterval    string `yaml:"warm_interval"`
		WarmConcurrency int    `yaml:"warm_concurrency"`
	} `yaml:"cache"`

	Events struct {
		Backend        string `yaml:"backend"`
		Exchange       string `yaml:"exchange"`
		PublishTimeout string `yaml:"publish_timeout"`
	} `yaml:"events"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	CircuitBreaker struct {
		Enabled          *bool  `yaml:"enabled"`
		FailureThreshold int    `yaml:"failure_threshold"`
		SuccessThreshold int    `yaml:"success_threshold"`
		Timeout          string `yaml:"timeout"`
	} `yaml:"circuit_breaker"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		OverloadWindow       string `yaml:"overload_window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
		DegradedWindow       string `yaml:"degraded_window"`
		DegradedErrorPct     int    `yaml:"degraded_error_pct"`
		HealthCheckTimeout   string `yaml:"health_check_timeout"`
	} `yaml:"lifecycle"`
}

type upstreamConfig struct {
	URL     string `yaml:"url"`
	Timeout string `yaml:"timeout"`
}

type secretsFile struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	RabbitMQURL   string `yaml:"rabbitmq_url"`
	RedisPassword string `yaml:"redis_password"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml.
// Secrets come from POSTGRES_DSN, RABBITMQ_URL and REDIS_PASSWORD env or the secrets file;
// env wins. Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	sec, err := loadSecrets(filepath.Join(cwd, "config", "secrets.yaml"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	cfg.ServerPort = orDefault(fc.Server.Port, "8080")
	cfg.PricingServicePort = orDefault(fc.PricingService.Port, "8082")
	cfg.PricingSeedVehicles = fc.PricingService.SeedVehicles
	if cfg.PricingSeedVehicles <= 0 {
		cfg.PricingSeedVehicles = 19
	}
	cfg.PricingSeed = fc.PricingService.Seed

	cfg.PricingAPIURL = orDefault(strings.TrimSpace(os.Getenv("PRICING_API_URL")), fc.PricingAPI.URL, "http://localhost:8082/services/price")
	cfg.PricingAPITimeout = parseDurationOrZero(fc.PricingAPI.Timeout, 2*time.Second)
	cfg.MapsAPIURL = orDefault(strings.TrimSpace(os.Getenv("MAPS_API_URL")), fc.MapsAPI.URL, "http://localhost:9191/maps")
	cfg.MapsAPITimeout = parseDurationOrZero(fc.MapsAPI.Timeout, 2*time.Second)

	cfg.EnrichmentTimeout = parseDuration(fc.Enrichment.Timeout, 2*time.Second)
	cfg.ListConcurrency = fc.Enrichment.ListConcurrency
	if cfg.ListConcurrency <= 0 {
		cfg.ListConcurrency = 8
	}

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)

	cfg.StorageBackend = normalize(orDefault(os.Getenv("STORAGE_BACKEND"), fc.Storage.Backend, "memory"))
	cfg.PostgresDSN = orDefault(strings.TrimSpace(os.Getenv("POSTGRES_DSN")), sec.PostgresDSN)
	cfg.PostgresMaxConns = fc.Storage.MaxConns
	if cfg.PostgresMaxConns <= 0 {
		cfg.PostgresMaxConns = 10
	}

	cfg.CacheBackend = normalize(orDefault(os.Getenv("CACHE_BACKEND"), fc.Cache.Backend, "in_memory"))
	cfg.AddressCacheTTL = parseDuration(fc.Cache.TTL, time.Hour)
	cfg.MemcachedAddrs = orDefault(strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS")), strings.TrimSpace(fc.Cache.Memcached.Addrs), "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}
	cfg.RedisAddr = orDefault(strings.TrimSpace(os.Getenv("REDIS_ADDR")), strings.TrimSpace(fc.Cache.Redis.Addr), "localhost:6379")
	cfg.RedisPassword = orDefault(os.Getenv("REDIS_PASSWORD"), sec.RedisPassword)
	cfg.RedisDB = fc.Cache.Redis.DB
	cfg.RedisTimeout = parseDuration(fc.Cache.Redis.Timeout, 500*time.Millisecond)
	cfg.RedisPoolSize = fc.Cache.Redis.PoolSize
	if cfg.RedisPoolSize <= 0 {
		cfg.RedisPoolSize = 10
	}
	cfg.WarmCache = fc.Cache.Warm
	cfg.WarmInterval = parseDurationOrZero(fc.Cache.WarmInterval, 0)
	cfg.WarmConcurrency = fc.Cache.WarmConcurrency
	if cfg.WarmConcurrency <= 0 {
		cfg.WarmConcurrency = 4
	}

	cfg.EventsBackend = normalize(orDefault(os.Getenv("EVENTS_BACKEND"), fc.Events.Backend, "none"))
	cfg.RabbitMQURL = orDefault(strings.TrimSpace(os.Getenv("RABBITMQ_URL")), sec.RabbitMQURL)
	cfg.EventsExchange = orDefault(fc.Events.Exchange, "vehicles.cars")
	cfg.PublishTimeout = parseDuration(fc.Events.PublishTimeout, 2*time.Second)

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 2
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cfg.CircuitBreakerEnabled = true
	if fc.CircuitBreaker.Enabled != nil {
		cfg.CircuitBreakerEnabled = *fc.CircuitBreaker.Enabled
	}
	cfg.CircuitBreakerFailureThreshold = fc.CircuitBreaker.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = fc.CircuitBreaker.SuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 2
	}
	cfg.CircuitBreakerTimeout = parseDuration(fc.CircuitBreaker.Timeout, 30*time.Second)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.OverloadWindow = parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Lifecycle.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}
	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}
	cfg.HealthCheckTimeout = parseDuration(fc.Lifecycle.HealthCheckTimeout, time.Second)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadSecrets reads the optional secrets file. A missing file yields empty secrets.
func loadSecrets(path string) (secretsFile, error) {
	var sec secretsFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sec, nil
		}
		return sec, fmt.Errorf("read secrets file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return sec, fmt.Errorf("parse secrets file: %w", err)
	}
	return sec, nil
}

// orDefault returns the first non-blank value.
func orDefault(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func normalize(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate checks backends and secrets, and raises RequestTimeout above the slowest
// upstream or enrichment timeout.
func validate(cfg *Config) error {
	if cfg.PricingAPITimeout <= 0 {
		return fmt.Errorf("pricing_api.timeout must be positive")
	}
	if cfg.MapsAPITimeout <= 0 {
		return fmt.Errorf("maps_api.timeout must be positive")
	}
	slowest := cfg.PricingAPITimeout
	for _, d := range []time.Duration{cfg.MapsAPITimeout, cfg.EnrichmentTimeout} {
		if d > slowest {
			slowest = d
		}
	}
	if cfg.RequestTimeout <= slowest {
		cfg.RequestTimeout = slowest + time.Second
	}

	switch cfg.StorageBackend {
	case "memory":
	case "postgres":
		if cfg.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN required for storage.backend postgres (set env or config/secrets.yaml postgres_dsn)")
		}
	default:
		return fmt.Errorf("storage.backend must be memory or postgres, got %q", cfg.StorageBackend)
	}

	switch cfg.CacheBackend {
	case "in_memory", "memcached", "redis":
	default:
		return fmt.Errorf("cache.backend must be in_memory, memcached or redis, got %q", cfg.CacheBackend)
	}

	switch cfg.EventsBackend {
	case "none":
	case "rabbitmq":
		if cfg.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL required for events.backend rabbitmq (set env or config/secrets.yaml rabbitmq_url)")
		}
	default:
		return fmt.Errorf("events.backend must be none or rabbitmq, got %q", cfg.EventsBackend)
	}
	return nil
}
