package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/vehicles-api/internal/observability"
)

// RouterConfig is shared by both services' routers. A nil Limiter disables rate limiting;
// a zero RequestTimeout disables the per-request deadline.
type RouterConfig struct {
	Logger         *zap.Logger
	Limiter        *rate.Limiter
	RequestTimeout time.Duration
	Health         *HealthHandler
}

// NewVehiclesRouter builds the vehicles-api routes: /cars, /health and /metrics.
func NewVehiclesRouter(cars *CarHandler, cfg RouterConfig) *mux.Router {
	router := baseRouter(cfg)
	carRouter := apiSubrouter(router, "/cars", cfg)
	carRouter.HandleFunc("", cars.CreateCar).Methods(http.MethodPost)
	carRouter.HandleFunc("", cars.ListCars).Methods(http.MethodGet)
	carRouter.HandleFunc("/{id}", cars.GetCar).Methods(http.MethodGet)
	carRouter.HandleFunc("/{id}", cars.UpdateCar).Methods(http.MethodPut)
	carRouter.HandleFunc("/{id}", cars.DeleteCar).Methods(http.MethodDelete)
	return router
}

// NewPricingRouter builds the pricing-service routes: /services/price, /health and /metrics.
func NewPricingRouter(prices *PriceHandler, cfg RouterConfig) *mux.Router {
	router := baseRouter(cfg)
	apiSubrouter(router, "/services", cfg).HandleFunc("/price", prices.GetPrice).Methods(http.MethodGet)
	return router
}

func baseRouter(cfg RouterConfig) *mux.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	if cfg.Health != nil {
		router.HandleFunc("/health", cfg.Health.GetHealth).Methods(http.MethodGet)
	}
	router.Handle("/metrics", observability.MetricsHandler())
	return router
}

func apiSubrouter(router *mux.Router, prefix string, cfg RouterConfig) *mux.Router {
	sub := router.PathPrefix(prefix).Subrouter()
	sub.Use(RateLimitMiddleware(cfg.Limiter))
	if cfg.RequestTimeout > 0 {
		sub.Use(TimeoutMiddleware(cfg.RequestTimeout))
	}
	return sub
}
