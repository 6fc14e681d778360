package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/vehicles-api/internal/degraded"
	"github.com/kjstillabower/vehicles-api/internal/lifecycle"
	"github.com/kjstillabower/vehicles-api/internal/overload"
)

// HealthCheck checks one dependency. A failing critical check makes the service degraded;
// a failing non-critical check is only reported.
type HealthCheck struct {
	Name     string
	Check    func(ctx context.Context) error
	Critical bool
}

// HealthConfig holds lifecycle thresholds for the health handler.
type HealthConfig struct {
	Service              string
	Version              string
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int // 0 when rate limiter disabled
	DegradedWindow       time.Duration
	DegradedErrorPct     int
	CheckTimeout         time.Duration
	Checks               []HealthCheck
}

// HealthHandler serves GET /health.
type HealthHandler struct {
	cfg    HealthConfig
	logger *zap.Logger
	now    func() time.Time

	statusMu   sync.Mutex
	statusPrev string
}

// NewHealthHandler returns a new HealthHandler.
func NewHealthHandler(cfg HealthConfig, logger *zap.Logger) *HealthHandler {
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = time.Second
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{cfg: cfg, logger: logger, now: time.Now}
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
	checks     map[string]string
}

// GetHealth handles GET /health.
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.statusMu.Lock()
	prev := h.statusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.statusPrev = result.status
	h.statusMu.Unlock()

	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   h.cfg.Service,
		"version":   h.cfg.Version,
		"checks":    result.checks,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > starting > overloaded > critical check failing > degraded > healthy.
// Dependency checks always run so the response reports every check.
func (h *HealthHandler) computeHealthStatus(ctx context.Context) healthResult {
	checks, criticalFailed := h.runChecks(ctx)
	res := func(status string, code int, reason string) healthResult {
		return healthResult{status: status, statusCode: code, reason: reason, checks: checks}
	}

	switch lifecycle.Current() {
	case lifecycle.PhaseShuttingDown:
		return res("shutting-down", http.StatusServiceUnavailable, "signal")
	case lifecycle.PhaseStarting:
		return res("starting", http.StatusServiceUnavailable, "not_ready")
	}
	if overload.IsOverloaded(h.cfg.OverloadWindow, h.cfg.RateLimitRPS, h.cfg.OverloadThresholdPct) {
		return res("overloaded", http.StatusServiceUnavailable, "overload_threshold")
	}
	if criticalFailed != "" {
		return res("degraded", http.StatusServiceUnavailable, criticalFailed+"_unhealthy")
	}
	if degraded.IsDegraded(h.cfg.DegradedWindow, h.cfg.DegradedErrorPct) {
		return res("degraded", http.StatusServiceUnavailable, "error_rate_breach")
	}
	return res("healthy", http.StatusOK, "")
}

// runChecks checks every dependency concurrently and returns the per-check status plus the
// name of the first failing critical check, in configuration order.
func (h *HealthHandler) runChecks(ctx context.Context) (map[string]string, string) {
	errs := make([]error, len(h.cfg.Checks))
	var wg sync.WaitGroup
	for i, c := range h.cfg.Checks {
		wg.Add(1)
		go func(i int, c HealthCheck) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, h.cfg.CheckTimeout)
			defer cancel()
			errs[i] = c.Check(cctx)
		}(i, c)
	}
	wg.Wait()

	checks := make(map[string]string, len(h.cfg.Checks))
	criticalFailed := ""
	for i, c := range h.cfg.Checks {
		if errs[i] == nil {
			checks[c.Name] = "healthy"
			continue
		}
		checks[c.Name] = "unhealthy"
		h.logger.Debug("health check failed", zap.String("check", c.Name), zap.Error(errs[i]))
		if c.Critical && criticalFailed == "" {
			criticalFailed = c.Name
		}
	}
	return checks, criticalFailed
}

