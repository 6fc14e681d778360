package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestMetrics_Usable verifies that all Prometheus metrics can be used without
// panic, ensuring label dimensions match usage across client, http, service, and cache packages.
func TestMetrics_Usable(t *testing.T) {
	// Route uses path template to avoid cardinality (/cars/{id} not /cars/42)
	HTTPRequestsTotal.WithLabelValues("GET", "/cars/{id}", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/cars/{id}").Observe(0.01)
	UpstreamCallsTotal.WithLabelValues("pricing", "success").Inc()
	UpstreamDuration.WithLabelValues("maps", "server_error").Observe(0.1)
	UpstreamRetriesTotal.WithLabelValues("maps").Inc()
	EnrichmentFailuresTotal.WithLabelValues("price").Inc()
	AddressCacheLookupsTotal.WithLabelValues("in_memory", "hit").Inc()
	CarOperationsTotal.WithLabelValues("create", "ok").Inc()
	PriceLookupsTotal.WithLabelValues("found").Inc()
	EventsPublishedTotal.WithLabelValues("car.created", "published").Inc()
	RecordCircuitBreakerTransition("pricing", "closed", "open", 1)
	RecordShutdownInFlight(0)
	RegisterRateLimitGauges(time.Minute)
	RegisterRateLimitGauges(time.Minute) // second call must not re-register
}

// TestMetricsHandler_ServesPrometheusFormat verifies that MetricsHandler serves
// Prometheus text exposition format with correct HTTP status and metric output.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/cars", "2xx").Inc()

	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "httpRequestsTotal") {
		t.Error("MetricsHandler response should contain metric output")
	}
}
