// Package overload exposes rate-limit pressure for health checks and gauges.
package overload

import (
	"time"

	"github.com/kjstillabower/vehicles-api/internal/traffic"
)

// RecordAdmitted records a request the rate limiter let through.
func RecordAdmitted() {
	traffic.RecordSuccess()
}

// RecordDenial records a rate-limit denial (429). Call from middleware when returning 429.
func RecordDenial() {
	traffic.RecordDenied()
}

// RequestCount returns the number of requests (admitted + denied) within the given window.
func RequestCount(window time.Duration) int {
	return traffic.RequestCount(window)
}

// DenialCount returns the number of denials within the given window.
func DenialCount(window time.Duration) int {
	return traffic.DenialCount(window)
}

// IsOverloaded reports whether requests in the window exceed thresholdPct of what the
// rate limit admits over that window. Disabled when rps is 0.
func IsOverloaded(window time.Duration, rps, thresholdPct int) bool {
	if rps <= 0 || window <= 0 || thresholdPct <= 0 {
		return false
	}
	threshold := float64(rps) * window.Seconds() * float64(thresholdPct) / 100
	return float64(RequestCount(window)) > threshold
}

// Reset clears all recorded data. For tests only.
func Reset() {
	traffic.Reset()
}
