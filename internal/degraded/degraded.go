// Package degraded tracks how often car reads lose an enrichment field.
package degraded

import (
	"time"

	"github.com/kjstillabower/vehicles-api/internal/traffic"
)

var reads traffic.Tracker

// RecordEnriched records a car read whose price and address were both resolved.
func RecordEnriched() {
	reads.Record(traffic.OutcomeSuccess)
}

// RecordEnrichmentFailure records a car read served with a missing price or address.
func RecordEnrichmentFailure() {
	reads.Record(traffic.OutcomeError)
}

// ErrorRate returns (failedReads, totalReads) within the window.
func ErrorRate(window time.Duration) (errors, total int) {
	return reads.ErrorRate(window)
}

// IsDegraded reports whether the failure percentage in the window reaches thresholdPct.
// A window with no reads is never degraded.
func IsDegraded(window time.Duration, thresholdPct int) bool {
	if window <= 0 || thresholdPct <= 0 {
		return false
	}
	errors, total := ErrorRate(window)
	if total == 0 {
		return false
	}
	return float64(errors)*100/float64(total) >= float64(thresholdPct)
}

// Reset clears all recorded data. For tests only.
func Reset() {
	reads.Reset()
}
