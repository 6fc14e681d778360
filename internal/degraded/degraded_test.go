package degraded

import (
	"testing"
	"time"
)

// TestErrorRate_Empty verifies that ErrorRate returns (0, 0) when no
// reads have been recorded within the time window.
func TestErrorRate_Empty(t *testing.T) {
	Reset()
	errors, total := ErrorRate(1 * time.Minute)
	if errors != 0 || total != 0 {
		t.Errorf("ErrorRate() = (%d, %d), want (0, 0)", errors, total)
	}
}

func TestRecordEnriched_AndFailure_ErrorRate(t *testing.T) {
	Reset()
	RecordEnriched()
	RecordEnriched()
	RecordEnrichmentFailure()
	errors, total := ErrorRate(1 * time.Minute)
	if errors != 1 || total != 3 {
		t.Errorf("ErrorRate() = (%d, %d), want (1, 3)", errors, total)
	}
}

// TestIsDegraded verifies the threshold comparison and the empty-window rule.
func TestIsDegraded(t *testing.T) {
	Reset()
	if IsDegraded(time.Minute, 5) {
		t.Error("IsDegraded() = true with no reads, want false")
	}
	for i := 0; i < 19; i++ {
		RecordEnriched()
	}
	RecordEnrichmentFailure()
	if !IsDegraded(time.Minute, 5) {
		t.Error("IsDegraded(5%) = false at 1/20 failures, want true")
	}
	if IsDegraded(time.Minute, 10) {
		t.Error("IsDegraded(10%) = true at 1/20 failures, want false")
	}
	if IsDegraded(time.Minute, 0) {
		t.Error("IsDegraded(0%) = true, want disabled")
	}
	Reset()
}

func TestReset(t *testing.T) {
	Reset()
	RecordEnrichmentFailure()
	RecordEnriched()
	Reset()
	errors, total := ErrorRate(1 * time.Minute)
	if errors != 0 || total != 0 {
		t.Errorf("After Reset, ErrorRate() = (%d, %d), want (0, 0)", errors, total)
	}
}
