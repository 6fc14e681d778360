package overload

import (
	"testing"
	"time"

	"github.com/kjstillabower/vehicles-api/internal/traffic"
)

// TestRequestCount_Empty verifies that RequestCount returns 0 when no
// requests have been recorded within the time window.
func TestRequestCount_Empty(t *testing.T) {
	Reset()
	if n := RequestCount(1 * time.Minute); n != 0 {
		t.Errorf("RequestCount() = %d, want 0", n)
	}
}

func TestRequestCount_IncludesTraffic(t *testing.T) {
	Reset()
	RecordAdmitted()
	traffic.RecordSuccess()
	RecordDenial()
	if n := RequestCount(1 * time.Minute); n != 3 {
		t.Errorf("RequestCount() = %d, want 3", n)
	}
}

// TestRecordDenial_AndCount verifies that RecordDenial correctly increments
// denial count tracked by DenialCount.
func TestRecordDenial_AndCount(t *testing.T) {
	Reset()
	RecordDenial()
	RecordDenial()
	if n := DenialCount(1 * time.Minute); n != 2 {
		t.Errorf("DenialCount() = %d, want 2", n)
	}
}

func TestIsOverloaded(t *testing.T) {
	Reset()
	// 1 rps over 10s at 50% -> threshold 5 requests
	for i := 0; i < 5; i++ {
		RecordDenial()
	}
	if IsOverloaded(10*time.Second, 1, 50) {
		t.Error("IsOverloaded() = true at exactly the threshold, want false")
	}
	RecordDenial()
	if !IsOverloaded(10*time.Second, 1, 50) {
		t.Error("IsOverloaded() = false above the threshold, want true")
	}
	if IsOverloaded(10*time.Second, 0, 50) {
		t.Error("IsOverloaded() with rps=0 should be disabled")
	}
	Reset()
}

func TestReset_ClearsBoth(t *testing.T) {
	Reset()
	RecordAdmitted()
	RecordDenial()
	Reset()
	if n := RequestCount(1 * time.Minute); n != 0 {
		t.Errorf("After Reset, RequestCount() = %d, want 0", n)
	}
	if n := DenialCount(1 * time.Minute); n != 0 {
		t.Errorf("After Reset, DenialCount() = %d, want 0", n)
	}
}
