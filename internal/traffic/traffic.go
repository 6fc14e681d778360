// Package traffic keeps sliding windows of outcomes. The package-level tracker counts
// admitted and denied HTTP requests for overload detection; degraded keeps its own Tracker
// for enrichment outcomes.
package traffic

import (
	"sync"
	"time"
)

// Outcome classifies a recorded event.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeError
	OutcomeDenied
	numOutcomes
)

// retention bounds memory; windows longer than this see at most this much history.
const retention = 5 * time.Minute

var defaultTracker Tracker

// RecordSuccess records an admitted request.
func RecordSuccess() {
	defaultTracker.Record(OutcomeSuccess)
}

// RecordDenied records a rate-limit denial (429).
func RecordDenied() {
	defaultTracker.Record(OutcomeDenied)
}

// RequestCount returns the number of requests (admitted + denied) within the window.
func RequestCount(window time.Duration) int {
	return defaultTracker.RequestCount(window)
}

// DenialCount returns the number of denials within the window.
func DenialCount(window time.Duration) int {
	return defaultTracker.Count(OutcomeDenied, window)
}

// Reset clears the package-level tracker. For tests only.
func Reset() {
	defaultTracker.Reset()
}

// Tracker holds per-outcome timestamps in arrival order. The zero value is ready to use.
type Tracker struct {
	mu    sync.Mutex
	times [numOutcomes][]time.Time
}

// Record appends an outcome at the current time.
func (t *Tracker) Record(o Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.times[o] = append(t.times[o], now)
	t.pruneLocked(now)
}

// Count returns how many outcomes of kind o fall within the window.
func (t *Tracker) Count(o Outcome, window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.times[o], time.Now().Add(-window))
}

// RequestCount returns the number of outcomes of any kind within the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-window)
	n := 0
	for o := Outcome(0); o < numOutcomes; o++ {
		n += countSince(t.times[o], cutoff)
	}
	return n
}

// ErrorRate returns (errorCount, successCount+errorCount) within the window.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-window)
	errors = countSince(t.times[OutcomeError], cutoff)
	return errors, errors + countSince(t.times[OutcomeSuccess], cutoff)
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for o := range t.times {
		t.times[o] = nil
	}
}

// countSince counts timestamps not before cutoff. times is sorted, so scan from the end.
func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for i := len(times) - 1; i >= 0 && !times[i].Before(cutoff); i-- {
		n++
	}
	return n
}

// pruneLocked drops entries older than retention. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	for o := range t.times {
		times := t.times[o]
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			t.times[o] = append(times[:0], times[i:]...)
		}
	}
}
