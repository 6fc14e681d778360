// Package lifecycle holds the process phase reported by /health.
package lifecycle

import "sync/atomic"

// Phase is the process phase. Phases only move forward.
type Phase int32

const (
	PhaseStarting Phase = iota
	PhaseReady
	PhaseShuttingDown
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseReady:
		return "ready"
	case PhaseShuttingDown:
		return "shutting-down"
	default:
		return "unknown"
	}
}

var phase atomic.Int32

// Current returns the current phase.
func Current() Phase {
	return Phase(phase.Load())
}

// MarkReady moves Starting to Ready. It is a no-op once shutdown has begun.
func MarkReady() {
	phase.CompareAndSwap(int32(PhaseStarting), int32(PhaseReady))
}

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT received.
// Health handler returns 503 with status shutting-down while true.
func SetShuttingDown(v bool) {
	if v {
		phase.Store(int32(PhaseShuttingDown))
		return
	}
	phase.Store(int32(PhaseReady))
}

// IsShuttingDown returns true if the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return Current() == PhaseShuttingDown
}

// IsReady reports whether the process has finished starting and is not draining.
func IsReady() bool {
	return Current() == PhaseReady
}

// Reset returns to PhaseStarting. For tests only.
func Reset() {
	phase.Store(int32(PhaseStarting))
}
