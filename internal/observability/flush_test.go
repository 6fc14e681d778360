package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFlushTelemetry_NilLogger(t *testing.T) {
	if err := FlushTelemetry(context.Background(), nil); err != nil {
		t.Errorf("FlushTelemetry(nil) = %v, want nil", err)
	}
}

func TestFlushTelemetry_ObservedLogger(t *testing.T) {
	core, _ := observer.New(zap.InfoLevel)
	if err := FlushTelemetry(context.Background(), zap.New(core)); err != nil {
		t.Errorf("FlushTelemetry() = %v, want nil", err)
	}
}
