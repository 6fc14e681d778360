package client

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// TestCategorizeError verifies that CategorizeError maps sentinel and wrapped errors
// to the correct ErrorCategory.
func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ""},
		{"timeout context", context.DeadlineExceeded, ErrorCategoryTimeout},
		{"canceled context", context.Canceled, ErrorCategoryTimeout},
		{"not found", ErrNotFound, ErrorCategoryNotFound},
		{"wrapped not found", fmt.Errorf("get price for vehicle 7: %w", ErrNotFound), ErrorCategoryNotFound},
		{"rate limited", ErrRateLimited, ErrorCategoryRateLimited},
		{"circuit open", fmt.Errorf("maps: %w", ErrCircuitOpen), ErrorCategoryCircuitOpen},
		{"upstream failure", fmt.Errorf("%w: HTTP 503", ErrUpstreamFailure), ErrorCategoryUpstream},
		{"timeout beats upstream", fmt.Errorf("%w: request timeout: %w", ErrUpstreamFailure, context.DeadlineExceeded), ErrorCategoryTimeout},
		{"unknown", errors.New("something else"), ErrorCategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategorizeError(tt.err); got != tt.want {
				t.Errorf("CategorizeError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSentinels_WrapUpstreamUnavailable(t *testing.T) {
	for _, err := range []error{ErrNotFound, ErrUpstreamFailure, ErrRateLimited, ErrCircuitOpen} {
		if !errors.Is(err, ErrUpstreamUnavailable) {
			t.Errorf("errors.Is(%v, ErrUpstreamUnavailable) = false", err)
		}
	}
}
