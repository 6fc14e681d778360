package client

import (
	"context"
	"errors"
)

// ErrorCategory is a stable label for error classification in logs and metrics.
type ErrorCategory string

const (
	ErrorCategoryTimeout     ErrorCategory = "timeout"
	ErrorCategoryNotFound    ErrorCategory = "not_found"
	ErrorCategoryRateLimited ErrorCategory = "rate_limited"
	ErrorCategoryCircuitOpen ErrorCategory = "circuit_open"
	ErrorCategoryUpstream    ErrorCategory = "upstream"
	ErrorCategoryUnknown     ErrorCategory = "unknown"
)

// CategorizeError maps an enrichment error to a stable ErrorCategory.
func CategorizeError(err error) ErrorCategory {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return ErrorCategoryTimeout
	case errors.Is(err, ErrNotFound):
		return ErrorCategoryNotFound
	case errors.Is(err, ErrRateLimited):
		return ErrorCategoryRateLimited
	case errors.Is(err, ErrCircuitOpen):
		return ErrorCategoryCircuitOpen
	case errors.Is(err, ErrUpstreamFailure):
		return ErrorCategoryUpstream
	default:
		return ErrorCategoryUnknown
	}
}
