// Package client calls the pricing and maps upstreams over HTTP.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/kjstillabower/vehicles-api/internal/circuitbreaker"
	"github.com/kjstillabower/vehicles-api/internal/observability"
)

// ErrUpstreamUnavailable is the root of every upstream error. Callers that only care
// whether enrichment worked match on it.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

var (
	ErrNotFound        = fmt.Errorf("%w: not found", ErrUpstreamUnavailable)
	ErrUpstreamFailure = fmt.Errorf("%w: upstream failure", ErrUpstreamUnavailable)
	ErrRateLimited     = fmt.Errorf("%w: rate limited", ErrUpstreamUnavailable)
	ErrCircuitOpen     = fmt.Errorf("%w: circuit open", ErrUpstreamUnavailable)
)

// CorrelationHeader carries the request correlation id to upstreams.
const CorrelationHeader = "X-Correlation-ID"

// Options configures an upstream client.
type Options struct {
	URL            string
	Timeout        time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	Breaker        *circuitbreaker.CircuitBreaker
	HTTPClient     *http.Client
}

// upstream is the shared GET-JSON plumbing behind PricingClient and MapsClient.
type upstream struct {
	name           string
	baseURL        *url.URL
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *circuitbreaker.CircuitBreaker
}

func newUpstream(name string, opts Options) (*upstream, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("%s client: URL is required", name)
	}
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("%s client: invalid URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%s client: URL scheme must be http or https, got %q", name, u.Scheme)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 2
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 100 * time.Millisecond
	}
	if opts.RetryMaxDelay < opts.RetryBaseDelay {
		opts.RetryMaxDelay = opts.RetryBaseDelay
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &upstream{
		name:           name,
		baseURL:        u,
		timeout:        opts.Timeout,
		client:         hc,
		retryAttempts:  opts.RetryAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
		retryMaxDelay:  opts.RetryMaxDelay,
		breaker:        opts.Breaker,
	}, nil
}

// getJSON issues GET baseURL?params and decodes the body into out, retrying
// retryable failures with exponential backoff.
func (u *upstream) getJSON(ctx context.Context, params url.Values, out any) error {
	var lastErr error
	for attempt := 0; attempt < u.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.UpstreamRetriesTotal.WithLabelValues(u.name).Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(u.calculateBackoff(attempt)):
			}
		}

		err := u.callThroughBreaker(ctx, params, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil || !isRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("exhausted retries: %w", lastErr)
}

func (u *upstream) callThroughBreaker(ctx context.Context, params url.Values, out any) error {
	if u.breaker == nil {
		return u.call(ctx, params, out)
	}
	err := u.breaker.Call(ctx, func() error { return u.call(ctx, params, out) })
	if errors.Is(err, circuitbreaker.ErrOpen) {
		observability.UpstreamCallsTotal.WithLabelValues(u.name, "circuit_open").Inc()
		return fmt.Errorf("%s: %w", u.name, ErrCircuitOpen)
	}
	return err
}

func (u *upstream) call(ctx context.Context, params url.Values, out any) error {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	req, err := u.buildRequest(reqCtx, params)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(u.name, "error").Inc()
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(u.name, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(u.name, "error").Observe(time.Since(start).Seconds())
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: request timeout: %w", ErrUpstreamFailure, err)
		}
		return fmt.Errorf("%w: http request failed: %w", ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(u.name, status).Inc()
	observability.UpstreamDuration.WithLabelValues(u.name, status).Observe(time.Since(start).Seconds())

	if err := handleErrorResponse(resp); err != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response body: %w", ErrUpstreamFailure, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: parse response: %w", ErrUpstreamFailure, err)
	}
	return nil
}

func (u *upstream) buildRequest(ctx context.Context, params url.Values) (*http.Request, error) {
	target := *u.baseURL
	q := target.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	target.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := observability.CorrelationIDFromContext(ctx); corrID != "" {
		req.Header.Set(CorrelationHeader, corrID)
	}
	return req, nil
}

func (u *upstream) calculateBackoff(attempt int) time.Duration {
	delay := float64(u.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(u.retryMaxDelay) {
		delay = float64(u.retryMaxDelay)
	}
	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

// isRetryable reports whether another attempt may succeed. Not-found and an open
// circuit are final.
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrCircuitOpen) {
		return false
	}
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure)
}

// IsBreakerFailure is the circuitbreaker.Config.IsFailure for upstream breakers.
// Not-found answers do not count: the upstream responded correctly.
func IsBreakerFailure(err error) bool {
	return !errors.Is(err, ErrNotFound)
}

func handleErrorResponse(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
