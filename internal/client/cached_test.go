package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kjstillabower/vehicles-api/internal/cache"
	"github.com/kjstillabower/vehicles-api/internal/models"
)

type countingLocationClient struct {
	calls   atomic.Int32
	delay   time.Duration
	err     error
	address models.Address
	// started, when set, is closed on the first call.
	started     chan struct{}
	startedOnce sync.Once
}

func (c *countingLocationClient) Resolve(ctx context.Context, lat, lon float64) (models.Address, error) {
	c.calls.Add(1)
	if c.started != nil {
		c.startedOnce.Do(func() { close(c.started) })
	}
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.err != nil {
		return models.Address{}, c.err
	}
	return c.address, nil
}

type failingCache struct{}

func (failingCache) Get(ctx context.Context, key string) (models.Address, bool, error) {
	return models.Address{}, false, errors.New("cache down")
}

func (failingCache) Set(ctx context.Context, key string, value models.Address, ttl time.Duration) error {
	return errors.New("cache down")
}

var brockton = models.Address{Address: "777 Brockton Avenue", City: "Abington", State: "MA", Zip: "2351"}

func TestCachedLocationClient_MissThenHit(t *testing.T) {
	next := &countingLocationClient{address: brockton}
	c := NewCachedLocationClient(next, cache.NewInMemoryCache(), "in_memory", time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := c.Resolve(ctx, 40.730610, -73.935242)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if got != brockton {
			t.Errorf("Resolve() = %+v, want %+v", got, brockton)
		}
	}
	if n := next.calls.Load(); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
}

// TestCachedLocationClient_CoalescesConcurrentMisses verifies that concurrent lookups for
// the same coordinates share one upstream call.
func TestCachedLocationClient_CoalescesConcurrentMisses(t *testing.T) {
	next := &countingLocationClient{address: brockton, delay: 50 * time.Millisecond}
	c := NewCachedLocationClient(next, cache.NewInMemoryCache(), "in_memory", time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Resolve(context.Background(), 1.5, 2.5); err != nil {
				t.Errorf("Resolve() error = %v", err)
			}
		}()
	}
	wg.Wait()
	if n := next.calls.Load(); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
}

func TestCachedLocationClient_ErrorNotCached(t *testing.T) {
	next := &countingLocationClient{err: ErrUpstreamFailure}
	c := NewCachedLocationClient(next, cache.NewInMemoryCache(), "in_memory", time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := c.Resolve(context.Background(), 1, 2); !errors.Is(err, ErrUpstreamFailure) {
			t.Fatalf("Resolve() error = %v, want ErrUpstreamFailure", err)
		}
	}
	if n := next.calls.Load(); n != 2 {
		t.Errorf("upstream calls = %d, want 2", n)
	}
}

func TestCachedLocationClient_CacheErrorFallsThrough(t *testing.T) {
	next := &countingLocationClient{address: brockton}
	c := NewCachedLocationClient(next, failingCache{}, "redis", time.Minute)

	got, err := c.Resolve(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("Resolve() error = %v, want nil despite cache failure", err)
	}
	if got != brockton {
		t.Errorf("Resolve() = %+v", got)
	}
}

// TestCachedLocationClient_FollowerHonorsOwnDeadline verifies that a caller joining an
// in-flight lookup returns at its own deadline, and the lookup still completes for the leader.
func TestCachedLocationClient_FollowerHonorsOwnDeadline(t *testing.T) {
	next := &countingLocationClient{address: brockton, delay: 300 * time.Millisecond, started: make(chan struct{})}
	c := NewCachedLocationClient(next, cache.NewInMemoryCache(), "in_memory", time.Minute)

	leaderDone := make(chan error, 1)
	go func() {
		_, err := c.Resolve(context.Background(), 1.5, 2.5)
		leaderDone <- err
	}()
	<-next.started

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.Resolve(ctx, 1.5, 2.5)
	elapsed := time.Since(start)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Resolve() error = %v, want DeadlineExceeded", err)
	}
	if elapsed > 200*time.Millisecond {
		t.Errorf("follower waited %v, want it to return near its 30ms deadline", elapsed)
	}
	if err := <-leaderDone; err != nil {
		t.Errorf("leader Resolve() error = %v", err)
	}
	if n := next.calls.Load(); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
}
