package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/kjstillabower/vehicles-api/internal/models"
)

type fakeResolver struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeResolver) Resolve(ctx context.Context, lat, lon float64) (models.Address, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Key(lat, lon))
	f.mu.Unlock()
	if f.err != nil {
		return models.Address{}, f.err
	}
	return models.Address{Address: "777 Brockton Avenue", City: "Abington", State: "MA", Zip: "2351"}, nil
}

func staticSource(locs ...models.Location) LocationSource {
	return func(ctx context.Context) ([]models.Location, error) { return locs, nil }
}

func TestCacheWarmer_Warm_Success(t *testing.T) {
	r := &fakeResolver{}
	warmer := NewCacheWarmer(r, staticSource(
		models.Location{Lat: 40.730610, Lon: -73.935242},
		models.Location{Lat: 34.052235, Lon: -118.243683},
	), 2, nil)

	if err := warmer.Warm(context.Background()); err != nil {
		t.Fatalf("Warm() error = %v, want nil", err)
	}
	if len(r.calls) != 2 {
		t.Errorf("resolver calls = %d, want 2", len(r.calls))
	}
}

// TestCacheWarmer_Warm_DeduplicatesCoordinates verifies that cars parked at the same
// rounded coordinates are resolved once.
func TestCacheWarmer_Warm_DeduplicatesCoordinates(t *testing.T) {
	r := &fakeResolver{}
	warmer := NewCacheWarmer(r, staticSource(
		models.Location{Lat: 40.730610, Lon: -73.935242},
		models.Location{Lat: 40.7306101, Lon: -73.9352419},
	), 0, nil)

	if err := warmer.Warm(context.Background()); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}
	if len(r.calls) != 1 {
		t.Errorf("resolver calls = %d, want 1", len(r.calls))
	}
}

func TestCacheWarmer_Warm_EmptyLocations(t *testing.T) {
	warmer := NewCacheWarmer(&fakeResolver{}, staticSource(), 0, nil)
	if err := warmer.Warm(context.Background()); err != nil {
		t.Fatalf("Warm() with no locations error = %v, want nil", err)
	}
}

func TestCacheWarmer_Warm_ResolverError(t *testing.T) {
	warmer := NewCacheWarmer(&fakeResolver{err: errors.New("maps down")}, staticSource(
		models.Location{Lat: 1, Lon: 2},
	), 0, nil)

	err := warmer.Warm(context.Background())
	if err == nil {
		t.Fatal("Warm() error = nil, want non-nil")
	}
	if !strings.Contains(err.Error(), "maps down") {
		t.Errorf("Warm() error = %q, want resolver failure in message", err)
	}
}

func TestCacheWarmer_Warm_SourceError(t *testing.T) {
	errStore := errors.New("store unavailable")
	warmer := NewCacheWarmer(&fakeResolver{}, func(ctx context.Context) ([]models.Location, error) {
		return nil, errStore
	}, 0, nil)

	if err := warmer.Warm(context.Background()); !errors.Is(err, errStore) {
		t.Errorf("Warm() error = %v, want %v", err, errStore)
	}
}

func TestCacheWarmer_WarmPeriodic_StopsOnCancel(t *testing.T) {
	warmer := NewCacheWarmer(&fakeResolver{}, staticSource(), 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := warmer.WarmPeriodic(ctx, 1<<30); !errors.Is(err, context.Canceled) {
		t.Errorf("WarmPeriodic() error = %v, want context.Canceled", err)
	}
}
