package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skydash/skydash/internal/dataset"
)

func TestDatasetCacheMemoizesParses(t *testing.T) {
	cache := NewDatasetCache(time.Minute)
	defer cache.Close()

	calls := 0
	loader := func(context.Context) (*dataset.Dataset, error) {
		calls++
		return &dataset.Dataset{ID: "abc"}, nil
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ds, err := cache.GetOrParse(ctx, "abc", loader)
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if ds.ID != "abc" {
			t.Fatalf("get %d: id = %q", i, ds.ID)
		}
	}

	if calls != 1 {
		t.Errorf("loader ran %d times, want 1 (identical content must not re-parse)", calls)
	}
}

func TestDatasetCacheLookupMiss(t *testing.T) {
	cache := NewDatasetCache(time.Minute)
	defer cache.Close()

	if _, err := cache.Lookup(context.Background(), "nope"); !errors.Is(err, ErrDatasetNotFound) {
		t.Errorf("err = %v, want ErrDatasetNotFound", err)
	}
}

func TestDatasetCacheExpiry(t *testing.T) {
	cache := NewDatasetCache(time.Minute)
	defer cache.Close()

	now := time.Unix(1000, 0)
	cache.now = func() time.Time { return now }

	ctx := context.Background()
	_, err := cache.GetOrParse(ctx, "abc", func(context.Context) (*dataset.Dataset, error) {
		return &dataset.Dataset{ID: "abc"}, nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	now = now.Add(30 * time.Second)
	if _, err := cache.Lookup(ctx, "abc"); err != nil {
		t.Fatalf("lookup within ttl: %v", err)
	}

	// The hit above refreshed the expiry; jump past it.
	now = now.Add(2 * time.Minute)
	if _, err := cache.Lookup(ctx, "abc"); !errors.Is(err, ErrDatasetNotFound) {
		t.Errorf("err after expiry = %v, want ErrDatasetNotFound", err)
	}
}

func TestDatasetCacheLoaderErrorNotStored(t *testing.T) {
	cache := NewDatasetCache(time.Minute)
	defer cache.Close()

	boom := errors.New("bad spreadsheet")
	ctx := context.Background()

	_, err := cache.GetOrParse(ctx, "abc", func(context.Context) (*dataset.Dataset, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want loader error", err)
	}

	if _, err := cache.Lookup(ctx, "abc"); !errors.Is(err, ErrDatasetNotFound) {
		t.Errorf("failed parse should not be cached, got %v", err)
	}
}

func TestDatasetCacheClosedContext(t *testing.T) {
	cache := NewDatasetCache(time.Minute)
	defer cache.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := cache.Lookup(ctx, "abc"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
