package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/JakeFAU/showtimes/internal/cache"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCacheStoreLifecycle(t *testing.T) {
	t.Parallel()

	clk := &manualClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	store := NewCacheStore(clk)
	ctx := context.Background()

	if _, err := store.Get(ctx, "chicagoil:0"); !errors.Is(err, cache.ErrMiss) {
		t.Fatalf("Get() on empty store error = %v, want ErrMiss", err)
	}
	if err := store.Set(ctx, "chicagoil:0", []byte(`[]`), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := store.Get(ctx, "chicagoil:0")
	if err != nil || string(got) != "[]" {
		t.Fatalf("Get() = %q, %v", got, err)
	}
	got[0] = 'x'
	again, _ := store.Get(ctx, "chicagoil:0")
	if string(again) != "[]" {
		t.Fatal("expected Get to return a copy")
	}

	clk.Advance(time.Minute)
	if _, err := store.Get(ctx, "chicagoil:0"); !errors.Is(err, cache.ErrMiss) {
		t.Fatalf("Get() after expiry error = %v, want ErrMiss", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected expired entry to be evicted, len=%d", store.Len())
	}
}

func TestCacheStoreRejectsNonPositiveTTL(t *testing.T) {
	t.Parallel()

	store := NewCacheStore(nil)
	if err := store.Set(context.Background(), "k", []byte("v"), 0); !errors.Is(err, cache.ErrInvalidTTL) {
		t.Fatalf("Set() error = %v, want ErrInvalidTTL", err)
	}
}

func TestCacheStoreSetKeepsHitCounter(t *testing.T) {
	t.Parallel()

	store := NewCacheStore(nil)
	ctx := context.Background()

	if err := store.Set(ctx, "chicagoil:0", []byte("v1"), time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	for want := int64(1); want <= 3; want++ {
		got, err := store.Increment(ctx, "chicagoil:0")
		if err != nil || got != want {
			t.Fatalf("Increment() = %d, %v; want %d", got, err, want)
		}
	}
	if err := store.Set(ctx, "chicagoil:0", []byte("v2"), time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, _ := store.Increment(ctx, "chicagoil:0")
	if got != 4 {
		t.Fatalf("Set must not reset hit counter, got %d", got)
	}
}

func TestCacheStorePruneReclaimsExpiredKeys(t *testing.T) {
	t.Parallel()

	clk := &manualClock{now: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	store := NewCacheStore(clk)
	ctx := context.Background()

	// Three days of distinct daily keys, each read a few times.
	const perDay = 1000
	for day := 0; day < 3; day++ {
		for i := 0; i < perDay; i++ {
			key := fmt.Sprintf("city%d:%d", i, day)
			if err := store.Set(ctx, key, []byte("[]"), time.Hour); err != nil {
				t.Fatalf("Set(%s) error = %v", key, err)
			}
			for j := 0; j < 3; j++ {
				if _, err := store.Increment(ctx, key); err != nil {
					t.Fatalf("Increment(%s) error = %v", key, err)
				}
			}
		}
		clk.Advance(24 * time.Hour)
	}

	removed, err := store.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if store.Len() != 0 || store.Counters() != 0 {
		t.Fatalf("expected everything reclaimed, entries=%d counters=%d", store.Len(), store.Counters())
	}
	// Set already swept the earlier days, so Prune only finds the last one.
	if removed != perDay {
		t.Fatalf("Prune() removed %d entries, want %d", removed, perDay)
	}
}

func TestCacheStoreSetSweepsExpiredEntries(t *testing.T) {
	t.Parallel()

	clk := &manualClock{now: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	store := NewCacheStore(clk)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("city%d:0", i)
		if err := store.Set(ctx, key, []byte("[]"), time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if _, err := store.Increment(ctx, key); err != nil {
			t.Fatalf("Increment() error = %v", err)
		}
	}
	clk.Advance(2 * time.Minute)

	if err := store.Set(ctx, "fresh:0", []byte("[]"), time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if store.Len() != 1 || store.Counters() != 0 {
		t.Fatalf("expected only the fresh entry, entries=%d counters=%d", store.Len(), store.Counters())
	}
}

func TestCacheStoreGetEvictionDropsCounter(t *testing.T) {
	t.Parallel()

	clk := &manualClock{now: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	store := NewCacheStore(clk)
	ctx := context.Background()

	if err := store.Set(ctx, "chicagoil:0", []byte("[]"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := store.Increment(ctx, "chicagoil:0"); err != nil {
		t.Fatalf("Increment() error = %v", err)
	}
	clk.Advance(time.Minute)
	if _, err := store.Get(ctx, "chicagoil:0"); !errors.Is(err, cache.ErrMiss) {
		t.Fatalf("Get() error = %v, want ErrMiss", err)
	}
	if store.Counters() != 0 {
		t.Fatalf("expected counter to go with the entry, counters=%d", store.Counters())
	}
}
