package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"coin-dashboard/internal/cache"
	"coin-dashboard/internal/domain"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCacheStore_SetGet(t *testing.T) {
	store := NewCacheStore()
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("Expected v, got %q", got)
	}
}

func TestCacheStore_ExpiredIsMiss(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	store := NewCacheStore(WithClock(clock.Now))
	ctx := context.Background()

	_ = store.Set(ctx, "k", []byte("v"), 10*time.Second)

	clock.Advance(9 * time.Second)
	if _, err := store.Get(ctx, "k"); err != nil {
		t.Fatalf("Expected live entry before expiry, got %v", err)
	}

	clock.Advance(1 * time.Second)
	if _, err := store.Get(ctx, "k"); !errors.Is(err, cache.ErrMiss) {
		t.Errorf("Expected ErrMiss at expiresAt, got %v", err)
	}
}

func TestCacheStore_ValueIsCopied(t *testing.T) {
	store := NewCacheStore()
	ctx := context.Background()

	buf := []byte("abc")
	_ = store.Set(ctx, "k", buf, time.Minute)
	buf[0] = 'x'

	got, _ := store.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("Store must not alias caller buffer, got %q", got)
	}
}

func TestCacheStore_DeletePrefix(t *testing.T) {
	store := NewCacheStore()
	ctx := context.Background()

	_ = store.Set(ctx, "price_snapshots:BTC", []byte("1"), time.Minute)
	_ = store.Set(ctx, "price_snapshots:ETH", []byte("2"), time.Minute)
	_ = store.Set(ctx, "currency_catalog", []byte("3"), time.Minute)

	n, err := store.DeletePrefix(ctx, "price_snapshots:")
	if err != nil {
		t.Fatalf("DeletePrefix failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 deleted, got %d", n)
	}
	if _, err := store.Get(ctx, "currency_catalog"); err != nil {
		t.Errorf("Unrelated key removed: %v", err)
	}
}

func TestCacheStore_Purge(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	store := NewCacheStore(WithClock(clock.Now))
	ctx := context.Background()

	_ = store.Set(ctx, "short", []byte("1"), time.Second)
	_ = store.Set(ctx, "long", []byte("2"), time.Hour)
	clock.Advance(2 * time.Second)

	if n := store.Purge(); n != 1 {
		t.Errorf("Expected 1 purged, got %d", n)
	}
}

func TestCacheStore_AdvanceWindow_ZeroFilled(t *testing.T) {
	store := NewCacheStore()
	ctx := context.Background()

	out, err := store.AdvanceWindow(ctx, "W", []domain.Symbol{"BTC", "ETH"},
		map[domain.Symbol]decimal.Decimal{"BTC": decimal.NewFromInt(10)}, 60, time.Hour)
	if err != nil {
		t.Fatalf("AdvanceWindow failed: %v", err)
	}

	if len(out["BTC"]) != 60 || len(out["ETH"]) != 60 {
		t.Fatalf("Expected length 60, got %d/%d", len(out["BTC"]), len(out["ETH"]))
	}
	if !out["BTC"][59].Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected newest BTC sample 10, got %s", out["BTC"][59])
	}
	if !out["ETH"][59].IsZero() {
		t.Errorf("Missing latest must append zero, got %s", out["ETH"][59])
	}
}

func TestCacheStore_AdvanceWindow_ExpiredRebuilds(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	store := NewCacheStore(WithClock(clock.Now))
	ctx := context.Background()
	syms := []domain.Symbol{"BTC"}

	_, _ = store.AdvanceWindow(ctx, "W", syms, map[domain.Symbol]decimal.Decimal{"BTC": decimal.NewFromInt(5)}, 60, time.Minute)
	clock.Advance(2 * time.Minute)

	out, _ := store.AdvanceWindow(ctx, "W", syms, map[domain.Symbol]decimal.Decimal{"BTC": decimal.NewFromInt(7)}, 60, time.Minute)
	if !out["BTC"][58].IsZero() {
		t.Errorf("Expired window must be rebuilt zero-filled, got %s at 58", out["BTC"][58])
	}
}

func TestCacheStore_AdvanceWindow_Concurrent(t *testing.T) {
	store := NewCacheStore()
	ctx := context.Background()
	syms := []domain.Symbol{"BTC"}

	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(v int64) {
			defer wg.Done()
			_, _ = store.AdvanceWindow(ctx, "W", syms, map[domain.Symbol]decimal.Decimal{"BTC": decimal.NewFromInt(v)}, 60, time.Hour)
		}(int64(i))
	}
	wg.Wait()

	out, _ := store.AdvanceWindow(ctx, "W", syms, map[domain.Symbol]decimal.Decimal{"BTC": decimal.Zero}, 60, time.Hour)
	if len(out["BTC"]) != 60 {
		t.Fatalf("Expected length 60, got %d", len(out["BTC"]))
	}
	// 101 advances on a 60-window: every slot but the last holds a nonzero sample.
	for i := 0; i < 59; i++ {
		if out["BTC"][i].IsZero() {
			t.Errorf("Lost sample at index %d", i)
		}
	}
}
