package market

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"coin-dashboard/internal/cache"
	"coin-dashboard/internal/domain"
	"coin-dashboard/internal/livecoin"
	"coin-dashboard/internal/livecoin/stub"
	"coin-dashboard/internal/logging"
	"coin-dashboard/internal/storage/memory"
)

var testNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	provider *stub.Provider
	store    *memory.CacheStore
	gw       *cache.Gateway
	clock    *testClock
	facade   *Facade
	archive  *recordingArchive
}

func newTestEnv(t *testing.T, coins ...livecoin.Coin) *testEnv {
	t.Helper()
	clock := &testClock{now: testNow}
	store := memory.NewCacheStore(memory.WithClock(clock.Now))
	gw := cache.NewGateway(store, logging.Discard())
	provider := stub.NewProvider(coins...)
	archive := &recordingArchive{}

	return &testEnv{
		provider: provider,
		store:    store,
		gw:       gw,
		clock:    clock,
		archive:  archive,
		facade: New(Options{
			Provider: provider,
			Cache:    gw,
			Windows:  store,
			Archive:  archive,
			Logger:   logging.Discard(),
			Now:      clock.Now,
		}),
	}
}

// rankedCoins returns n coins C01..Cnn with rank i and rate i*10.
func rankedCoins(n int) []livecoin.Coin {
	out := make([]livecoin.Coin, n)
	for i := 1; i <= n; i++ {
		out[i-1] = stub.Coin(fmt.Sprintf("C%02d", i), i, float64(i*10), 1.01)
	}
	return out
}

// recordingArchive collects archived batches.
type recordingArchive struct {
	mu      sync.Mutex
	batches [][]domain.PriceSnapshot
	err     error
}

func (a *recordingArchive) InsertSnapshots(_ context.Context, _ int64, snaps []domain.PriceSnapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.batches = append(a.batches, snaps)
	return nil
}

func (a *recordingArchive) Batches() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.batches)
}

// failingWindows is a WindowStore that is always down.
type failingWindows struct{}

func (failingWindows) AdvanceWindow(context.Context, string, []domain.Symbol, map[domain.Symbol]decimal.Decimal, int, time.Duration) (map[domain.Symbol][]decimal.Decimal, error) {
	return nil, cache.ErrCacheUnavailable
}

var errUpstreamDown = errors.New("upstream down")

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
