package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coin-dashboard/internal/cache"
	"coin-dashboard/internal/logging"
	"coin-dashboard/internal/storage/memory"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// brokenStore fails every operation.
type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, error) {
	return nil, cache.ErrCacheUnavailable
}
func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return cache.ErrCacheUnavailable
}
func (brokenStore) Delete(context.Context, ...string) error { return cache.ErrCacheUnavailable }
func (brokenStore) DeletePrefix(context.Context, string) (int, error) {
	return 0, cache.ErrCacheUnavailable
}

func newGateway(t *testing.T) (*cache.Gateway, *clock) {
	t.Helper()
	c := &clock{now: time.Unix(1700000000, 0)}
	store := memory.NewCacheStore(memory.WithClock(c.Now))
	return cache.NewGateway(store, logging.Discard()), c
}

func TestGetOrCompute_CachesWithinTTL(t *testing.T) {
	g, c := newGateway(t)
	ctx := context.Background()

	var calls int32
	compute := func(context.Context) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		return []string{"BTC", "ETH"}, nil
	}

	v, err := cache.GetOrCompute(ctx, g, "top_symbols:2", 300*time.Second, compute)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC", "ETH"}, v)

	c.Advance(299 * time.Second)
	_, err = cache.GetOrCompute(ctx, g, "top_symbols:2", 300*time.Second, compute)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	c.Advance(time.Second)
	_, err = cache.GetOrCompute(ctx, g, "top_symbols:2", 300*time.Second, compute)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "expired entry must recompute")
}

func TestGetOrCompute_FailureNotCached(t *testing.T) {
	g, _ := newGateway(t)
	ctx := context.Background()
	boom := errors.New("upstream down")

	_, err := cache.GetOrCompute(ctx, g, "k", time.Minute, func(context.Context) (int, error) {
		return 0, boom
	})
	require.ErrorIs(t, err, boom)

	v, err := cache.GetOrCompute(ctx, g, "k", time.Minute, func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestGetOrCompute_StoreUnavailableIsMiss(t *testing.T) {
	g := cache.NewGateway(brokenStore{}, logging.Discard())
	ctx := context.Background()

	var calls int
	for i := 0; i < 2; i++ {
		v, err := cache.GetOrCompute(ctx, g, "k", time.Minute, func(context.Context) (string, error) {
			calls++
			return "fresh", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "fresh", v)
	}
	assert.Equal(t, 2, calls)
}

func TestGetOrCompute_SingleFlight(t *testing.T) {
	g, _ := newGateway(t)
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	compute := func(context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 7, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := cache.GetOrCompute(ctx, g, "shared", time.Minute, compute)
			if err == nil {
				results[i] = v
			}
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, 7, v)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(8))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

func TestGetOrCompute_CancelledCallerDoesNotFailOthers(t *testing.T) {
	g, _ := newGateway(t)

	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-release:
			return "value", nil
		}
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := cache.GetOrCompute(ctxA, g, "shared", time.Minute, compute)
		errA <- err
	}()
	<-started

	type result struct {
		v   string
		err error
	}
	resB := make(chan result, 1)
	go func() {
		v, err := cache.GetOrCompute(context.Background(), g, "shared", time.Minute, compute)
		resB <- result{v, err}
	}()

	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)

	time.Sleep(20 * time.Millisecond)
	close(release)

	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, "value", b.v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrCompute_CallerOwnsValue(t *testing.T) {
	g, _ := newGateway(t)
	ctx := context.Background()

	first, err := cache.GetOrCompute(ctx, g, "k", time.Minute, func(context.Context) (map[string]int, error) {
		return map[string]int{"a": 1}, nil
	})
	require.NoError(t, err)
	first["a"] = 99

	second, err := cache.GetOrCompute(ctx, g, "k", time.Minute, func(context.Context) (map[string]int, error) {
		return nil, errors.New("must not be called")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, second["a"])
}

func TestGetOrComputeStale_ServesLastGood(t *testing.T) {
	g, c := newGateway(t)
	ctx := context.Background()

	v, stale, err := cache.GetOrComputeStale(ctx, g, "price_snapshots:BTC", time.Minute, func(context.Context) (string, error) {
		return "snap-1", nil
	})
	require.NoError(t, err)
	assert.False(t, stale)
	assert.Equal(t, "snap-1", v)

	c.Advance(2 * time.Minute)

	v, stale, err = cache.GetOrComputeStale(ctx, g, "price_snapshots:BTC", time.Minute, func(context.Context) (string, error) {
		return "", errors.New("upstream timeout")
	})
	require.NoError(t, err)
	assert.True(t, stale)
	assert.Equal(t, "snap-1", v)
}

func TestGetOrComputeStale_NoLastGood(t *testing.T) {
	g, _ := newGateway(t)
	boom := errors.New("upstream timeout")

	_, stale, err := cache.GetOrComputeStale(context.Background(), g, "k", time.Minute, func(context.Context) (int, error) {
		return 0, boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, stale)
}

func TestInvalidate(t *testing.T) {
	g, _ := newGateway(t)
	ctx := context.Background()

	for _, k := range []string{"price_history:BTC:7", "price_history:ETH:7", "currency_catalog"} {
		_, err := cache.GetOrCompute(ctx, g, k, time.Minute, func(context.Context) (int, error) { return 1, nil })
		require.NoError(t, err)
	}

	n, err := g.Invalidate(ctx, "price_history:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = g.Store().Get(ctx, "currency_catalog")
	assert.NoError(t, err)
}
