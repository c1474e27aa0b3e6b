package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"coin-dashboard/internal/logging"
	"coin-dashboard/internal/observability"
)

// Gateway serves get-or-compute over a Store. Values are JSON encoded so the
// store may live out of process.
type Gateway struct {
	store  Store
	flight singleflight.Group
	log    *logrus.Entry
}

// NewGateway wraps store.
func NewGateway(store Store, log *logrus.Entry) *Gateway {
	return &Gateway{
		store: store,
		log:   logging.OrDefault(log, "cache"),
	}
}

// Store returns the underlying store.
func (g *Gateway) Store() Store { return g.store }

// GetOrCompute returns the live value for key, or runs compute and caches its
// result for ttl. A failing compute is not cached and its error is returned.
// Concurrent misses for the same key in this process share one compute.
func GetOrCompute[T any](ctx context.Context, g *Gateway, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var zero T

	if data, ok := g.lookup(ctx, key); ok {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			observability.RecordCacheLookup(key, "hit")
			return v, nil
		}
		g.log.WithField("key", key).Warn("undecodable cache entry, recomputing")
	}
	observability.RecordCacheLookup(key, "miss")

	data, err := g.compute(ctx, key, ttl, false, func(ctx context.Context) (any, error) {
		return compute(ctx)
	})
	if err != nil {
		return zero, err
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, fmt.Errorf("decode computed value for %s: %w", key, err)
	}
	return v, nil
}

// GetOrComputeStale behaves like GetOrCompute and additionally keeps a
// last-good copy for StaleTTL. When compute fails and a last-good copy exists,
// it is returned with stale=true and no error.
func GetOrComputeStale[T any](ctx context.Context, g *Gateway, key string, ttl time.Duration, compute func(context.Context) (T, error)) (value T, stale bool, err error) {
	var zero T

	if data, ok := g.lookup(ctx, key); ok {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			observability.RecordCacheLookup(key, "hit")
			return v, false, nil
		}
	}
	observability.RecordCacheLookup(key, "miss")

	data, cerr := g.compute(ctx, key, ttl, true, func(ctx context.Context) (any, error) {
		return compute(ctx)
	})
	if cerr == nil {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return zero, false, fmt.Errorf("decode computed value for %s: %w", key, err)
		}
		return v, false, nil
	}

	if old, ok := g.lookup(ctx, LastGoodKey(key)); ok {
		var v T
		if err := json.Unmarshal(old, &v); err == nil {
			observability.RecordCacheLookup(key, "stale")
			g.log.WithError(cerr).WithField("key", key).Warn("serving last-good value")
			return v, true, nil
		}
	}
	return zero, false, cerr
}

// Invalidate removes every key with prefix.
func (g *Gateway) Invalidate(ctx context.Context, prefix string) (int, error) {
	n, err := g.store.DeletePrefix(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("invalidate %q: %w", prefix, err)
	}
	return n, nil
}

// lookup reads key. Store failures are logged and reported as a miss.
func (g *Gateway) lookup(ctx context.Context, key string) ([]byte, bool) {
	data, err := g.store.Get(ctx, key)
	if err == nil {
		return data, true
	}
	if !errors.Is(err, ErrMiss) {
		observability.RecordCacheStoreError("get")
		g.log.WithError(err).WithField("key", key).Warn("cache read failed, treating as miss")
	}
	return nil, false
}

// compute runs fn once per key across concurrent callers, encodes the result
// and writes it back. Write failures are logged; the value is still returned.
// The shared computation ignores the caller's cancellation, so one caller
// going away does not fail the others waiting on the same key.
func (g *Gateway) compute(ctx context.Context, key string, ttl time.Duration, keepLastGood bool, fn func(context.Context) (any, error)) ([]byte, error) {
	shared := context.WithoutCancel(ctx)
	ch := g.flight.DoChan(key, func() (any, error) {
		v, err := fn(shared)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode value for %s: %w", key, err)
		}
		g.write(shared, key, data, ttl)
		if keepLastGood {
			g.write(shared, LastGoodKey(key), data, StaleTTL)
		}
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (g *Gateway) write(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if err := g.store.Set(ctx, key, data, ttl); err != nil {
		observability.RecordCacheStoreError("set")
		g.log.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}
