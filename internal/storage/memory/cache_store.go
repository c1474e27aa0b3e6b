package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"coin-dashboard/internal/cache"
	"coin-dashboard/internal/domain"
)

// entry is a stored value with its expiry.
type entry struct {
	value     []byte
	expiresAt time.Time
}

// CacheStore is an in-process implementation of cache.Backend.
type CacheStore struct {
	mu   sync.RWMutex
	data map[string]entry
	now  func() time.Time

	// windows holds rolling windows keyed by window key, then symbol.
	windows   map[string]*windowSet
	windowsMu sync.Mutex
}

// windowSet serializes advances of one window key.
type windowSet struct {
	mu        sync.Mutex
	values    map[domain.Symbol][]decimal.Decimal
	expiresAt time.Time
}

// CacheOption configures CacheStore.
type CacheOption func(*CacheStore)

// WithClock sets the time source used for expiry.
func WithClock(now func() time.Time) CacheOption {
	return func(s *CacheStore) {
		s.now = now
	}
}

// NewCacheStore creates a new in-memory cache store.
func NewCacheStore(opts ...CacheOption) *CacheStore {
	s := &CacheStore{
		data:    make(map[string]entry),
		now:     time.Now,
		windows: make(map[string]*windowSet),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name identifies the backend in logs and metrics.
func (s *CacheStore) Name() string { return "memory" }

// Get returns the live value for key, or cache.ErrMiss.
func (s *CacheStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()

	if !ok || !s.now().Before(e.expiresAt) {
		return nil, cache.ErrMiss
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores value until now + ttl.
func (s *CacheStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	v := make([]byte, len(value))
	copy(v, value)

	s.mu.Lock()
	s.data[key] = entry{value: v, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// Delete removes keys.
func (s *CacheStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.data, k)
	}
	s.mu.Unlock()
	return nil
}

// DeletePrefix removes every key with prefix, including rolling windows.
func (s *CacheStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	n := 0

	s.mu.Lock()
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			n++
		}
	}
	s.mu.Unlock()

	s.windowsMu.Lock()
	for k := range s.windows {
		if strings.HasPrefix(k, prefix) {
			delete(s.windows, k)
			n++
		}
	}
	s.windowsMu.Unlock()

	return n, nil
}

// Purge drops expired entries and windows.
func (s *CacheStore) Purge() int {
	now := s.now()
	n := 0

	s.mu.Lock()
	for k, e := range s.data {
		if !now.Before(e.expiresAt) {
			delete(s.data, k)
			n++
		}
	}
	s.mu.Unlock()

	s.windowsMu.Lock()
	for k, w := range s.windows {
		w.mu.Lock()
		expired := !now.Before(w.expiresAt)
		w.mu.Unlock()
		if expired {
			delete(s.windows, k)
			n++
		}
	}
	s.windowsMu.Unlock()

	return n
}

// AdvanceWindow evicts the oldest sample and appends the latest one for every
// symbol under key while holding the key's lock.
func (s *CacheStore) AdvanceWindow(_ context.Context, key string, symbols []domain.Symbol, latest map[domain.Symbol]decimal.Decimal, capacity int, ttl time.Duration) (map[domain.Symbol][]decimal.Decimal, error) {
	if capacity <= 0 {
		capacity = domain.WindowCapacity
	}

	s.windowsMu.Lock()
	w, ok := s.windows[key]
	if !ok {
		w = &windowSet{values: make(map[domain.Symbol][]decimal.Decimal)}
		s.windows[key] = w
	}
	s.windowsMu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()

	now := s.now()
	if !now.Before(w.expiresAt) {
		w.values = make(map[domain.Symbol][]decimal.Decimal)
	}

	out := make(map[domain.Symbol][]decimal.Decimal, len(symbols))
	for _, sym := range symbols {
		v, ok := latest[sym]
		if !ok {
			v = decimal.Zero
		}
		next := domain.ShiftWindow(w.values[sym], v, capacity)
		w.values[sym] = next

		cp := make([]decimal.Decimal, len(next))
		copy(cp, next)
		out[sym] = cp
	}
	w.expiresAt = now.Add(ttl)

	return out, nil
}

var (
	_ cache.Store       = (*CacheStore)(nil)
	_ cache.WindowStore = (*CacheStore)(nil)
	_ cache.Backend     = (*CacheStore)(nil)
)
