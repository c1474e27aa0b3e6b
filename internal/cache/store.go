// Package cache implements the get-or-compute gateway in front of an
// external key-value store.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"coin-dashboard/internal/domain"
)

var (
	// ErrMiss is returned by Store.Get when the key is absent or expired.
	ErrMiss = errors.New("cache miss")

	// ErrCacheUnavailable wraps store transport failures.
	// The gateway treats it as a miss.
	ErrCacheUnavailable = errors.New("cache store unavailable")
)

// Store is a string-keyed byte store with per-key TTL.
type Store interface {
	// Get returns the live value for key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value with expiresAt = now + ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// DeletePrefix removes every key starting with prefix and returns the count.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// WindowStore advances rolling windows atomically.
type WindowStore interface {
	// AdvanceWindow loads the window of every symbol under key (zero-filled to
	// capacity when absent), evicts the oldest sample, appends latest[symbol]
	// (zero when missing) and stores the result with ttl. The whole
	// evict+append for one key is atomic with respect to concurrent calls.
	AdvanceWindow(ctx context.Context, key string, symbols []domain.Symbol, latest map[domain.Symbol]decimal.Decimal, capacity int, ttl time.Duration) (map[domain.Symbol][]decimal.Decimal, error)
}

// Backend is a store that also maintains windows.
type Backend interface {
	Store
	WindowStore
	Name() string
}
