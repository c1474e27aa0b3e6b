// Package redis implements cache.Backend on top of Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"coin-dashboard/internal/cache"
	"coin-dashboard/internal/domain"
)

// scanBatch is the COUNT hint passed to SCAN.
const scanBatch = 500

// CacheStore is a Redis-backed cache.Backend.
type CacheStore struct {
	client goredis.UniversalClient
}

// Open parses a redis:// URL, connects and pings the server.
func Open(ctx context.Context, url string) (*CacheStore, error) {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := goredis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &CacheStore{client: client}, nil
}

// NewCacheStore wraps an existing client.
func NewCacheStore(client goredis.UniversalClient) *CacheStore {
	return &CacheStore{client: client}
}

// Name identifies the backend in logs and metrics.
func (s *CacheStore) Name() string { return "redis" }

// Client returns the underlying client.
func (s *CacheStore) Client() goredis.UniversalClient { return s.client }

// Ping checks connectivity.
func (s *CacheStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Close closes the client.
func (s *CacheStore) Close() error {
	return s.client.Close()
}

// Get returns the value stored at key, or cache.ErrMiss.
func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, cache.ErrMiss
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return val, nil
}

// Set stores value with ttl. Redis enforces expiry.
func (s *CacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Delete removes keys.
func (s *CacheStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix, including window lists
// whose window key starts with prefix.
func (s *CacheStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	total := 0
	for _, pattern := range []string{
		escapeGlob(prefix) + "*",
		"window:{" + escapeGlob(prefix) + "*",
	} {
		n, err := s.deleteMatching(ctx, pattern)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *CacheStore) deleteMatching(ctx context.Context, pattern string) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return total, unavailable(err)
		}
		if len(keys) > 0 {
			n, err := s.client.Del(ctx, keys...).Result()
			if err != nil {
				return total, unavailable(err)
			}
			total += int(n)
		}
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}

// windowScript shifts every list in KEYS to capacity-1 entries (left-padding
// with zeros or trimming the oldest), appends the matching ARGV sample and
// returns the resulting lists. Runs atomically on the server.
//
// ARGV[1] = capacity, ARGV[2] = ttl in milliseconds, ARGV[3..] = samples.
var windowScript = goredis.NewScript(`
local capacity = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])
local keep = capacity - 1
local out = {}
for i, key in ipairs(KEYS) do
  local n = redis.call('LLEN', key)
  if n > keep then
    if keep > 0 then
      redis.call('LTRIM', key, n - keep, -1)
    else
      redis.call('DEL', key)
    end
  elseif n < keep then
    for _ = 1, keep - n do
      redis.call('LPUSH', key, '0')
    end
  end
  redis.call('RPUSH', key, ARGV[i + 2])
  if ttl > 0 then
    redis.call('PEXPIRE', key, ttl)
  end
  out[i] = redis.call('LRANGE', key, 0, -1)
end
return out
`)

// WindowKey returns the list key holding one symbol's window. The hash tag
// keeps all symbols of a window key in one cluster slot.
func WindowKey(key string, symbol domain.Symbol) string {
	return "window:{" + key + "}:" + string(symbol)
}

// AdvanceWindow implements cache.WindowStore with a single Lua script, so the
// evict+append of one window key never interleaves with another caller.
func (s *CacheStore) AdvanceWindow(ctx context.Context, key string, symbols []domain.Symbol, latest map[domain.Symbol]decimal.Decimal, capacity int, ttl time.Duration) (map[domain.Symbol][]decimal.Decimal, error) {
	if capacity <= 0 {
		capacity = domain.WindowCapacity
	}
	if len(symbols) == 0 {
		return map[domain.Symbol][]decimal.Decimal{}, nil
	}

	keys := make([]string, len(symbols))
	args := make([]any, 0, len(symbols)+2)
	args = append(args, capacity, ttl.Milliseconds())
	for i, sym := range symbols {
		keys[i] = WindowKey(key, sym)
		v, ok := latest[sym]
		if !ok {
			v = decimal.Zero
		}
		args = append(args, v.String())
	}

	raw, err := windowScript.Run(ctx, s.client, keys, args...).Result()
	if err != nil {
		return nil, unavailable(err)
	}

	lists, ok := raw.([]any)
	if !ok || len(lists) != len(symbols) {
		return nil, fmt.Errorf("window script: unexpected reply %T", raw)
	}

	out := make(map[domain.Symbol][]decimal.Decimal, len(symbols))
	for i, sym := range symbols {
		items, ok := lists[i].([]any)
		if !ok {
			return nil, fmt.Errorf("window script: unexpected list %T for %s", lists[i], sym)
		}
		values := make([]decimal.Decimal, len(items))
		for j, item := range items {
			str, _ := item.(string)
			d, err := decimal.NewFromString(str)
			if err != nil {
				d = decimal.Zero
			}
			values[j] = d
		}
		out[sym] = values
	}
	return out, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", cache.ErrCacheUnavailable, err)
}

// escapeGlob escapes SCAN MATCH metacharacters.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

var (
	_ cache.Store       = (*CacheStore)(nil)
	_ cache.WindowStore = (*CacheStore)(nil)
	_ cache.Backend     = (*CacheStore)(nil)
)
