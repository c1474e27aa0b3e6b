package market

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"coin-dashboard/internal/cache"
	"coin-dashboard/internal/domain"
	"coin-dashboard/internal/logging"
	"coin-dashboard/internal/observability"
	"coin-dashboard/internal/storage/memory"
)

// Window keys.
const (
	AllChartKey          = "all_chart"
	WalletChartKeyPrefix = "wallet_chart:"
)

// WalletChartKey returns the window key of a wallet-based chart.
func WalletChartKey(symbols []domain.Symbol) string {
	return WalletChartKeyPrefix + domain.JoinSymbols(domain.SortedSymbols(symbols), ",")
}

// WindowBuffer keeps fixed-length rolling sample windows per window key.
// Advances go through the shared store; when it fails a process-local
// window takes over so charts keep rendering.
type WindowBuffer struct {
	store    cache.WindowStore
	name     string
	local    *memory.CacheStore
	capacity int
	ttl      time.Duration
	log      *logrus.Entry
}

// NewWindowBuffer creates a buffer over store. A nil store uses the
// process-local window only.
func NewWindowBuffer(store cache.WindowStore, log *logrus.Entry) *WindowBuffer {
	b := &WindowBuffer{
		store:    store,
		name:     "local",
		local:    memory.NewCacheStore(),
		capacity: domain.WindowCapacity,
		ttl:      cache.TTLWindow,
		log:      logging.OrDefault(log, "window"),
	}
	if named, ok := store.(interface{ Name() string }); ok {
		b.name = named.Name()
	}
	return b
}

// Advance evicts the oldest sample and appends latest[symbol] (zero when
// missing) for every symbol under key, returning windows of exactly
// WindowCapacity samples.
func (b *WindowBuffer) Advance(ctx context.Context, key string, symbols []domain.Symbol, latest map[domain.Symbol]decimal.Decimal) map[domain.Symbol][]decimal.Decimal {
	if len(symbols) == 0 {
		return map[domain.Symbol][]decimal.Decimal{}
	}

	if b.store != nil {
		out, err := b.store.AdvanceWindow(ctx, key, symbols, latest, b.capacity, b.ttl)
		if err == nil {
			observability.RecordWindowAdvance(b.name)
			return out
		}
		b.log.WithError(err).WithField("key", key).Warn("window store unavailable, using local window")
	}

	// The local store cannot fail.
	out, _ := b.local.AdvanceWindow(ctx, key, symbols, latest, b.capacity, b.ttl)
	observability.RecordWindowAdvance("local")
	return out
}

// Capacity returns the window length.
func (b *WindowBuffer) Capacity() int { return b.capacity }
