package market

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"coin-dashboard/internal/cache"
	"coin-dashboard/internal/domain"
	"coin-dashboard/internal/livecoin"
	"coin-dashboard/internal/logging"
	"coin-dashboard/internal/observability"
	"coin-dashboard/internal/storage"
)

// SnapshotKeyPrefix prefixes every snapshot cache key.
const SnapshotKeyPrefix = "price_snapshots:"

// SnapshotCacheKey is deterministic over permutations, duplicates and case
// of codes.
func SnapshotCacheKey(codes []domain.Symbol) string {
	return SnapshotKeyPrefix + domain.JoinSymbols(domain.SortedSymbols(codes), ",")
}

// SnapshotFetcher resolves current prices for a set of symbols with one
// batched upstream call per cache miss.
type SnapshotFetcher struct {
	provider livecoin.Provider
	gw       *cache.Gateway
	archive  storage.SnapshotArchive
	log      *logrus.Entry
	now      func() time.Time
}

// NewSnapshotFetcher creates a fetcher. archive may be nil.
func NewSnapshotFetcher(provider livecoin.Provider, gw *cache.Gateway, archive storage.SnapshotArchive, log *logrus.Entry) *SnapshotFetcher {
	return &SnapshotFetcher{
		provider: provider,
		gw:       gw,
		archive:  archive,
		log:      logging.OrDefault(log, "snapshots"),
		now:      time.Now,
	}
}

// FetchSnapshots returns a result for every requested code. Codes the
// provider did not return, and all codes on upstream failure, are Unavailable.
func (f *SnapshotFetcher) FetchSnapshots(ctx context.Context, codes []domain.Symbol, ttl time.Duration) map[domain.Symbol]domain.SnapshotResult {
	set := domain.SortedSymbols(codes)
	out := make(map[domain.Symbol]domain.SnapshotResult, len(set))
	if len(set) == 0 {
		return out
	}

	key := SnapshotKeyPrefix + domain.JoinSymbols(set, ",")
	found, err := cache.GetOrCompute(ctx, f.gw, key, ttl, func(ctx context.Context) (map[domain.Symbol]domain.PriceSnapshot, error) {
		return f.fetch(ctx, set)
	})
	if err != nil {
		f.log.WithError(err).WithField("codes", domain.JoinSymbols(set, ",")).Warn("price snapshots unavailable")
		found = nil
	}

	missing := 0
	for _, code := range set {
		if snap, ok := found[code]; ok {
			out[code] = domain.Available(snap)
			continue
		}
		out[code] = domain.Unavailable(code)
		missing++
	}
	if missing > 0 {
		observability.RecordUnavailableSymbols(missing)
	}

	// Callers may look up the codes they passed in, not just normalized ones.
	for _, c := range codes {
		if _, ok := out[c]; !ok {
			if r, ok := out[domain.NormalizeSymbol(string(c))]; ok {
				out[c] = r
			}
		}
	}
	return out
}

func (f *SnapshotFetcher) fetch(ctx context.Context, set []domain.Symbol) (map[domain.Symbol]domain.PriceSnapshot, error) {
	codes := make([]string, len(set))
	for i, s := range set {
		codes[i] = string(s)
	}

	coins, err := f.provider.ListCoins(ctx, livecoin.ListRequest{
		Currency: livecoin.DefaultCurrency,
		Sort:     livecoin.DefaultCatalogSort,
		Order:    livecoin.DefaultCatalogOrder,
		Offset:   0,
		Limit:    len(set),
		Meta:     true,
		Codes:    codes,
	})
	if err != nil {
		return nil, fmt.Errorf("list coins: %w", err)
	}
	if len(coins) == 0 {
		return nil, fmt.Errorf("list coins: %w", errEmptyResponse)
	}

	wanted := make(map[domain.Symbol]struct{}, len(set))
	for _, s := range set {
		wanted[s] = struct{}{}
	}

	found := make(map[domain.Symbol]domain.PriceSnapshot, len(coins))
	batch := make([]domain.PriceSnapshot, 0, len(coins))
	for _, coin := range coins {
		snap, ok := toSnapshot(coin)
		if !ok {
			continue
		}
		if _, ok := wanted[snap.Code]; !ok {
			continue
		}
		found[snap.Code] = snap
		batch = append(batch, snap)
	}

	f.archiveBatch(ctx, batch)
	return found, nil
}

func (f *SnapshotFetcher) archiveBatch(ctx context.Context, batch []domain.PriceSnapshot) {
	if f.archive == nil || len(batch) == 0 {
		return
	}
	if err := f.archive.InsertSnapshots(ctx, f.now().UnixMilli(), batch); err != nil {
		f.log.WithError(err).Warn("archive snapshots failed")
		return
	}
	observability.RecordSnapshotsArchived(len(batch))
}
