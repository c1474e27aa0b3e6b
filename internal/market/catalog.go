package market

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"coin-dashboard/internal/cache"
	"coin-dashboard/internal/domain"
	"coin-dashboard/internal/livecoin"
	"coin-dashboard/internal/logging"
)

// Catalog cache keys.
const (
	KeyCatalog     = "currency_catalog"
	KeySymbols     = "currency_symbols"
	KeyCatalogRows = "currency_catalog_rows"
)

// Catalog serves the ranked currency list. Its methods never fail: on
// upstream failure they return the last good copy, or an empty slice.
type Catalog struct {
	provider livecoin.Provider
	gw       *cache.Gateway
	log      *logrus.Entry
}

// NewCatalog creates a catalog over provider.
func NewCatalog(provider livecoin.Provider, gw *cache.Gateway, log *logrus.Entry) *Catalog {
	return &Catalog{
		provider: provider,
		gw:       gw,
		log:      logging.OrDefault(log, "catalog"),
	}
}

// ListCurrencies returns currency metadata sorted by rank.
func (c *Catalog) ListCurrencies(ctx context.Context) []domain.CurrencyMeta {
	metas, stale, err := cache.GetOrComputeStale(ctx, c.gw, KeyCatalog, cache.TTLCatalog, func(ctx context.Context) ([]domain.CurrencyMeta, error) {
		coins, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]domain.CurrencyMeta, 0, len(coins))
		for _, coin := range coins {
			if coin.Code == "" {
				continue
			}
			out = append(out, toMeta(coin))
		}
		sortByRank(out)
		return out, nil
	})
	if err != nil {
		c.log.WithError(err).Warn("currency catalog unavailable")
		return []domain.CurrencyMeta{}
	}
	if stale {
		c.log.Info("serving stale currency catalog")
	}
	return metas
}

// ListSymbols returns the catalog codes. It is cached longer than the
// catalog itself.
func (c *Catalog) ListSymbols(ctx context.Context) []domain.Symbol {
	symbols, _, err := cache.GetOrComputeStale(ctx, c.gw, KeySymbols, cache.TTLSymbols, func(ctx context.Context) ([]domain.Symbol, error) {
		metas := c.ListCurrencies(ctx)
		if len(metas) == 0 {
			return nil, errEmptyResponse
		}
		out := make([]domain.Symbol, len(metas))
		for i, m := range metas {
			out[i] = m.Code
		}
		return out, nil
	})
	if err != nil {
		c.log.WithError(err).Warn("currency symbols unavailable")
		return []domain.Symbol{}
	}
	return symbols
}

// Rows returns priced catalog rows in rank order, used by the trends widget.
func (c *Catalog) Rows(ctx context.Context) []domain.PriceSnapshot {
	rows, _, err := cache.GetOrComputeStale(ctx, c.gw, KeyCatalogRows, cache.TTLCatalog, func(ctx context.Context) ([]domain.PriceSnapshot, error) {
		coins, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(coins, func(i, j int) bool { return rankLess(coins[i].Rank, coins[j].Rank) })
		out := make([]domain.PriceSnapshot, 0, len(coins))
		for _, coin := range coins {
			if snap, ok := toSnapshot(coin); ok {
				out = append(out, snap)
			}
		}
		return out, nil
	})
	if err != nil {
		c.log.WithError(err).Warn("catalog rows unavailable")
		return []domain.PriceSnapshot{}
	}
	return rows
}

// IconMap returns code -> icon URL for catalog entries that carry an icon.
func (c *Catalog) IconMap(ctx context.Context) map[domain.Symbol]string {
	metas := c.ListCurrencies(ctx)
	out := make(map[domain.Symbol]string, len(metas))
	for _, m := range metas {
		if m.IconURL != "" {
			out[m.Code] = m.IconURL
		}
	}
	return out
}

func (c *Catalog) fetch(ctx context.Context) ([]livecoin.Coin, error) {
	coins, err := c.provider.ListCoins(ctx, livecoin.ListRequest{
		Currency: livecoin.DefaultCurrency,
		Sort:     livecoin.DefaultCatalogSort,
		Order:    livecoin.DefaultCatalogOrder,
		Offset:   0,
		Limit:    livecoin.DefaultCatalogLimit,
		Meta:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("list coins: %w", err)
	}
	if len(coins) == 0 {
		return nil, fmt.Errorf("list coins: %w", errEmptyResponse)
	}
	return coins, nil
}

// sortByRank orders by rank ascending with unranked entries last, ties by code.
func sortByRank(metas []domain.CurrencyMeta) {
	sort.SliceStable(metas, func(i, j int) bool {
		if metas[i].Rank != metas[j].Rank {
			return rankLess(metas[i].Rank, metas[j].Rank)
		}
		return metas[i].Code < metas[j].Code
	})
}

func rankLess(a, b int) bool {
	switch {
	case a <= 0 && b <= 0:
		return false
	case a <= 0:
		return false
	case b <= 0:
		return true
	default:
		return a < b
	}
}
