package market

import (
	"context"
	"fmt"
)

// KeyPrefixes lists every cache key prefix the facade writes, including
// rolling windows. Last-good shadows share their live key's prefix.
func KeyPrefixes() []string {
	return []string{
		KeyCatalog, // also matches KeyCatalogRows
		KeySymbols,
		TopSymbolsKeyPrefix,
		SnapshotKeyPrefix,
		HistoryKeyPrefix,
		AllChartKey,
		WalletChartKeyPrefix,
	}
}

// Flush removes cached market data. An empty prefix flushes every prefix in
// KeyPrefixes; the returned count is the number of keys removed.
func (f *Facade) Flush(ctx context.Context, prefix string) (int, error) {
	prefixes := []string{prefix}
	if prefix == "" {
		prefixes = KeyPrefixes()
	}

	total := 0
	for _, p := range prefixes {
		n, err := f.gw.Invalidate(ctx, p)
		if err != nil {
			return total, err
		}
		total += n
	}
	f.log.WithField("removed", total).Info("cache flushed")
	return total, nil
}

// WarmResult reports what Warm loaded.
type WarmResult struct {
	Currencies int `json:"currencies"`
	Symbols    int `json:"symbols"`
	Rows       int `json:"rows"`
	TopSymbols int `json:"top_symbols"`
}

// Warm loads the catalog views and the top-n symbols into the cache. It
// fails when the catalog came back empty, which means upstream was down and
// nothing was cached.
func (f *Facade) Warm(ctx context.Context, n int) (WarmResult, error) {
	res := WarmResult{
		Currencies: len(f.catalog.ListCurrencies(ctx)),
		Symbols:    len(f.catalog.ListSymbols(ctx)),
		Rows:       len(f.catalog.Rows(ctx)),
	}
	if res.Currencies == 0 {
		return res, fmt.Errorf("warm catalog: %w", errEmptyResponse)
	}
	res.TopSymbols = len(f.TopSymbols(ctx, n))
	return res, nil
}
