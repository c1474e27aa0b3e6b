package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coin-dashboard/internal/cache"
	"coin-dashboard/internal/domain"
)

func TestWarm(t *testing.T) {
	env := newTestEnv(t, rankedCoins(8)...)

	res, err := env.facade.Warm(ctx(), 5)
	require.NoError(t, err)
	assert.Equal(t, WarmResult{Currencies: 8, Symbols: 8, Rows: 8, TopSymbols: 5}, res)

	// Everything is now served from cache.
	calls := env.provider.ListCalls()
	env.facade.TopSymbols(ctx(), 5)
	env.facade.Catalog().ListSymbols(ctx())
	assert.Equal(t, calls, env.provider.ListCalls())
}

func TestWarm_UpstreamDown(t *testing.T) {
	env := newTestEnv(t)
	env.provider.SetListErr(errUpstreamDown)

	_, err := env.facade.Warm(ctx(), 5)
	assert.Error(t, err)
}

func TestFlush_AllPrefixes(t *testing.T) {
	env := newTestEnv(t, rankedCoins(3)...)

	_, err := env.facade.Warm(ctx(), 2)
	require.NoError(t, err)
	env.facade.ChartDataset(ctx(), []domain.Symbol{"C01"}, false)

	n, err := env.facade.Flush(ctx(), "")
	require.NoError(t, err)
	assert.Greater(t, n, 0)

	_, err = env.store.Get(ctx(), KeyCatalog)
	assert.ErrorIs(t, err, cache.ErrMiss)
	_, err = env.store.Get(ctx(), cache.LastGoodKey(KeyCatalog))
	assert.ErrorIs(t, err, cache.ErrMiss)

	// Without last-good copies a failing upstream now yields nothing.
	env.provider.SetListErr(errUpstreamDown)
	assert.Empty(t, env.facade.Catalog().ListCurrencies(ctx()))
}

func TestFlush_SinglePrefix(t *testing.T) {
	env := newTestEnv(t, rankedCoins(3)...)

	env.facade.PricesFor(ctx(), []domain.Symbol{"C01"})
	env.facade.Catalog().ListCurrencies(ctx())

	n, err := env.facade.Flush(ctx(), SnapshotKeyPrefix)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = env.store.Get(ctx(), KeyCatalog)
	assert.NoError(t, err)
}
