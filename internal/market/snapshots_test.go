package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coin-dashboard/internal/cache"
	"coin-dashboard/internal/domain"
	"coin-dashboard/internal/livecoin/stub"
)

func TestSnapshotCacheKey_Deterministic(t *testing.T) {
	want := "price_snapshots:ADA,BTC,ETH"

	perms := [][]domain.Symbol{
		{"BTC", "ETH", "ADA"},
		{"ADA", "BTC", "ETH"},
		{"eth", "ada", "btc"},
		{"ETH", "BTC", "ADA", "BTC", " eth "},
	}
	for _, p := range perms {
		assert.Equal(t, want, SnapshotCacheKey(p), "codes %v", p)
	}
}

func TestFetchSnapshots_MissingSymbolUnavailable(t *testing.T) {
	env := newTestEnv(t, stub.Coin("BTC", 1, 43000.5, 1.02), stub.Coin("ETH", 2, 2300, 0.99))
	f := env.facade.snapshots

	out := f.FetchSnapshots(ctx(), []domain.Symbol{"BTC", "XYZ"}, cache.TTLSnapshots)

	require.Len(t, out, 2)
	require.True(t, out["BTC"].Available)
	assert.True(t, out["BTC"].Snapshot.Price.Equal(dec("43000.5")))
	assert.True(t, out["BTC"].Snapshot.Change24hPct.Equal(dec("102")))
	assert.False(t, out["XYZ"].Available)
	assert.Equal(t, domain.Symbol("XYZ"), out["XYZ"].Code)

	req := env.provider.LastList()
	assert.Equal(t, []string{"BTC", "XYZ"}, req.Codes)
	assert.Equal(t, 2, req.Limit)
}

func TestFetchSnapshots_EmptyInputNoUpstreamCall(t *testing.T) {
	env := newTestEnv(t, stub.Coin("BTC", 1, 1, 1))

	out := env.facade.snapshots.FetchSnapshots(ctx(), nil, cache.TTLSnapshots)

	assert.Empty(t, out)
	assert.Equal(t, 0, env.provider.ListCalls())
}

func TestFetchSnapshots_CachedWithinTTL(t *testing.T) {
	env := newTestEnv(t, stub.Coin("BTC", 1, 1, 1), stub.Coin("ETH", 2, 2, 1))
	f := env.facade.snapshots

	f.FetchSnapshots(ctx(), []domain.Symbol{"BTC", "ETH"}, cache.TTLSnapshots)
	f.FetchSnapshots(ctx(), []domain.Symbol{"eth", "btc"}, cache.TTLSnapshots)
	assert.Equal(t, 1, env.provider.ListCalls(), "permuted codes must share the cache entry")

	env.clock.Advance(cache.TTLSnapshots)
	f.FetchSnapshots(ctx(), []domain.Symbol{"BTC", "ETH"}, cache.TTLSnapshots)
	assert.Equal(t, 2, env.provider.ListCalls())
}

func TestFetchSnapshots_UpstreamFailureAllUnavailable(t *testing.T) {
	env := newTestEnv(t, stub.Coin("BTC", 1, 1, 1))
	env.provider.SetListErr(errUpstreamDown)
	f := env.facade.snapshots

	codes := []domain.Symbol{"BTC", "ETH", "SOL"}
	out := f.FetchSnapshots(ctx(), codes, cache.TTLSnapshots)

	require.Len(t, out, 3)
	for _, c := range codes {
		assert.False(t, out[c].Available, "code %s", c)
	}

	// Failure was not cached.
	env.provider.SetListErr(nil)
	out = f.FetchSnapshots(ctx(), codes, cache.TTLSnapshots)
	assert.True(t, out["BTC"].Available)
	assert.Equal(t, 2, env.provider.ListCalls())
}

func TestFetchSnapshots_NilRateUnavailable(t *testing.T) {
	coin := stub.Coin("BTC", 1, 1, 1)
	coin.Rate = nil
	env := newTestEnv(t, coin)

	out := env.facade.snapshots.FetchSnapshots(ctx(), []domain.Symbol{"BTC"}, cache.TTLSnapshots)
	assert.False(t, out["BTC"].Available)
}

func TestFetchSnapshots_ArchivesFreshBatchesOnly(t *testing.T) {
	env := newTestEnv(t, stub.Coin("BTC", 1, 1, 1))
	f := env.facade.snapshots

	f.FetchSnapshots(ctx(), []domain.Symbol{"BTC"}, cache.TTLSnapshots)
	f.FetchSnapshots(ctx(), []domain.Symbol{"BTC"}, cache.TTLSnapshots)

	assert.Equal(t, 1, env.archive.Batches())
}

func TestFetchSnapshots_ArchiveErrorIgnored(t *testing.T) {
	env := newTestEnv(t, stub.Coin("BTC", 1, 1, 1))
	env.archive.err = errUpstreamDown

	out := env.facade.snapshots.FetchSnapshots(ctx(), []domain.Symbol{"BTC"}, cache.TTLSnapshots)
	assert.True(t, out["BTC"].Available)
}

func TestFetchSnapshots_LookupByRawCode(t *testing.T) {
	env := newTestEnv(t, stub.Coin("BTC", 1, 1, 1))

	out := env.facade.snapshots.FetchSnapshots(ctx(), []domain.Symbol{"btc"}, cache.TTLSnapshots)
	assert.True(t, out["btc"].Available)
	assert.True(t, out["BTC"].Available)
}
