package postgres

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coin-dashboard/internal/domain"
	"coin-dashboard/internal/storage"
)

func TestWalletStore_CreateAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWalletStore(pool)
	ctx := context.Background()

	w := &domain.Wallet{UserID: 7, Currency: "BTC", Amount: decimal.RequireFromString("0.5")}
	require.NoError(t, store.Create(ctx, w))
	assert.NotZero(t, w.ID)
	assert.NotEmpty(t, w.WalletUID)
	assert.NotZero(t, w.CreatedAt)

	got, err := store.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.WalletUID, got.WalletUID)
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, domain.Symbol("BTC"), got.Currency)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("0.5")), "amount %s", got.Amount)

	byCurrency, err := store.GetByUserCurrency(ctx, 7, "BTC")
	require.NoError(t, err)
	assert.Equal(t, w.ID, byCurrency.ID)
}

func TestWalletStore_CreateDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWalletStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &domain.Wallet{UserID: 1, Currency: "ETH"}))

	err := store.Create(ctx, &domain.Wallet{UserID: 1, Currency: "ETH"})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	err = store.Create(ctx, &domain.Wallet{UserID: 0, Currency: "ETH"})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestWalletStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWalletStore(pool)
	ctx := context.Background()

	_, err := store.GetByID(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.GetByUserCurrency(ctx, 1, "DOGE")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.IncrementAmount(ctx, 999, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWalletStore_ListHoldingsIncrement(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWalletStore(pool)
	ctx := context.Background()

	btc := &domain.Wallet{UserID: 3, Currency: "BTC", Amount: decimal.NewFromInt(1)}
	eth := &domain.Wallet{UserID: 3, Currency: "ETH", Amount: decimal.NewFromInt(10)}
	other := &domain.Wallet{UserID: 4, Currency: "BTC", Amount: decimal.NewFromInt(99)}
	for _, w := range []*domain.Wallet{btc, eth, other} {
		require.NoError(t, store.Create(ctx, w))
	}

	require.NoError(t, store.IncrementAmount(ctx, btc.ID, decimal.RequireFromString("0.25")))

	wallets, err := store.ListByUser(ctx, 3)
	require.NoError(t, err)
	require.Len(t, wallets, 2)
	assert.Equal(t, btc.ID, wallets[0].ID)
	assert.Equal(t, eth.ID, wallets[1].ID)

	holdings, err := store.Holdings(ctx, 3)
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	assert.True(t, holdings["BTC"].Equal(decimal.RequireFromString("1.25")), "btc %s", holdings["BTC"])
	assert.True(t, holdings["ETH"].Equal(decimal.NewFromInt(10)))

	empty, err := store.Holdings(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
