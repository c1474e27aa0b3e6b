package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"coin-dashboard/internal/domain"
	"coin-dashboard/internal/storage"
)

func TestTransactionStore_InsertAndUpdateStatus(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	tx := &domain.Transaction{ID: "t1", UserID: 1, WalletID: 1, Status: domain.TxStatusPending}
	if err := store.Insert(ctx, tx); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := store.UpdateStatus(ctx, "t1", domain.TxStatusPending, domain.TxStatusCompleted); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	err := store.UpdateStatus(ctx, "t1", domain.TxStatusPending, domain.TxStatusCancelled)
	if !errors.Is(err, storage.ErrStaleStatus) {
		t.Errorf("Expected ErrStaleStatus, got %v", err)
	}

	got, _ := store.GetByID(ctx, "t1")
	if got.Status != domain.TxStatusCompleted {
		t.Errorf("Expected completed, got %s", got.Status)
	}
}

func TestTransactionStore_Duplicate(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	tx := &domain.Transaction{ID: "t1", UserID: 1, Status: domain.TxStatusPending}
	_ = store.Insert(ctx, tx)
	if err := store.Insert(ctx, tx); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestTransactionStore_ListRecentByUser(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()
	base := time.Unix(1700000000, 0).UTC()

	for i := 0; i < 7; i++ {
		_ = store.Insert(ctx, &domain.Transaction{
			ID:        fmt.Sprintf("t%d", i),
			UserID:    1,
			Status:    domain.TxStatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	_ = store.Insert(ctx, &domain.Transaction{ID: "other", UserID: 2, Status: domain.TxStatusPending})

	result, err := store.ListRecentByUser(ctx, 1, 5)
	if err != nil {
		t.Fatalf("ListRecentByUser failed: %v", err)
	}
	if len(result) != 5 {
		t.Fatalf("Expected 5, got %d", len(result))
	}
	if result[0].ID != "t6" || result[4].ID != "t2" {
		t.Errorf("Expected newest first t6..t2, got %s..%s", result[0].ID, result[4].ID)
	}
}

func TestTransactionStore_NotFound(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := store.UpdateStatus(ctx, "missing", domain.TxStatusPending, domain.TxStatusFailed); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTransactionStore_SettleDeposit(t *testing.T) {
	wallets := NewWalletStore()
	store := NewTransactionStore(WithWallets(wallets))
	ctx := context.Background()

	w := &domain.Wallet{UserID: 1, Currency: "BTC", Amount: decimal.Zero}
	if err := wallets.Create(ctx, w); err != nil {
		t.Fatalf("Create wallet failed: %v", err)
	}
	tx := &domain.Transaction{ID: "t1", UserID: 1, WalletID: w.ID, Amount: decimal.RequireFromString("0.5"), Status: domain.TxStatusPending}
	if err := store.Insert(ctx, tx); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := store.SettleDeposit(ctx, "t1", w.ID, tx.Amount); err != nil {
		t.Fatalf("SettleDeposit failed: %v", err)
	}
	// A second settle must not credit twice.
	if err := store.SettleDeposit(ctx, "t1", w.ID, tx.Amount); !errors.Is(err, storage.ErrStaleStatus) {
		t.Errorf("Expected ErrStaleStatus, got %v", err)
	}

	got, _ := store.GetByID(ctx, "t1")
	if got.Status != domain.TxStatusCompleted {
		t.Errorf("Expected completed, got %s", got.Status)
	}
	credited, _ := wallets.GetByID(ctx, w.ID)
	if !credited.Amount.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("Expected amount 0.5, got %s", credited.Amount)
	}
}

func TestTransactionStore_SettleDepositMissingWallet(t *testing.T) {
	store := NewTransactionStore(WithWallets(NewWalletStore()))
	ctx := context.Background()

	tx := &domain.Transaction{ID: "t1", UserID: 1, WalletID: 99, Amount: decimal.NewFromInt(1), Status: domain.TxStatusPending}
	if err := store.Insert(ctx, tx); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := store.SettleDeposit(ctx, "t1", 99, tx.Amount); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	got, _ := store.GetByID(ctx, "t1")
	if got.Status != domain.TxStatusPending {
		t.Errorf("Expected pending after failed settle, got %s", got.Status)
	}

	if err := NewTransactionStore().SettleDeposit(ctx, "t1", 99, tx.Amount); !errors.Is(err, errNoWallets) {
		t.Errorf("Expected errNoWallets, got %v", err)
	}
}
