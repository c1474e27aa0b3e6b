package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"coin-dashboard/internal/domain"
)

// WalletStore provides access to wallets storage.
type WalletStore interface {
	// Create adds a new wallet and fills in ID, WalletUID and timestamps.
	// Returns ErrDuplicateKey if the user already has a wallet in that currency.
	Create(ctx context.Context, w *domain.Wallet) error

	// GetByID retrieves a wallet by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id int64) (*domain.Wallet, error)

	// GetByUserCurrency retrieves a user's wallet for a currency. Returns ErrNotFound if not exists.
	GetByUserCurrency(ctx context.Context, userID int64, currency domain.Symbol) (*domain.Wallet, error)

	// ListByUser retrieves all wallets of a user, ordered by ID ASC.
	ListByUser(ctx context.Context, userID int64) ([]*domain.Wallet, error)

	// Holdings returns currency -> amount for a user. Empty map if none.
	Holdings(ctx context.Context, userID int64) (map[domain.Symbol]decimal.Decimal, error)

	// IncrementAmount adds delta to the wallet amount. Returns ErrNotFound if not exists.
	IncrementAmount(ctx context.Context, id int64, delta decimal.Decimal) error
}

// TransactionStore provides access to transactions storage.
type TransactionStore interface {
	// Insert adds a new transaction. Returns ErrDuplicateKey if ID exists.
	Insert(ctx context.Context, tx *domain.Transaction) error

	// GetByID retrieves a transaction by ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)

	// UpdateStatus moves a transaction from one status to another.
	// Returns ErrNotFound if missing and ErrStaleStatus if the current status is not from.
	UpdateStatus(ctx context.Context, id string, from, to domain.TransactionStatus) error

	// ListRecentByUser retrieves up to limit transactions of a user, newest first.
	ListRecentByUser(ctx context.Context, userID int64, limit int) ([]*domain.Transaction, error)
}

// Settler completes a pending deposit and credits its wallet as one unit of work.
// Stores that can do this transactionally implement it.
type Settler interface {
	SettleDeposit(ctx context.Context, txID string, walletID int64, amount decimal.Decimal) error
}

// SnapshotArchive receives freshly fetched price snapshots for analytics.
type SnapshotArchive interface {
	// InsertSnapshots appends a batch observed at fetchedAtMs.
	InsertSnapshots(ctx context.Context, fetchedAtMs int64, snapshots []domain.PriceSnapshot) error
}
