package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is the authenticated principal as seen by the dashboard.
type User struct {
	ID       int64                      `json:"id"`
	Name     string                     `json:"name"`
	Holdings map[Symbol]decimal.Decimal `json:"holdings"`
}

// Wallet holds a user's balance in one currency.
// Corresponds to wallets table in PostgreSQL.
type Wallet struct {
	ID        int64           // BIGSERIAL primary key
	WalletUID string          // public UUID
	UserID    int64           // owner
	Currency  Symbol          // e.g. BTC
	Amount    decimal.Decimal // NUMERIC(30,8)
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TransactionStatus is the lifecycle state of a transaction.
type TransactionStatus string

// Transaction status constants.
const (
	TxStatusPending   TransactionStatus = "pending"
	TxStatusCompleted TransactionStatus = "completed"
	TxStatusCancelled TransactionStatus = "cancelled"
	TxStatusFailed    TransactionStatus = "failed"
)

// Valid reports whether s is a known status.
func (s TransactionStatus) Valid() bool {
	switch s {
	case TxStatusPending, TxStatusCompleted, TxStatusCancelled, TxStatusFailed:
		return true
	}
	return false
}

// Transaction type constants.
const (
	TxTypeDeposit    = "deposit"
	TxTypeWithdrawal = "withdrawal"
)

// Transaction is a deposit or withdrawal against a wallet.
// Corresponds to transactions table in PostgreSQL.
type Transaction struct {
	ID          string            // UUID primary key
	UserID      int64             // owner
	WalletID    int64             // FK to wallets
	Type        string            // deposit | withdrawal
	Amount      decimal.Decimal   // crypto amount
	Price       decimal.Decimal   // unit price in USD at placement
	Currency    string            // fiat currency, e.g. USD
	Crypto      Symbol            // asset code
	Rate        decimal.Decimal   // fiat conversion rate
	DollarValue decimal.Decimal   // amount * price
	Status      TransactionStatus // pending | completed | cancelled | failed
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
