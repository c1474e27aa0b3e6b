package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"coin-dashboard/internal/domain"
	"coin-dashboard/internal/storage"
)

// TransactionStore implements storage.TransactionStore and storage.Settler
// using PostgreSQL.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface checks.
var (
	_ storage.TransactionStore = (*TransactionStore)(nil)
	_ storage.Settler          = (*TransactionStore)(nil)
)

const transactionColumns = `
	id::text, user_id, wallet_id, type, amount::text, price::text, currency,
	crypto, rate::text, dollar_value::text, status, created_at, updated_at
`

// Insert adds a new transaction. Returns ErrDuplicateKey if ID exists.
func (s *TransactionStore) Insert(ctx context.Context, tx *domain.Transaction) (err error) {
	if tx == nil || tx.ID == "" || tx.UserID == 0 || !tx.Status.Valid() {
		return storage.ErrInvalidInput
	}
	defer observe("transaction_insert")(&err)

	now := time.Now().UTC()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now

	query := `
		INSERT INTO transactions (
			id, user_id, wallet_id, type, amount, price, currency,
			crypto, rate, dollar_value, status, created_at, updated_at
		) VALUES (
			$1::uuid, $2, $3, $4, $5::numeric, $6::numeric, $7,
			$8, $9::numeric, $10::numeric, $11, $12, $13
		)
	`

	_, err = s.pool.Exec(ctx, query,
		tx.ID, tx.UserID, tx.WalletID, tx.Type,
		tx.Amount.String(), tx.Price.String(), tx.Currency,
		string(tx.Crypto), tx.Rate.String(), tx.DollarValue.String(),
		string(tx.Status), tx.CreatedAt, tx.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		if isInvalidTextError(err) {
			return storage.ErrInvalidInput
		}
		return fmt.Errorf("insert transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a transaction by ID. Returns ErrNotFound if not exists.
func (s *TransactionStore) GetByID(ctx context.Context, id string) (tx *domain.Transaction, err error) {
	defer observe("transaction_get")(&err)

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1::uuid`

	tx, err = scanTransaction(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		// A malformed ID cannot name an existing row.
		if isNotFoundError(err) || isInvalidTextError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("query transaction: %w", err)
	}
	return tx, nil
}

// UpdateStatus moves a transaction from one status to another.
func (s *TransactionStore) UpdateStatus(ctx context.Context, id string, from, to domain.TransactionStatus) (err error) {
	if !to.Valid() {
		return storage.ErrInvalidInput
	}
	defer observe("transaction_update_status")(&err)

	return transition(ctx, s.pool, id, from, to)
}

// ListRecentByUser retrieves up to limit transactions of a user, newest first.
func (s *TransactionStore) ListRecentByUser(ctx context.Context, userID int64, limit int) (txs []*domain.Transaction, err error) {
	defer observe("transaction_list_recent")(&err)

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, seq DESC
	`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return txs, nil
}

// SettleDeposit marks a pending deposit completed and credits walletID by
// amount in one database transaction. Nothing is written unless both succeed.
func (s *TransactionStore) SettleDeposit(ctx context.Context, txID string, walletID int64, amount decimal.Decimal) (err error) {
	defer observe("transaction_settle")(&err)

	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin settle: %w", err)
	}
	defer func() {
		if err != nil {
			_ = dbTx.Rollback(ctx)
		}
	}()

	if err = transition(ctx, dbTx, txID, domain.TxStatusPending, domain.TxStatusCompleted); err != nil {
		return err
	}
	if err = incrementWallet(ctx, dbTx, walletID, amount); err != nil {
		return err
	}
	if err = dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit settle: %w", err)
	}
	return nil
}

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	execer
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// transition applies a compare-and-set on status. When no row matches it
// tells a missing transaction apart from one in another status.
func transition(ctx context.Context, db querier, id string, from, to domain.TransactionStatus) error {
	query := `
		UPDATE transactions
		SET status = $3, updated_at = now()
		WHERE id = $1::uuid AND status = $2
	`

	tag, err := db.Exec(ctx, query, id, string(from), string(to))
	if err != nil {
		if isInvalidTextError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("update transaction status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	err = db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1::uuid)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check transaction: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrStaleStatus
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		tx                               domain.Transaction
		crypto, status                   string
		amount, price, rate, dollarValue string
	)
	err := row.Scan(
		&tx.ID, &tx.UserID, &tx.WalletID, &tx.Type, &amount, &price, &tx.Currency,
		&crypto, &rate, &dollarValue, &status, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	for _, f := range []struct {
		raw string
		dst *decimal.Decimal
	}{
		{amount, &tx.Amount},
		{price, &tx.Price},
		{rate, &tx.Rate},
		{dollarValue, &tx.DollarValue},
	} {
		d, err := parseNumeric(f.raw)
		if err != nil {
			return nil, err
		}
		*f.dst = d
	}

	tx.Crypto = domain.Symbol(crypto)
	tx.Status = domain.TransactionStatus(status)
	return &tx, nil
}
