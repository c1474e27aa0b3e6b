package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"coin-dashboard/internal/domain"
	"coin-dashboard/internal/storage"
)

// WalletStore implements storage.WalletStore using PostgreSQL.
type WalletStore struct {
	pool *Pool
}

// NewWalletStore creates a new WalletStore.
func NewWalletStore(pool *Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WalletStore = (*WalletStore)(nil)

const walletColumns = `id, wallet_uid::text, user_id, currency, amount::text, created_at, updated_at`

// Create adds a new wallet. Returns ErrDuplicateKey if (user_id, currency) exists.
func (s *WalletStore) Create(ctx context.Context, w *domain.Wallet) (err error) {
	if w == nil || w.UserID == 0 || w.Currency == "" {
		return storage.ErrInvalidInput
	}
	defer observe("wallet_create")(&err)

	if w.WalletUID == "" {
		w.WalletUID = uuid.NewString()
	}

	query := `
		INSERT INTO wallets (wallet_uid, user_id, currency, amount)
		VALUES ($1::uuid, $2, $3, $4::numeric)
		RETURNING id, created_at, updated_at
	`

	err = s.pool.QueryRow(ctx, query,
		w.WalletUID, w.UserID, string(w.Currency), w.Amount.String(),
	).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert wallet: %w", err)
	}

	return nil
}

// GetByID retrieves a wallet by its ID. Returns ErrNotFound if not exists.
func (s *WalletStore) GetByID(ctx context.Context, id int64) (w *domain.Wallet, err error) {
	defer observe("wallet_get")(&err)

	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`

	w, err = scanWallet(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("query wallet: %w", err)
	}
	return w, nil
}

// GetByUserCurrency retrieves a user's wallet for a currency.
func (s *WalletStore) GetByUserCurrency(ctx context.Context, userID int64, currency domain.Symbol) (w *domain.Wallet, err error) {
	defer observe("wallet_get_currency")(&err)

	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 AND currency = $2`

	w, err = scanWallet(s.pool.QueryRow(ctx, query, userID, string(currency)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("query wallet: %w", err)
	}
	return w, nil
}

// ListByUser retrieves all wallets of a user, ordered by ID ASC.
func (s *WalletStore) ListByUser(ctx context.Context, userID int64) (wallets []*domain.Wallet, err error) {
	defer observe("wallet_list")(&err)

	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 ORDER BY id ASC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query wallets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		wallets = append(wallets, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallets: %w", err)
	}

	return wallets, nil
}

// Holdings returns currency -> amount for a user.
func (s *WalletStore) Holdings(ctx context.Context, userID int64) (map[domain.Symbol]decimal.Decimal, error) {
	wallets, err := s.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[domain.Symbol]decimal.Decimal, len(wallets))
	for _, w := range wallets {
		out[w.Currency] = out[w.Currency].Add(w.Amount)
	}
	return out, nil
}

// IncrementAmount adds delta to the wallet amount.
func (s *WalletStore) IncrementAmount(ctx context.Context, id int64, delta decimal.Decimal) (err error) {
	defer observe("wallet_increment")(&err)
	return incrementWallet(ctx, s.pool, id, delta)
}

// execer is satisfied by both the pool and an open transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func incrementWallet(ctx context.Context, db execer, id int64, delta decimal.Decimal) error {
	query := `
		UPDATE wallets
		SET amount = amount + $2::numeric, updated_at = now()
		WHERE id = $1
	`

	tag, err := db.Exec(ctx, query, id, delta.String())
	if err != nil {
		return fmt.Errorf("increment wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var (
		w        domain.Wallet
		currency string
		amount   string
	)
	if err := row.Scan(&w.ID, &w.WalletUID, &w.UserID, &currency, &amount, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	d, err := parseNumeric(amount)
	if err != nil {
		return nil, err
	}
	w.Currency = domain.Symbol(currency)
	w.Amount = d
	return &w, nil
}
