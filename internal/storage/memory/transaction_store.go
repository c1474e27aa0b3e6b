package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"coin-dashboard/internal/domain"
	"coin-dashboard/internal/storage"
)

var errNoWallets = errors.New("transaction store has no wallet store")

// TransactionStore is an in-memory implementation of storage.TransactionStore
// and storage.Settler.
type TransactionStore struct {
	mu      sync.RWMutex
	data    map[string]*domain.Transaction
	seq     map[string]int // insertion order, breaks CreatedAt ties
	next    int
	wallets *WalletStore
}

// TransactionOption configures TransactionStore.
type TransactionOption func(*TransactionStore)

// WithWallets sets the wallet store SettleDeposit credits.
func WithWallets(w *WalletStore) TransactionOption {
	return func(s *TransactionStore) {
		s.wallets = w
	}
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore(opts ...TransactionOption) *TransactionStore {
	s := &TransactionStore{
		data: make(map[string]*domain.Transaction),
		seq:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert adds a new transaction. Returns ErrDuplicateKey if ID exists.
func (s *TransactionStore) Insert(_ context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.ID == "" || tx.UserID == 0 || !tx.Status.Valid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[tx.ID]; exists {
		return storage.ErrDuplicateKey
	}

	now := time.Now().UTC()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now

	txCopy := *tx
	s.data[tx.ID] = &txCopy
	s.next++
	s.seq[tx.ID] = s.next
	return nil
}

// GetByID retrieves a transaction by ID. Returns ErrNotFound if not exists.
func (s *TransactionStore) GetByID(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	txCopy := *tx
	return &txCopy, nil
}

// UpdateStatus moves a transaction from one status to another.
func (s *TransactionStore) UpdateStatus(_ context.Context, id string, from, to domain.TransactionStatus) error {
	if !to.Valid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.data[id]
	if !ok {
		return storage.ErrNotFound
	}
	if tx.Status != from {
		return storage.ErrStaleStatus
	}
	tx.Status = to
	tx.UpdatedAt = time.Now().UTC()
	return nil
}

// SettleDeposit marks a pending deposit completed and credits walletID by
// amount. Both stores stay locked until both changes are applied; on error
// neither is.
func (s *TransactionStore) SettleDeposit(_ context.Context, txID string, walletID int64, amount decimal.Decimal) error {
	if s.wallets == nil {
		return errNoWallets
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.data[txID]
	if !ok {
		return storage.ErrNotFound
	}
	if tx.Status != domain.TxStatusPending {
		return storage.ErrStaleStatus
	}

	s.wallets.mu.Lock()
	defer s.wallets.mu.Unlock()

	w, ok := s.wallets.data[walletID]
	if !ok {
		return storage.ErrNotFound
	}

	now := time.Now().UTC()
	w.Amount = w.Amount.Add(amount)
	w.UpdatedAt = now
	tx.Status = domain.TxStatusCompleted
	tx.UpdatedAt = now
	return nil
}

// ListRecentByUser retrieves up to limit transactions of a user, newest first.
func (s *TransactionStore) ListRecentByUser(_ context.Context, userID int64, limit int) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, tx := range s.data {
		if tx.UserID == userID {
			txCopy := *tx
			result = append(result, &txCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return s.seq[result[i].ID] > s.seq[result[j].ID]
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var (
	_ storage.TransactionStore = (*TransactionStore)(nil)
	_ storage.Settler          = (*TransactionStore)(nil)
)
