package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coin-dashboard/internal/domain"
	"coin-dashboard/internal/storage"
)

// WalletStore is an in-memory implementation of storage.WalletStore.
type WalletStore struct {
	mu     sync.RWMutex
	data   map[int64]*domain.Wallet
	nextID int64
}

// NewWalletStore creates a new in-memory wallet store.
func NewWalletStore() *WalletStore {
	return &WalletStore{
		data: make(map[int64]*domain.Wallet),
	}
}

// Create adds a new wallet. Returns ErrDuplicateKey if (user_id, currency) exists.
func (s *WalletStore) Create(_ context.Context, w *domain.Wallet) error {
	if w == nil || w.UserID == 0 || w.Currency == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.data {
		if existing.UserID == w.UserID && existing.Currency == w.Currency {
			return storage.ErrDuplicateKey
		}
	}

	s.nextID++
	now := time.Now().UTC()
	w.ID = s.nextID
	if w.WalletUID == "" {
		w.WalletUID = uuid.NewString()
	}
	w.CreatedAt = now
	w.UpdatedAt = now

	walletCopy := *w
	s.data[w.ID] = &walletCopy
	return nil
}

// GetByID retrieves a wallet by its ID. Returns ErrNotFound if not exists.
func (s *WalletStore) GetByID(_ context.Context, id int64) (*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	walletCopy := *w
	return &walletCopy, nil
}

// GetByUserCurrency retrieves a user's wallet for a currency.
func (s *WalletStore) GetByUserCurrency(_ context.Context, userID int64, currency domain.Symbol) (*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, w := range s.data {
		if w.UserID == userID && w.Currency == currency {
			walletCopy := *w
			return &walletCopy, nil
		}
	}
	return nil, storage.ErrNotFound
}

// ListByUser retrieves all wallets of a user, ordered by ID ASC.
func (s *WalletStore) ListByUser(_ context.Context, userID int64) ([]*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Wallet
	for _, w := range s.data {
		if w.UserID == userID {
			walletCopy := *w
			result = append(result, &walletCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
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
func (s *WalletStore) IncrementAmount(_ context.Context, id int64, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.data[id]
	if !ok {
		return storage.ErrNotFound
	}
	w.Amount = w.Amount.Add(delta)
	w.UpdatedAt = time.Now().UTC()
	return nil
}

var _ storage.WalletStore = (*WalletStore)(nil)
