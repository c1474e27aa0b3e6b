// Package wallet implements the deposit workflow: a deposit is placed as a
// pending transaction, then confirmed (crediting the wallet), cancelled or
// failed by its owner.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"coin-dashboard/internal/domain"
	"coin-dashboard/internal/logging"
	"coin-dashboard/internal/observability"
	"coin-dashboard/internal/storage"
)

// DefaultRecentLimit is the number of transactions shown by the recent list.
const DefaultRecentLimit = 5

// FiatUSD is the only fiat currency deposits are priced in.
const FiatUSD = "USD"

// PriceSource prices crypto codes.
type PriceSource interface {
	PricesFor(ctx context.Context, codes []domain.Symbol) map[domain.Symbol]domain.SnapshotResult
}

// Options configures Service.
type Options struct {
	Wallets      storage.WalletStore
	Transactions storage.TransactionStore
	Prices       PriceSource
	Logger       *logrus.Entry
	Now          func() time.Time
}

// Service runs deposit transitions.
type Service struct {
	wallets      storage.WalletStore
	transactions storage.TransactionStore
	prices       PriceSource
	settler      storage.Settler
	log          *logrus.Entry
	now          func() time.Time
}

// NewService creates a Service. When the transaction store also implements
// storage.Settler, confirmations run through it.
func NewService(opts Options) *Service {
	s := &Service{
		wallets:      opts.Wallets,
		transactions: opts.Transactions,
		prices:       opts.Prices,
		log:          logging.OrDefault(opts.Logger, "wallet"),
		now:          opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if settler, ok := opts.Transactions.(storage.Settler); ok {
		s.settler = settler
	}
	return s
}

// DepositRequest describes a new deposit.
type DepositRequest struct {
	UserID int64
	Crypto domain.Symbol
	Amount decimal.Decimal
}

// PlaceDeposit creates a pending deposit priced at the current snapshot.
// The user's wallet for the currency is created on first use.
func (s *Service) PlaceDeposit(ctx context.Context, req DepositRequest) (*domain.Transaction, error) {
	crypto := domain.NormalizeSymbol(string(req.Crypto))
	if crypto == "" || !req.Amount.IsPositive() || req.UserID <= 0 {
		return nil, ErrInvalidDeposit
	}

	price := s.prices.PricesFor(ctx, []domain.Symbol{crypto})[crypto]
	if !price.Available || !price.Snapshot.Price.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrPriceUnavailable, crypto)
	}
	rate := price.Snapshot.Price

	w, err := s.walletFor(ctx, req.UserID, crypto)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	tx := &domain.Transaction{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		WalletID:    w.ID,
		Type:        domain.TxTypeDeposit,
		Amount:      req.Amount,
		Price:       rate,
		Currency:    FiatUSD,
		Crypto:      crypto,
		Rate:        rate,
		DollarValue: req.Amount.Mul(rate),
		Status:      domain.TxStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.transactions.Insert(ctx, tx); err != nil {
		return nil, fmt.Errorf("insert deposit: %w", err)
	}

	observability.RecordDeposit(string(domain.TxStatusPending))
	s.log.WithFields(logrus.Fields{
		"tx_id":   tx.ID,
		"user_id": tx.UserID,
		"crypto":  crypto,
		"amount":  tx.Amount.String(),
	}).Info("deposit placed")
	return tx, nil
}

func (s *Service) walletFor(ctx context.Context, userID int64, crypto domain.Symbol) (*domain.Wallet, error) {
	w, err := s.wallets.GetByUserCurrency(ctx, userID, crypto)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("get wallet: %w", err)
	}

	w = &domain.Wallet{UserID: userID, Currency: crypto, Amount: decimal.Zero}
	if err := s.wallets.Create(ctx, w); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			// Created concurrently.
			return s.wallets.GetByUserCurrency(ctx, userID, crypto)
		}
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	return w, nil
}

// ConfirmDeposit completes a pending deposit and credits its amount to the
// wallet.
func (s *Service) ConfirmDeposit(ctx context.Context, userID int64, txID string) (*domain.Transaction, error) {
	tx, err := s.pendingOwned(ctx, userID, txID)
	if err != nil {
		return nil, err
	}

	if s.settler != nil {
		err = s.settler.SettleDeposit(ctx, tx.ID, tx.WalletID, tx.Amount)
	} else {
		err = s.transactions.UpdateStatus(ctx, tx.ID, domain.TxStatusPending, domain.TxStatusCompleted)
		if err == nil {
			err = s.wallets.IncrementAmount(ctx, tx.WalletID, tx.Amount)
		}
	}
	if err != nil {
		return nil, s.transitionError(err)
	}

	observability.RecordDeposit(string(domain.TxStatusCompleted))
	s.log.WithFields(logrus.Fields{"tx_id": tx.ID, "wallet_id": tx.WalletID}).Info("deposit confirmed")
	return s.transactions.GetByID(ctx, tx.ID)
}

// CancelDeposit marks a pending deposit cancelled.
func (s *Service) CancelDeposit(ctx context.Context, userID int64, txID string) (*domain.Transaction, error) {
	return s.close(ctx, userID, txID, domain.TxStatusCancelled)
}

// FailDeposit marks a pending deposit failed.
func (s *Service) FailDeposit(ctx context.Context, userID int64, txID string) (*domain.Transaction, error) {
	return s.close(ctx, userID, txID, domain.TxStatusFailed)
}

func (s *Service) close(ctx context.Context, userID int64, txID string, to domain.TransactionStatus) (*domain.Transaction, error) {
	tx, err := s.pendingOwned(ctx, userID, txID)
	if err != nil {
		return nil, err
	}
	if err := s.transactions.UpdateStatus(ctx, tx.ID, domain.TxStatusPending, to); err != nil {
		return nil, s.transitionError(err)
	}

	observability.RecordDeposit(string(to))
	s.log.WithFields(logrus.Fields{"tx_id": tx.ID, "status": to}).Info("deposit closed")
	return s.transactions.GetByID(ctx, tx.ID)
}

// RecentTransactions lists a user's newest transactions. A non-positive
// limit means DefaultRecentLimit.
func (s *Service) RecentTransactions(ctx context.Context, userID int64, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	txs, err := s.transactions.ListRecentByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// Holdings returns the user's currency amounts.
func (s *Service) Holdings(ctx context.Context, userID int64) (map[domain.Symbol]decimal.Decimal, error) {
	return s.wallets.Holdings(ctx, userID)
}

func (s *Service) pendingOwned(ctx context.Context, userID int64, txID string) (*domain.Transaction, error) {
	tx, err := s.transactions.GetByID(ctx, txID)
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if tx.UserID != userID {
		return nil, ErrForbidden
	}
	if tx.Status != domain.TxStatusPending {
		return nil, ErrNotPending
	}
	return tx, nil
}

func (s *Service) transitionError(err error) error {
	if errors.Is(err, storage.ErrStaleStatus) {
		return ErrNotPending
	}
	return fmt.Errorf("update transaction: %w", err)
}
