package wallet

import "errors"

var (
	// ErrForbidden is returned when a user acts on another user's transaction.
	ErrForbidden = errors.New("transaction belongs to another user")

	// ErrNotPending is returned when a transaction already left pending.
	ErrNotPending = errors.New("transaction is not pending")

	// ErrInvalidDeposit is returned for non-positive amounts or empty codes.
	ErrInvalidDeposit = errors.New("invalid deposit")

	// ErrPriceUnavailable is returned when the deposit cannot be priced.
	ErrPriceUnavailable = errors.New("price unavailable")
)
