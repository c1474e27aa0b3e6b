package storage

import "errors"

// Storage errors for wallet and transaction stores.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStaleStatus is returned when a conditional status update finds the
	// row in a different status than expected.
	ErrStaleStatus = errors.New("status changed concurrently")
)
