package models

import "errors"

// Error taxonomy shared by the ledger, stores and price providers.
// Callers match with errors.Is; producers wrap with fmt.Errorf("...: %w", Err...).
var (
	// ErrInvalidInput marks a malformed ticker, quantity or price.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound marks a mutation referencing a ticker that is not held.
	ErrNotFound = errors.New("position not found")

	// ErrProviderUnavailable marks a ticker whose price series could not be fetched.
	// It is never fatal for a report; the ticker is skipped.
	ErrProviderUnavailable = errors.New("price data unavailable")

	// ErrStoreFailure marks a failed persistence operation. The mutation is uncommitted.
	ErrStoreFailure = errors.New("ledger store failure")
)
