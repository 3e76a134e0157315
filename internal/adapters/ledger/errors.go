package ledger

import "errors"

var (
	// ErrEmptyPath indicates no database path was provided.
	ErrEmptyPath = errors.New("ledger path is required")

	// ErrWriteFailed indicates a ledger write did not complete.
	ErrWriteFailed = errors.New("ledger write failed")

	// ErrQueryFailed indicates a ledger query did not complete.
	ErrQueryFailed = errors.New("ledger query failed")
)
