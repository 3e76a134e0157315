package policy

import "errors"

var (
	// ErrBadPattern indicates a user matcher regexp failed to compile.
	ErrBadPattern = errors.New("invalid user matcher pattern")
)
