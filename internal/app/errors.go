package service

import "errors"

var (
	// ErrUnknownBot indicates no configured bot matches the id.
	ErrUnknownBot = errors.New("no such bot")
)
