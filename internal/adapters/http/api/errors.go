package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrForwardFailed = errors.New("challenge forward failed")
)
