package engine

import "errors"

var (
	// ErrInvokeFailed indicates the invocation request never completed.
	ErrInvokeFailed = errors.New("engine invocation failed")

	// ErrEngineStatus indicates the engine answered with a non-2xx status.
	ErrEngineStatus = errors.New("unexpected engine response status")
)
