package dispatch

import "errors"

var (
	// ErrUnknownGame indicates no session exists for the game id.
	ErrUnknownGame = errors.New("no session for game")

	// ErrDepthExceeded indicates the re-invocation bound was reached.
	ErrDepthExceeded = errors.New("recursion depth exceeded")

	// ErrQueueFull indicates the dispatch queue rejected the task.
	ErrQueueFull = errors.New("dispatch queue full")
)
