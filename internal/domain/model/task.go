package model

import "time"

// Task is one move-computation dispatch unit flowing through the queue.
// Depth carries the recursion counter so the worker can enforce the
// per-game dispatch bound without shared state.
type Task struct {
	GameID       string
	Depth        int
	InvocationID string
	Deadline     time.Time
}
