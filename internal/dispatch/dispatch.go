// Package dispatch supervises move-computation invocations for active
// games: one session per game, bounded re-invocation depth, and a remote
// abort whenever a computation cannot proceed.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/gambit/internal/adapters/engine"
	"github.com/okian/gambit/internal/domain/dedupe"
	"github.com/okian/gambit/internal/domain/model"
	"github.com/okian/gambit/pkg/logger"
	"github.com/okian/gambit/pkg/metrics"
)

// Enqueuer is how the dispatcher hands tasks to the worker pool.
type Enqueuer interface {
	Enqueue(ctx context.Context, t model.Task) bool
}

// Aborter aborts a game on the remote service.
type Aborter interface {
	AbortGame(ctx context.Context, gameID string) error
}

// GameSession tracks one active game's invocation chain.
type GameSession struct {
	GameID    string
	Depth     int
	Deadline  time.Time
	StartedAt time.Time
}

// Dispatcher owns the session registry and enforces the dispatch bounds.
type Dispatcher struct {
	mu       sync.Mutex
	sessions map[string]*GameSession

	queue   Enqueuer
	invoker engine.Invoker
	aborter Aborter
	deduper dedupe.Deduper

	abortAfter time.Duration
	maxDepth   int
	log        logger.Logger
}

// NewDispatcher creates a dispatcher. The deduper suppresses duplicate
// GameStart events for games that already have a session.
func NewDispatcher(q Enqueuer, invoker engine.Invoker, aborter Aborter, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sessions:   make(map[string]*GameSession),
		queue:      q,
		invoker:    invoker,
		aborter:    aborter,
		abortAfter: 30 * time.Second,
		maxDepth:   8,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.deduper == nil {
		d.deduper = dedupe.NewInMemoryDeduper()
	}
	if d.log == nil {
		d.log = logger.Named("dispatch")
	}
	return d
}

// OnGameStart creates a session at depth zero and queues the first
// computation. A game id already seen is ignored; duplicate stream events
// must not restart an active game.
func (d *Dispatcher) OnGameStart(ctx context.Context, gameID string) error {
	if d.deduper.SeenAndRecord(ctx, gameID) {
		d.log.Debug(ctx, "ignoring duplicate game start", logger.String("game_id", gameID))
		return nil
	}

	session := &GameSession{
		GameID:    gameID,
		Depth:     0,
		Deadline:  time.Now().Add(d.abortAfter),
		StartedAt: time.Now(),
	}

	d.mu.Lock()
	d.sessions[gameID] = session
	metrics.UpdateActiveSessions(len(d.sessions))
	d.mu.Unlock()

	if err := d.enqueue(ctx, session); err != nil {
		d.deduper.Unrecord(ctx, gameID)
		d.dropAndAbort(ctx, gameID, "enqueue_failed")
		return err
	}
	return nil
}

// Reinvoke queues the next computation for an active game at incremented
// depth. Exceeding the depth bound aborts the game; one stuck game must
// not hold a session forever.
func (d *Dispatcher) Reinvoke(ctx context.Context, gameID string) error {
	d.mu.Lock()
	session, ok := d.sessions[gameID]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownGame, gameID)
	}
	session.Depth++
	session.Deadline = time.Now().Add(d.abortAfter)
	depth := session.Depth
	d.mu.Unlock()

	if depth > d.maxDepth {
		metrics.RecordDispatchDepthExceeded()
		d.log.Warn(ctx, "recursion depth exceeded",
			logger.String("game_id", gameID),
			logger.Int("depth", depth))
		d.dropAndAbort(ctx, gameID, "depth_exceeded")
		return fmt.Errorf("%w: %s at depth %d", ErrDepthExceeded, gameID, depth)
	}

	if err := d.enqueue(ctx, session); err != nil {
		d.dropAndAbort(ctx, gameID, "enqueue_failed")
		return err
	}
	return nil
}

// Execute runs one queued task, invoked by the worker pool. A failed or
// timed-out invocation aborts the game remotely and drops the session.
func (d *Dispatcher) Execute(ctx context.Context, task model.Task) error {
	start := time.Now()
	metrics.RecordDispatchInvocation()

	invokeCtx := ctx
	var cancel context.CancelFunc
	if !task.Deadline.IsZero() {
		invokeCtx, cancel = context.WithDeadline(ctx, task.Deadline)
		defer cancel()
	}

	err := d.invoker.Invoke(invokeCtx, task)
	metrics.RecordDispatchLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordDispatchFailure()
		d.log.Error(ctx, "move computation failed",
			logger.String("game_id", task.GameID),
			logger.String("invocation_id", task.InvocationID),
			logger.Int("depth", task.Depth),
			logger.Error(err))
		d.dropAndAbort(ctx, task.GameID, "invoke_failed")
		return fmt.Errorf("invoke game %s: %w", task.GameID, err)
	}

	d.log.Info(ctx, "move computation queued",
		logger.String("game_id", task.GameID),
		logger.Int("depth", task.Depth))
	return nil
}

// EndGame drops a finished game's session without aborting it remotely.
// The dedupe entry is released with the session so the id does not occupy
// a ring slot until eviction.
func (d *Dispatcher) EndGame(ctx context.Context, gameID string) {
	d.mu.Lock()
	_, ok := d.sessions[gameID]
	delete(d.sessions, gameID)
	metrics.UpdateActiveSessions(len(d.sessions))
	d.mu.Unlock()

	if ok {
		d.deduper.Unrecord(ctx, gameID)
		d.log.Info(ctx, "game session ended", logger.String("game_id", gameID))
	}
}

// ActiveSessions returns the number of games currently tracked.
func (d *Dispatcher) ActiveSessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

func (d *Dispatcher) enqueue(ctx context.Context, session *GameSession) error {
	task := model.Task{
		GameID:       session.GameID,
		Depth:        session.Depth,
		InvocationID: uuid.NewString(),
		Deadline:     session.Deadline,
	}
	if !d.queue.Enqueue(ctx, task) {
		return fmt.Errorf("%w: game %s", ErrQueueFull, session.GameID)
	}
	return nil
}

// dropAndAbort removes the session and calls the remote abort endpoint.
// The abort is fire-and-confirm: a failure is logged, never retried here.
func (d *Dispatcher) dropAndAbort(ctx context.Context, gameID, reason string) {
	d.mu.Lock()
	delete(d.sessions, gameID)
	metrics.UpdateActiveSessions(len(d.sessions))
	d.mu.Unlock()

	metrics.RecordDispatchAbort()
	if err := d.aborter.AbortGame(ctx, gameID); err != nil {
		metrics.RecordErrorByComponent("dispatch", "abort_failed")
		d.log.Error(ctx, "failed to abort game",
			logger.String("game_id", gameID),
			logger.String("reason", reason),
			logger.Error(err))
		return
	}
	d.log.Warn(ctx, "game aborted",
		logger.String("game_id", gameID),
		logger.String("reason", reason))
}
