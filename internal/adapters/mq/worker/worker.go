// Package worker runs the pool draining the dispatch queue.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/gambit/internal/domain/model"
	"github.com/okian/gambit/pkg/logger"
	"github.com/okian/gambit/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount = 4
	poolDrainTimeout   = 30 * time.Second
)

// Task is what workers read off the queue.
type Task = model.Task

// Executor runs one dispatch task to completion.
type Executor interface {
	Execute(ctx context.Context, task Task) error
}

// Queue defines how workers receive tasks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Task
}

// Worker processes dispatch tasks using the provided executor.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	executor Executor
	name     string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, executor Executor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		executor: executor,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	taskChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case task, ok := <-taskChan:
			if !ok {
				return
			}
			w.processTask(ctx, task)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) processTask(ctx context.Context, task Task) {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := w.executor.Execute(ctx, task); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "execute_error")
		w.logger.Error(ctx, "task execution failed",
			logger.String("game_id", task.GameID),
			logger.String("invocation_id", task.InvocationID),
			logger.Error(err),
		)
	}
}

// Pool manages multiple workers draining one queue.
type Pool struct {
	workers []*InMemoryWorker

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewPool creates a worker pool of the given size.
func NewPool(workerCount int, queue Queue, executor Executor) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
		if workerCount > defaultWorkerCount {
			workerCount = defaultWorkerCount
		}
	}

	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			queue,
			executor,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerActiveCount(workerCount)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Shutdown stops all workers, waiting up to poolDrainTimeout.
func (p *Pool) Shutdown(ctx context.Context) error {
	defer close(p.done)
	close(p.shutdown)

	drainCtx, cancel := context.WithTimeout(ctx, poolDrainTimeout)
	defer cancel()

	var firstErr error
	for _, worker := range p.workers {
		if err := worker.Shutdown(drainCtx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	metrics.UpdateWorkerActiveCount(0)
	return firstErr
}
