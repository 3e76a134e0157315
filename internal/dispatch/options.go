package dispatch

import (
	"time"

	"github.com/okian/gambit/internal/domain/dedupe"
	"github.com/okian/gambit/pkg/logger"
)

// Option applies a configuration option to the Dispatcher.
type Option func(*Dispatcher)

// WithAbortAfter bounds each computation invocation.
func WithAbortAfter(d time.Duration) Option {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.abortAfter = d
		}
	}
}

// WithMaxRecursionDepth bounds re-invocations per game.
func WithMaxRecursionDepth(depth int) Option {
	return func(dp *Dispatcher) {
		if depth > 0 {
			dp.maxDepth = depth
		}
	}
}

// WithDeduper sets the seen-game tracker.
func WithDeduper(d dedupe.Deduper) Option {
	return func(dp *Dispatcher) {
		dp.deduper = d
	}
}

// WithLogger sets the logger used by the dispatcher.
func WithLogger(log logger.Logger) Option {
	return func(dp *Dispatcher) {
		dp.log = log
	}
}
