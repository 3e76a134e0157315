package worker

import "github.com/okian/gambit/pkg/logger"

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker's name, used for logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets the logger used by the worker.
func WithLogger(log logger.Logger) Option {
	return func(w *InMemoryWorker) {
		w.logger = log
	}
}
