package admission

import (
	"time"

	"github.com/okian/gambit/pkg/logger"
)

// Option applies a configuration option to the Controller.
type Option func(*Controller)

// WithLogger sets the logger used by the controller.
func WithLogger(log logger.Logger) Option {
	return func(c *Controller) {
		c.log = log
	}
}

// WithClock overrides the wall clock, used by tests to pin the day bucket.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}
