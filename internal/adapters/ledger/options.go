package ledger

import "time"

// Option applies a configuration option to the SQLiteStore.
type Option func(*SQLiteStore)

// WithRetentionDays sets how many day partitions are kept before the
// sweeper purges them.
func WithRetentionDays(days int) Option {
	return func(s *SQLiteStore) {
		if days > 0 {
			s.retentionDays = days
		}
	}
}

// WithSweepInterval sets how often the background sweeper runs.
func WithSweepInterval(interval time.Duration) Option {
	return func(s *SQLiteStore) {
		if interval > 0 {
			s.sweepInterval = interval
		}
	}
}
