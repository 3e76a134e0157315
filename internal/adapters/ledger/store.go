// Package ledger persists admitted-challenge records partitioned by day,
// backing the daily rate limits applied to inbound challenges.
package ledger

import (
	"context"
	"time"
)

// Record is one admitted or counted challenge row. ExpiresAt is the point
// after which the row may be purged; the ledger is a rolling window, not
// permanent history.
type Record struct {
	ChallengerID string
	ChallengeID  string
	ChallengeDay int64
	Accepted     bool
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// DayBucket converts a wall-clock instant to its UTC day partition.
func DayBucket(t time.Time) int64 {
	return t.UTC().Unix() / 86400
}

// Store is the persistence surface for challenge rate limiting. Writes are
// idempotent on (challenger_id, challenge_id) so retried admissions never
// inflate counts.
type Store interface {
	// Put records a challenge. Inserting an already-present
	// (challenger, challenge) pair is a no-op.
	Put(ctx context.Context, rec Record) error

	// CountByChallengerAndDay returns how many challenges a single
	// challenger has had recorded on the given day.
	CountByChallengerAndDay(ctx context.Context, challengerID string, day int64) (int, error)

	// CountByDay returns the total challenges recorded on the given day
	// across all challengers.
	CountByDay(ctx context.Context, day int64) (int, error)

	// PurgeExpired deletes rows whose expiry has passed as of the given
	// instant, returning the number of rows removed.
	PurgeExpired(ctx context.Context, asOf time.Time) (int64, error)

	// Close releases the underlying database handle.
	Close() error
}
