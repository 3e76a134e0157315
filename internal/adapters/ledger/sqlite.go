package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // sqlite driver registration

	"github.com/okian/gambit/pkg/logger"
	"github.com/okian/gambit/pkg/metrics"
)

const schema = `
CREATE TABLE IF NOT EXISTS challenges (
	challenger_id TEXT NOT NULL,
	challenge_id  TEXT NOT NULL,
	challenge_day INTEGER NOT NULL,
	accepted      INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL,
	expires_at    INTEGER NOT NULL,
	PRIMARY KEY (challenger_id, challenge_id)
);
CREATE INDEX IF NOT EXISTS idx_challenges_day ON challenges (challenge_day);
CREATE INDEX IF NOT EXISTS idx_challenges_challenger_day ON challenges (challenger_id, challenge_day);
CREATE INDEX IF NOT EXISTS idx_challenges_expiry ON challenges (expires_at);
`

// SQLiteStore implements Store on an embedded SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	stop chan struct{}
	done chan struct{}

	retentionDays int
	sweepInterval time.Duration
}

// Open opens the ledger database at the provided path and ensures the
// schema exists. A background sweeper purges expired day partitions until
// Close is called.
func Open(path string, opts ...Option) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrEmptyPath
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping ledger db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}

	s := &SQLiteStore{
		db:            db,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		retentionDays: 3,
		sweepInterval: time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.sweepLoop()

	return s, nil
}

// Put records a challenge row. Re-inserting an existing
// (challenger, challenge) pair leaves the original row untouched.
func (s *SQLiteStore) Put(ctx context.Context, rec Record) error {
	start := time.Now()
	accepted := 0
	if rec.Accepted {
		accepted = 1
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	expiresAt := rec.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = createdAt.Add(time.Duration(s.retentionDays) * 24 * time.Hour)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO challenges (challenger_id, challenge_id, challenge_day, accepted, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ChallengerID, rec.ChallengeID, rec.ChallengeDay, accepted,
		createdAt.Format(time.RFC3339), expiresAt.Unix())
	metrics.RecordLedgerWriteLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordLedgerWriteError()
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// CountByChallengerAndDay counts one challenger's rows in a day partition.
func (s *SQLiteStore) CountByChallengerAndDay(ctx context.Context, challengerID string, day int64) (int, error) {
	start := time.Now()
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM challenges WHERE challenger_id = ? AND challenge_day = ?`,
		challengerID, day).Scan(&n)
	metrics.RecordLedgerQueryLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return n, nil
}

// CountByDay counts all rows in a day partition.
func (s *SQLiteStore) CountByDay(ctx context.Context, day int64) (int, error) {
	start := time.Now()
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM challenges WHERE challenge_day = ?`, day).Scan(&n)
	metrics.RecordLedgerQueryLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return n, nil
}

// PurgeExpired removes rows whose expiry has passed.
func (s *SQLiteStore) PurgeExpired(ctx context.Context, asOf time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM challenges WHERE expires_at < ?`, asOf.Unix())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	if n > 0 {
		metrics.RecordLedgerPurgedRows(int(n))
	}
	return n, nil
}

// Close stops the sweeper and closes the database.
func (s *SQLiteStore) Close() error {
	close(s.stop)
	<-s.done
	return s.db.Close()
}

// sweepLoop periodically purges day partitions past the retention window.
func (s *SQLiteStore) sweepLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			n, err := s.PurgeExpired(ctx, time.Now())
			cancel()
			if err != nil {
				logger.Get().Warn(context.Background(), "ledger sweep failed",
					logger.Error(err))
				continue
			}
			if n > 0 {
				logger.Get().Debug(context.Background(), "ledger sweep purged rows",
					logger.Int64("rows", n))
			}
		}
	}
}
