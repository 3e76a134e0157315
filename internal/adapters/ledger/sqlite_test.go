package ledger_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/gambit/internal/adapters/ledger"
	"github.com/okian/gambit/pkg/logger"
)

func openTestStore(t *testing.T, opts ...ledger.Option) *ledger.SQLiteStore {
	t.Helper()
	if err := logger.Init(); err != nil {
		t.Fatalf("init logger: %v", err)
	}
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := ledger.Open(path, opts...)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Fatalf("close ledger: %v", err)
		}
	})
	return s
}

func TestOpen(t *testing.T) {
	Convey("Given a ledger path", t, func() {
		Convey("When the path is empty", func() {
			_, err := ledger.Open("  ")

			Convey("Then opening fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})

	Convey("Given a fresh database", t, func() {
		s := openTestStore(t)

		Convey("Then day partitions start empty", func() {
			n, err := s.CountByDay(context.Background(), ledger.DayBucket(time.Now()))
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
		})
	})
}

func TestPutAndCount(t *testing.T) {
	Convey("Given an open ledger", t, func() {
		s := openTestStore(t)
		ctx := context.Background()
		day := ledger.DayBucket(time.Now())

		Convey("When challenges from two challengers are recorded", func() {
			So(s.Put(ctx, ledger.Record{ChallengerID: "alice", ChallengeID: "c1", ChallengeDay: day, Accepted: true}), ShouldBeNil)
			So(s.Put(ctx, ledger.Record{ChallengerID: "alice", ChallengeID: "c2", ChallengeDay: day}), ShouldBeNil)
			So(s.Put(ctx, ledger.Record{ChallengerID: "bob", ChallengeID: "c3", ChallengeDay: day}), ShouldBeNil)

			Convey("Then per-challenger and daily counts reflect them", func() {
				n, err := s.CountByChallengerAndDay(ctx, "alice", day)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)

				n, err = s.CountByDay(ctx, day)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 3)
			})

			Convey("Then other days are unaffected", func() {
				n, err := s.CountByDay(ctx, day-1)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
			})
		})

		Convey("When the same challenge is recorded twice", func() {
			rec := ledger.Record{ChallengerID: "alice", ChallengeID: "c1", ChallengeDay: day}
			So(s.Put(ctx, rec), ShouldBeNil)
			So(s.Put(ctx, rec), ShouldBeNil)

			Convey("Then the count does not inflate", func() {
				n, err := s.CountByChallengerAndDay(ctx, "alice", day)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})
	})
}

func TestPurgeExpired(t *testing.T) {
	Convey("Given rows with mixed expiry times", t, func() {
		s := openTestStore(t)
		ctx := context.Background()
		now := time.Now()
		today := ledger.DayBucket(now)

		So(s.Put(ctx, ledger.Record{
			ChallengerID: "alice", ChallengeID: "old1", ChallengeDay: today - 5,
			ExpiresAt: now.Add(-2 * time.Hour),
		}), ShouldBeNil)
		So(s.Put(ctx, ledger.Record{
			ChallengerID: "alice", ChallengeID: "old2", ChallengeDay: today - 4,
			ExpiresAt: now.Add(-time.Hour),
		}), ShouldBeNil)
		So(s.Put(ctx, ledger.Record{
			ChallengerID: "alice", ChallengeID: "new1", ChallengeDay: today,
		}), ShouldBeNil)

		Convey("When purging as of now", func() {
			n, err := s.PurgeExpired(ctx, now)

			Convey("Then only expired rows are removed", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)

				remaining, err := s.CountByDay(ctx, today)
				So(err, ShouldBeNil)
				So(remaining, ShouldEqual, 1)
			})
		})
	})
}

func TestDayBucket(t *testing.T) {
	Convey("Given wall-clock instants", t, func() {
		Convey("Then instants on the same UTC day share a bucket", func() {
			a := time.Date(2025, 6, 1, 0, 0, 1, 0, time.UTC)
			b := time.Date(2025, 6, 1, 23, 59, 59, 0, time.UTC)
			So(ledger.DayBucket(a), ShouldEqual, ledger.DayBucket(b))
		})

		Convey("Then midnight starts a new bucket", func() {
			before := time.Date(2025, 6, 1, 23, 59, 59, 0, time.UTC)
			after := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
			So(ledger.DayBucket(after), ShouldEqual, ledger.DayBucket(before)+1)
		})
	})
}
