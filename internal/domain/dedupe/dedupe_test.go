package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	dedupe "github.com/okian/gambit/internal/domain/dedupe"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		Convey("When recording a new game id", func() {
			d := dedupe.NewInMemoryDeduper()
			seen := d.SeenAndRecord(context.Background(), "game-1")

			Convey("Then it is newly recorded", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When recording the same game id twice", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(context.Background(), "game-1")
			seen := d.SeenAndRecord(context.Background(), "game-1")

			Convey("Then the duplicate is reported", func() {
				So(seen, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When unrecording a game id", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(context.Background(), "game-1")
			d.Unrecord(context.Background(), "game-1")

			Convey("Then it can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(context.Background(), "game-1"), ShouldBeFalse)
			})
		})

		Convey("When unrecording an unknown id", func() {
			d := dedupe.NewInMemoryDeduper()
			d.Unrecord(context.Background(), "missing")

			Convey("Then the size is unchanged", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})
}

func TestDeduperEviction(t *testing.T) {
	Convey("Given a bounded deduper at capacity", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for _, id := range []string{"game-1", "game-2", "game-3"} {
			So(d.SeenAndRecord(context.Background(), id), ShouldBeFalse)
		}
		So(d.Size(), ShouldEqual, 3)

		Convey("When a fourth id arrives", func() {
			So(d.SeenAndRecord(context.Background(), "game-4"), ShouldBeFalse)

			Convey("Then the oldest id is evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(context.Background(), "game-1"), ShouldBeFalse)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))

		Convey("When many ids are recorded", func() {
			const n = 1000
			for i := 0; i < n; i++ {
				So(d.SeenAndRecord(context.Background(), fmt.Sprintf("game-%d", i)), ShouldBeFalse)
			}

			Convey("Then nothing is evicted", func() {
				So(d.Size(), ShouldEqual, int64(n))
			})
		})
	})
}

func TestDeduperConcurrency(t *testing.T) {
	Convey("Given concurrent recorders", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(10000))
		const goroutines = 10
		const perGoroutine = 100

		var wg sync.WaitGroup
		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				for j := 0; j < perGoroutine; j++ {
					d.SeenAndRecord(context.Background(), fmt.Sprintf("game-%d-%d", n, j))
				}
			}(i)
		}
		wg.Wait()

		Convey("Then every distinct id is recorded exactly once", func() {
			So(d.Size(), ShouldEqual, int64(goroutines*perGoroutine))
		})
	})
}
