package queue_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/gambit/internal/adapters/mq/queue"
	"github.com/okian/gambit/internal/domain/model"
)

func task(gameID string, depth int) model.Task {
	return model.Task{
		GameID:       gameID,
		Depth:        depth,
		InvocationID: gameID + "-inv",
		Deadline:     time.Now().Add(30 * time.Second),
	}
}

func TestInMemoryQueue(t *testing.T) {
	Convey("Given a new in-memory queue", t, func() {
		ctx := context.Background()

		Convey("When enqueuing a task", func() {
			q := queue.NewInMemoryQueue()
			ok := q.Enqueue(ctx, task("g1", 0))

			Convey("Then the task is queued", func() {
				So(ok, ShouldBeTrue)
				So(q.Len(ctx), ShouldEqual, 1)
			})
		})

		Convey("When the queue is at capacity", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(2), queue.WithBufferSize(2))
			So(q.Enqueue(ctx, task("g1", 0)), ShouldBeTrue)
			So(q.Enqueue(ctx, task("g2", 0)), ShouldBeTrue)

			Convey("Then enqueue rejects without blocking", func() {
				So(q.Enqueue(ctx, task("g3", 0)), ShouldBeFalse)
				So(q.Len(ctx), ShouldEqual, 2)
			})
		})

		Convey("When dequeuing tasks", func() {
			q := queue.NewInMemoryQueue()
			for i := 0; i < 3; i++ {
				So(q.Enqueue(ctx, task(fmt.Sprintf("g%d", i), 0)), ShouldBeTrue)
			}

			dequeueCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			ch := q.Dequeue(dequeueCtx)

			Convey("Then tasks arrive in FIFO order", func() {
				for i := 0; i < 3; i++ {
					select {
					case got := <-ch:
						So(got.GameID, ShouldEqual, fmt.Sprintf("g%d", i))
					case <-time.After(time.Second):
						t.Fatal("timed out waiting for task")
					}
				}
			})
		})

		Convey("When the queue is closed", func() {
			q := queue.NewInMemoryQueue()
			So(q.Close(), ShouldBeNil)

			Convey("Then enqueue is rejected and close is idempotent", func() {
				So(q.IsClosed(), ShouldBeTrue)
				So(q.Enqueue(ctx, task("g1", 0)), ShouldBeFalse)
				So(q.Close(), ShouldBeNil)
			})
		})
	})
}
