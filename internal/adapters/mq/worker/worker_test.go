package worker

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/spotter/internal/adapters/mq/queue"
	"github.com/okian/spotter/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	os.Exit(m.Run())
}

type recordingRefresher struct {
	mu     sync.Mutex
	images []string
	wake   chan struct{}
}

func newRecordingRefresher(buf int) *recordingRefresher {
	return &recordingRefresher{wake: make(chan struct{}, buf)}
}

func (r *recordingRefresher) Refresh(_ context.Context, imageID string) float64 {
	r.mu.Lock()
	r.images = append(r.images, imageID)
	r.mu.Unlock()
	r.wake <- struct{}{}
	return 180_000
}

func (r *recordingRefresher) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.images))
	copy(out, r.images)
	return out
}

func waitFor(t *testing.T, ch <-chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for refresh %d of %d", i+1, n)
		}
	}
}

func TestRefreshWorker(t *testing.T) {
	Convey("Given a worker on a shared queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		ref := newRecordingRefresher(16)
		w := NewRefreshWorker(q, ref, WithName("test-worker"))
		go w.Run(ctx)

		Convey("queued jobs are refreshed", func() {
			So(q.Enqueue(ctx, Job{ImageID: "img1"}), ShouldBeTrue)
			So(q.Enqueue(ctx, Job{ImageID: "img2"}), ShouldBeTrue)
			waitFor(t, ref.wake, 2)
			So(ref.seen(), ShouldResemble, []string{"img1", "img2"})
		})

		Convey("jobs without an image id are skipped", func() {
			So(q.Enqueue(ctx, Job{}), ShouldBeTrue)
			So(q.Enqueue(ctx, Job{ImageID: "img3"}), ShouldBeTrue)
			waitFor(t, ref.wake, 1)
			So(ref.seen(), ShouldResemble, []string{"img3"})
		})

		Convey("shutdown returns once the worker stops", func() {
			So(w.Shutdown(ctx), ShouldBeNil)
		})
	})
}

type waitingNotifier struct {
	mu   sync.Mutex
	done []string
	wake chan struct{}
}

func (n *waitingNotifier) RefreshDone(imageID string) {
	n.mu.Lock()
	n.done = append(n.done, imageID)
	n.mu.Unlock()
	n.wake <- struct{}{}
}

func TestPool(t *testing.T) {
	Convey("Given a pool draining a queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		ref := newRecordingRefresher(64)
		notifier := &waitingNotifier{wake: make(chan struct{}, 64)}
		p := NewPool(4, q, ref, WithNotifier(notifier))
		p.Start(ctx)

		for i := 0; i < 8; i++ {
			So(q.Enqueue(ctx, Job{ImageID: "img"}), ShouldBeTrue)
		}
		waitFor(t, notifier.wake, 8)

		Convey("every job is processed exactly once", func() {
			So(ref.seen(), ShouldHaveLength, 8)
		})

		Convey("the notifier hears about each refresh", func() {
			notifier.mu.Lock()
			defer notifier.mu.Unlock()
			So(notifier.done, ShouldHaveLength, 8)
		})

		Convey("shutdown closes the queue and drains", func() {
			So(p.Shutdown(ctx), ShouldBeNil)
			So(q.IsClosed(), ShouldBeTrue)
		})
	})
}
