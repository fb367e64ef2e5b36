package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/resumerank/internal/adapters/mq/queue"
	worker "github.com/okian/resumerank/internal/adapters/mq/worker"
	"github.com/okian/resumerank/internal/domain/model"
	"github.com/okian/resumerank/internal/pipeline"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	jobs chan queue.Job
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 10)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan queue.Job { return mq.jobs }

func (mq *mockQueue) add(id string) {
	mq.jobs <- queue.Job{BatchID: id, Submission: pipeline.Submission{OwnerID: "alice", Files: []model.File{{Name: id + ".pdf"}}}}
}

type mockRunner struct {
	mu      sync.Mutex
	active  int
	maxSeen int
	ran     []string
	block   chan struct{}
	started chan string
	err     error
}

func (r *mockRunner) Run(ctx context.Context, sub pipeline.Submission, rep pipeline.Reporter) (*pipeline.Result, error) {
	r.mu.Lock()
	r.active++
	if r.active > r.maxSeen {
		r.maxSeen = r.active
	}
	r.ran = append(r.ran, sub.Files[0].Name)
	r.mu.Unlock()

	if r.started != nil {
		r.started <- sub.Files[0].Name
	}
	if r.block != nil {
		<-r.block
	}
	rep.Narrate("done")

	r.mu.Lock()
	r.active--
	r.mu.Unlock()

	res := &pipeline.Result{Cancelled: ctx.Err() != nil}
	return res, r.err
}

func (r *mockRunner) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ran...)
}

type endCall struct {
	id  string
	res *pipeline.Result
	err error
}

type mockTracker struct {
	mu        sync.Mutex
	skip      map[string]bool
	cancels   map[string]context.CancelFunc
	narrative map[string][]string
	ended     []endCall
	endedCh   chan string
}

func newMockTracker() *mockTracker {
	return &mockTracker{
		skip:      map[string]bool{},
		cancels:   map[string]context.CancelFunc{},
		narrative: map[string][]string{},
		endedCh:   make(chan string, 10),
	}
}

type narrator struct {
	t  *mockTracker
	id string
}

func (n narrator) Narrate(msg string) {
	n.t.mu.Lock()
	defer n.t.mu.Unlock()
	n.t.narrative[n.id] = append(n.t.narrative[n.id], msg)
}

func (n narrator) FileChanged(model.FileOutcome) {}

func (t *mockTracker) Begin(id string, cancel context.CancelFunc) (pipeline.Reporter, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.skip[id] {
		return nil, false
	}
	t.cancels[id] = cancel
	return narrator{t: t, id: id}, true
}

func (t *mockTracker) End(id string, res *pipeline.Result, err error) {
	t.mu.Lock()
	t.ended = append(t.ended, endCall{id: id, res: res, err: err})
	t.mu.Unlock()
	t.endedCh <- id
}

func (t *mockTracker) cancel(id string) {
	t.mu.Lock()
	c := t.cancels[id]
	t.mu.Unlock()
	c()
}

func waitEnded(ch chan string) string {
	select {
	case id := <-ch:
		return id
	case <-time.After(2 * time.Second):
		return ""
	}
}

func TestWorker(t *testing.T) {
	convey.Convey("Given a worker with a runner and tracker", t, func() {
		q := newMockQueue()
		runner := &mockRunner{}
		tracker := newMockTracker()
		w := worker.New(q, runner, tracker, worker.WithName("batch-worker"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		convey.Convey("When jobs are queued they run in order, one at a time", func() {
			go w.Run(ctx)
			q.add("b1")
			q.add("b2")
			q.add("b3")

			convey.So(waitEnded(tracker.endedCh), convey.ShouldEqual, "b1")
			convey.So(waitEnded(tracker.endedCh), convey.ShouldEqual, "b2")
			convey.So(waitEnded(tracker.endedCh), convey.ShouldEqual, "b3")
			convey.So(runner.names(), convey.ShouldResemble, []string{"b1.pdf", "b2.pdf", "b3.pdf"})
			convey.So(runner.maxSeen, convey.ShouldEqual, 1)

			tracker.mu.Lock()
			convey.So(tracker.narrative["b2"], convey.ShouldResemble, []string{"done"})
			tracker.mu.Unlock()

			convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
		})

		convey.Convey("When a batch was cancelled while queued it is skipped", func() {
			tracker.skip["b1"] = true
			go w.Run(ctx)
			q.add("b1")
			q.add("b2")

			convey.So(waitEnded(tracker.endedCh), convey.ShouldEqual, "b2")
			convey.So(runner.names(), convey.ShouldResemble, []string{"b2.pdf"})
			convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
		})

		convey.Convey("When the runner fails the error reaches the tracker", func() {
			runner.err = errors.New("boom")
			go w.Run(ctx)
			q.add("b1")

			convey.So(waitEnded(tracker.endedCh), convey.ShouldEqual, "b1")
			tracker.mu.Lock()
			convey.So(tracker.ended[0].err, convey.ShouldEqual, runner.err)
			tracker.mu.Unlock()
			convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
		})

		convey.Convey("When the tracker cancels a running batch its context is cancelled", func() {
			runner.block = make(chan struct{})
			runner.started = make(chan string, 1)
			go w.Run(ctx)
			q.add("b1")

			<-runner.started
			tracker.cancel("b1")
			close(runner.block)

			convey.So(waitEnded(tracker.endedCh), convey.ShouldEqual, "b1")
			tracker.mu.Lock()
			convey.So(tracker.ended[0].res.Cancelled, convey.ShouldBeTrue)
			tracker.mu.Unlock()
			convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
		})

		convey.Convey("When shut down mid-batch the batch context is cancelled and Shutdown waits", func() {
			runner.block = make(chan struct{})
			runner.started = make(chan string, 1)
			go w.Run(ctx)
			q.add("b1")
			<-runner.started

			errCh := make(chan error, 1)
			go func() { errCh <- w.Shutdown(context.Background()) }()

			select {
			case <-errCh:
				convey.So("shutdown returned early", convey.ShouldBeEmpty)
			case <-time.After(50 * time.Millisecond):
			}
			close(runner.block)

			convey.So(<-errCh, convey.ShouldBeNil)
			convey.So(waitEnded(tracker.endedCh), convey.ShouldEqual, "b1")
			tracker.mu.Lock()
			convey.So(tracker.ended[0].res.Cancelled, convey.ShouldBeTrue)
			tracker.mu.Unlock()
		})

		convey.Convey("When Shutdown times out it reports the timeout", func() {
			runner.block = make(chan struct{})
			runner.started = make(chan string, 1)
			go w.Run(ctx)
			q.add("b1")
			<-runner.started

			short, stop := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer stop()
			err := w.Shutdown(short)
			convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)

			close(runner.block)
			<-w.Done()
		})

		convey.Convey("When the queue closes the worker stops", func() {
			go w.Run(ctx)
			close(q.jobs)
			select {
			case <-w.Done():
			case <-time.After(2 * time.Second):
				convey.So("worker did not stop", convey.ShouldBeEmpty)
			}
		})
	})
}
