// Package worker runs queued batches through the pipeline one at a time.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/resumerank/internal/adapters/mq/queue"
	"github.com/okian/resumerank/internal/pipeline"
	"github.com/okian/resumerank/pkg/logger"
	"github.com/okian/resumerank/pkg/metrics"
)

// Runner executes one batch.
type Runner interface {
	Run(ctx context.Context, sub pipeline.Submission, rep pipeline.Reporter) (*pipeline.Result, error)
}

// Tracker records batch progress for pollers.
type Tracker interface {
	// Begin marks a batch as running and hands over its cancel func.
	// It returns false if the batch was cancelled while it waited in the queue.
	Begin(batchID string, cancel context.CancelFunc) (pipeline.Reporter, bool)
	End(batchID string, res *pipeline.Result, err error)
}

// Queue defines how the worker receives jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker is the single consumer of the batch queue. Running batches sequentially keeps
// at most one analysis request in flight process-wide.
type Worker struct {
	queue   Queue
	runner  Runner
	tracker Tracker
	name    string
	logger  logger.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a worker.
func New(q Queue, runner Runner, tracker Tracker, opts ...Option) *Worker {
	w := &Worker{
		queue:    q,
		runner:   runner,
		tracker:  tracker,
		name:     "worker",
		logger:   logger.Nop(),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run consumes jobs until ctx is cancelled, Shutdown is called or the queue drains.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	jobs := w.queue.Dequeue(runCtx)
	for {
		select {
		case <-runCtx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			w.process(runCtx, j)
		}
	}
}

// Shutdown stops the worker. The running batch skips its remaining files and the
// file in flight completes before Shutdown returns.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() {
		close(w.shutdown)
		w.mu.Lock()
		if w.cancel != nil {
			w.cancel()
		}
		w.mu.Unlock()
	})

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run has returned.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) process(ctx context.Context, j queue.Job) {
	jobCtx, cancel := context.WithCancel(logger.WithOwnerID(ctx, j.Submission.OwnerID))
	defer cancel()

	rep, ok := w.tracker.Begin(j.BatchID, cancel)
	if !ok {
		w.logger.Info(jobCtx, "skipping cancelled batch", logger.String("batch_id", j.BatchID))
		return
	}

	metrics.UpdateBatchesActive(1)
	defer metrics.UpdateBatchesActive(0)

	w.logger.Info(jobCtx, "batch started",
		logger.String("batch_id", j.BatchID),
		logger.Int("files", len(j.Submission.Files)))

	res, err := w.runner.Run(jobCtx, j.Submission, rep)
	if err != nil {
		w.logger.Warn(jobCtx, "batch ended with error",
			logger.String("batch_id", j.BatchID),
			logger.Error(err))
	}
	w.tracker.End(j.BatchID, res, err)
}
