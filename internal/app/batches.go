package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/resumerank/internal/domain/model"
	"github.com/okian/resumerank/internal/pipeline"
)

const (
	defaultMaxTrackedBatches = 256
	cancelledWhileQueued     = "Batch cancelled before it started."
	batchQueued              = "Waiting for the analysis worker..."
)

type batchEntry struct {
	view   model.BatchView
	cancel context.CancelFunc
}

// batchTracker keeps the pollable state of recent batches. It implements worker.Tracker.
// Once more than max batches are tracked, the oldest finished ones are forgotten.
type batchTracker struct {
	mu      sync.RWMutex
	batches map[string]*batchEntry
	order   []string
	max     int
	now     func() time.Time
}

func newBatchTracker(max int, now func() time.Time) *batchTracker {
	return &batchTracker{
		batches: make(map[string]*batchEntry),
		max:     max,
		now:     now,
	}
}

func (t *batchTracker) add(view model.BatchView) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.batches[view.ID] = &batchEntry{view: view}
	t.order = append(t.order, view.ID)
	t.evict()
}

func (t *batchTracker) evict() {
	for len(t.order) > t.max {
		victim := -1
		for i, id := range t.order {
			if t.batches[id].view.Status.Done() {
				victim = i
				break
			}
		}
		if victim < 0 {
			return
		}
		delete(t.batches, t.order[victim])
		t.order = append(t.order[:victim], t.order[victim+1:]...)
	}
}

func (t *batchTracker) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.batches[id]; !ok {
		return
	}
	delete(t.batches, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// get returns a copy of the batch if it belongs to owner.
func (t *batchTracker) get(ownerID, id string) (model.BatchView, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.batches[id]
	if !ok || e.view.OwnerID != ownerID {
		return model.BatchView{}, false
	}
	return copyView(e.view), true
}

func (t *batchTracker) counts() (queued, running, done int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.batches {
		switch {
		case e.view.Status == model.BatchQueued:
			queued++
		case e.view.Status == model.BatchRunning:
			running++
		default:
			done++
		}
	}
	return queued, running, done
}

// requestCancel cancels a queued batch outright or signals a running one.
func (t *batchTracker) requestCancel(ownerID, id string) (model.BatchView, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.batches[id]
	if !ok || e.view.OwnerID != ownerID {
		return model.BatchView{}, ErrBatchNotFound
	}
	switch e.view.Status {
	case model.BatchQueued:
		t.finishLocked(e, model.BatchCancelled)
		e.view.Narrative = cancelledWhileQueued
		for i := range e.view.Files {
			e.view.Files[i].State = model.FileError
			e.view.Files[i].Reason = pipeline.UserMessage(pipeline.ErrCancelled)
		}
	case model.BatchRunning:
		if e.cancel != nil {
			e.cancel()
		}
	default:
		return copyView(e.view), ErrBatchFinished
	}
	return copyView(e.view), nil
}

// cancelAll signals every running batch and cancels every queued one.
func (t *batchTracker) cancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.batches {
		switch e.view.Status {
		case model.BatchQueued:
			t.finishLocked(e, model.BatchCancelled)
			e.view.Narrative = cancelledWhileQueued
		case model.BatchRunning:
			if e.cancel != nil {
				e.cancel()
			}
		}
	}
}

func (t *batchTracker) Begin(id string, cancel context.CancelFunc) (pipeline.Reporter, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.batches[id]
	if !ok || e.view.Status != model.BatchQueued {
		return nil, false
	}
	e.view.Status = model.BatchRunning
	e.cancel = cancel
	return &batchReporter{tracker: t, id: id}, true
}

func (t *batchTracker) End(id string, res *pipeline.Result, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.batches[id]
	if !ok {
		return
	}
	if res != nil {
		e.view.JobPostingID = res.JobPosting.ID
		e.view.Files = append([]model.FileOutcome(nil), res.Outcomes...)
		e.view.Records = res.Records
		if res.Narrative != "" {
			e.view.Narrative = res.Narrative
		}
	}
	t.finishLocked(e, statusFor(err))
	e.cancel = nil
	t.evict()
}

func (t *batchTracker) finishLocked(e *batchEntry, status model.BatchStatus) {
	now := t.now()
	e.view.Status = status
	e.view.FinishedAt = &now
}

func statusFor(err error) model.BatchStatus {
	switch {
	case err == nil:
		return model.BatchCompleted
	case errors.Is(err, pipeline.ErrCancelled):
		return model.BatchCancelled
	case errors.Is(err, pipeline.ErrPrecondition):
		return model.BatchRejected
	default:
		return model.BatchFailed
	}
}

func copyView(v model.BatchView) model.BatchView {
	v.Files = append([]model.FileOutcome(nil), v.Files...)
	v.Records = append([]model.ResumeRecord(nil), v.Records...)
	if v.FinishedAt != nil {
		at := *v.FinishedAt
		v.FinishedAt = &at
	}
	return v
}

// batchReporter feeds orchestrator progress into the tracked view.
type batchReporter struct {
	tracker *batchTracker
	id      string
}

func (r *batchReporter) Narrate(msg string) {
	r.tracker.mu.Lock()
	defer r.tracker.mu.Unlock()
	if e, ok := r.tracker.batches[r.id]; ok {
		e.view.Narrative = msg
	}
}

func (r *batchReporter) FileChanged(o model.FileOutcome) {
	r.tracker.mu.Lock()
	defer r.tracker.mu.Unlock()
	e, ok := r.tracker.batches[r.id]
	if !ok || o.Index < 0 || o.Index >= len(e.view.Files) {
		return
	}
	e.view.Files[o.Index] = o
}
