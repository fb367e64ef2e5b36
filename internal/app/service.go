// Package service wires the resume pipeline together and implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/resumerank/internal/adapters/analysis"
	"github.com/okian/resumerank/internal/adapters/mq/queue"
	"github.com/okian/resumerank/internal/adapters/mq/worker"
	"github.com/okian/resumerank/internal/adapters/notify"
	"github.com/okian/resumerank/internal/adapters/repository"
	"github.com/okian/resumerank/internal/adapters/storage"
	"github.com/okian/resumerank/internal/availability"
	"github.com/okian/resumerank/internal/domain/dedupe"
	"github.com/okian/resumerank/internal/domain/model"
	"github.com/okian/resumerank/internal/domain/ranking"
	"github.com/okian/resumerank/internal/pipeline"
	"github.com/okian/resumerank/pkg/logger"
	"github.com/okian/resumerank/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultQueueSize    = 16
	defaultDedupeSize   = 10000
	workerStopTimeout   = 2 * time.Minute
	systemStatsInterval = 15 * time.Second
)

// AnalysisService is the remote analysis API: scoring plus health probes.
type AnalysisService interface {
	pipeline.Analyzer
	availability.Prober
}

// Service owns the pipeline, the availability monitor, the batch queue and its worker.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	store    repository.Store
	blobs    storage.Gateway
	analysis AnalysisService
	notifier notify.Publisher

	// Built on Start
	deduper      dedupe.Deduper
	queue        *queue.InMemoryQueue
	worker       *worker.Worker
	monitor      *availability.Monitor
	orchestrator *pipeline.Orchestrator
	batches      *batchTracker

	// Configuration
	queueSize     int
	dedupeSize    int
	maxTracked    int
	probeInterval time.Duration
	maxFileBytes  int64
	maxFiles      int
	stepTimeout   time.Duration

	// State
	started bool
	stop    context.CancelFunc
	bgDone  chan struct{}

	logger logger.Logger
	now    func() time.Time
	newID  func() string
}

// New constructs a Service. Unset collaborators default to in-memory storage, an
// in-memory record store and an analysis client for the default local URL.
func New(opts ...Option) *Service {
	s := &Service{
		queueSize:     defaultQueueSize,
		dedupeSize:    defaultDedupeSize,
		maxTracked:    defaultMaxTrackedBatches,
		probeInterval: availability.DefaultInterval,
		maxFileBytes:  pipeline.DefaultMaxFileBytes,
		maxFiles:      pipeline.DefaultMaxFiles,
		logger:        logger.Nop(),
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.blobs == nil {
		s.blobs = storage.NewMemory()
	}
	if s.analysis == nil {
		s.analysis = analysis.New(analysis.DefaultBaseURL, analysis.WithLogger(s.logger.Named("analysis")))
	}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}
	return s
}

// Start builds the pipeline, starts probing the analysis service and starts the worker.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting resume service...")

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.batches = newBatchTracker(s.maxTracked, s.now)
	s.monitor = availability.New(s.analysis,
		availability.WithInterval(s.probeInterval),
		availability.WithLogger(s.logger.Named("availability")),
		availability.WithClock(s.now),
	)

	orchOpts := []pipeline.Option{
		pipeline.WithLogger(s.logger.Named("pipeline")),
		pipeline.WithNotifier(s.notifier),
		pipeline.WithMaxFileBytes(s.maxFileBytes),
		pipeline.WithMaxFiles(s.maxFiles),
		pipeline.WithClock(s.now),
		pipeline.WithIDGenerator(s.newID),
	}
	if s.stepTimeout > 0 {
		orchOpts = append(orchOpts, pipeline.WithStepTimeout(s.stepTimeout))
	}
	s.orchestrator = pipeline.New(s.blobs, s.store, s.analysis, s.monitor, orchOpts...)
	s.worker = worker.New(s.queue, s.orchestrator, s.batches,
		worker.WithName("batch-worker"),
		worker.WithLogger(s.logger))

	// Background work outlives the start request.
	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stop = cancel
	s.bgDone = make(chan struct{})
	s.monitor.Start(bg)
	go s.worker.Run(bg)
	go s.collectSystemStats(bg, s.bgDone)

	s.started = true
	s.logger.Info(ctx, "resume service started",
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Duration("probeInterval", s.probeInterval),
	)
	return nil
}

// Stop rejects new batches, lets the file in flight finish, cancels everything
// still waiting and closes the collaborators.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping resume service...")

	_ = s.queue.Close()
	stopCtx, cancel := context.WithTimeout(ctx, workerStopTimeout)
	if err := s.worker.Shutdown(stopCtx); err != nil {
		s.logger.Warn(ctx, "worker did not stop in time", logger.Error(err))
	}
	cancel()
	s.batches.cancelAll()

	s.monitor.Stop()
	s.stop()
	<-s.bgDone

	if err := s.notifier.Close(); err != nil {
		s.logger.Warn(ctx, "failed to close notifier", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "failed to close record store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "resume service stopped")
}

func (s *Service) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// SubmitBatch validates a submission and queues it. A rejected submission has no side
// effects. With a non-empty idempotency key, repeating a submission returns the batch
// created the first time for as long as that batch is tracked.
func (s *Service) SubmitBatch(ctx context.Context, sub pipeline.Submission, idempotencyKey string) (model.BatchView, error) {
	if !s.running() {
		return model.BatchView{}, ErrNotStarted
	}
	if err := s.orchestrator.Check(sub); err != nil {
		return model.BatchView{}, err
	}

	id := s.newID()
	dedupeKey := ""
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		dedupeKey = sub.OwnerID + ":" + key
		existing, seen := s.deduper.Claim(ctx, dedupeKey, id)
		if seen {
			if view, ok := s.batches.get(sub.OwnerID, existing); ok {
				s.logger.Info(ctx, "replaying idempotent submission", logger.String("batch_id", existing))
				return view, nil
			}
			// The original batch is no longer tracked; treat this as a new submission.
			s.deduper.Release(ctx, dedupeKey)
			s.deduper.Claim(ctx, dedupeKey, id)
		}
	}

	view := model.BatchView{
		ID:          id,
		OwnerID:     sub.OwnerID,
		JobTitle:    sub.JobTitle,
		Status:      model.BatchQueued,
		Narrative:   batchQueued,
		Files:       make([]model.FileOutcome, len(sub.Files)),
		SubmittedAt: s.now(),
	}
	for i, f := range sub.Files {
		view.Files[i] = model.FileOutcome{Index: i, FileName: pipeline.BaseName(f.Name), State: model.FileQueued}
	}
	s.batches.add(copyView(view))

	err := s.queue.Enqueue(ctx, queue.Job{BatchID: id, Submission: sub, Enqueued: view.SubmittedAt})
	if err != nil {
		s.batches.remove(id)
		if dedupeKey != "" {
			s.deduper.Release(ctx, dedupeKey)
		}
		switch {
		case errors.Is(err, queue.ErrFull):
			return model.BatchView{}, ErrQueueFull
		case errors.Is(err, queue.ErrClosed):
			return model.BatchView{}, ErrNotStarted
		}
		return model.BatchView{}, fmt.Errorf("enqueue batch: %w", err)
	}

	s.logger.Info(ctx, "batch queued",
		logger.String("batch_id", id),
		logger.Int("files", len(sub.Files)),
		logger.Int("queueLength", s.queue.Len()))
	return copyView(view), nil
}

// Batch returns the polled state of one of the owner's batches.
func (s *Service) Batch(ctx context.Context, ownerID, batchID string) (model.BatchView, error) {
	if !s.running() {
		return model.BatchView{}, ErrNotStarted
	}
	view, ok := s.batches.get(ownerID, batchID)
	if !ok {
		return model.BatchView{}, ErrBatchNotFound
	}
	return view, nil
}

// CancelBatch stops a batch. A queued batch never starts; a running one skips its
// remaining files once the file in flight completes.
func (s *Service) CancelBatch(ctx context.Context, ownerID, batchID string) (model.BatchView, error) {
	if !s.running() {
		return model.BatchView{}, ErrNotStarted
	}
	view, err := s.batches.requestCancel(ownerID, batchID)
	if err != nil {
		return view, err
	}
	s.logger.Info(ctx, "batch cancel requested",
		logger.String("batch_id", batchID),
		logger.String("status", string(view.Status)))
	return view, nil
}

// Resumes returns the owner's records ranked and filtered.
func (s *Service) Resumes(ctx context.Context, ownerID string, f ranking.Filter) ([]ranking.Candidate, error) {
	records, err := s.store.ListResumes(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list resumes: %w", err)
	}
	return ranking.Rank(records, f), nil
}

// Resume returns one record.
func (s *Service) Resume(ctx context.Context, ownerID, id string) (model.ResumeRecord, error) {
	rec, err := s.store.GetResume(ctx, ownerID, id)
	if err != nil {
		return model.ResumeRecord{}, mapStoreErr(err)
	}
	return rec, nil
}

// DeleteResume removes a record and, best-effort, its stored file.
func (s *Service) DeleteResume(ctx context.Context, ownerID, id string) error {
	rec, err := s.store.DeleteResume(ctx, ownerID, id)
	if err != nil {
		return mapStoreErr(err)
	}
	if rec.StorageRef != "" {
		if err := s.blobs.Remove(ctx, rec.StorageRef); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn(ctx, "failed to remove stored file",
				logger.String("resume_id", id),
				logger.String("ref", rec.StorageRef),
				logger.Error(err))
			metrics.RecordErrorByComponent("storage", "remove")
		}
	}
	s.logger.Info(ctx, "resume deleted", logger.String("resume_id", id))
	return nil
}

// DownloadURL returns a short-lived URL for the original file.
func (s *Service) DownloadURL(ctx context.Context, ownerID, id string) (string, error) {
	rec, err := s.Resume(ctx, ownerID, id)
	if err != nil {
		return "", err
	}
	url, err := s.blobs.URL(ctx, rec.StorageRef, rec.FileName)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("%w: %w", ErrResumeNotFound, err)
		}
		return "", fmt.Errorf("download url: %w", err)
	}
	return url, nil
}

// OpenFile returns the stored bytes of a record's original file.
func (s *Service) OpenFile(ctx context.Context, ownerID, id string) (model.File, error) {
	rec, err := s.Resume(ctx, ownerID, id)
	if err != nil {
		return model.File{}, err
	}
	f, err := s.blobs.Open(ctx, rec.StorageRef)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.File{}, fmt.Errorf("%w: %w", ErrResumeNotFound, err)
		}
		return model.File{}, fmt.Errorf("open file: %w", err)
	}
	f.Name = rec.FileName
	return f, nil
}

// Analytics summarizes the owner's records.
func (s *Service) Analytics(ctx context.Context, ownerID string) (ranking.Summary, error) {
	records, err := s.store.ListResumes(ctx, ownerID)
	if err != nil {
		return ranking.Summary{}, fmt.Errorf("list resumes: %w", err)
	}
	return ranking.Summarize(records), nil
}

// Availability returns the latest analysis service snapshot.
func (s *Service) Availability() model.Availability {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.monitor == nil {
		return model.Availability{State: model.AvailabilityUnknown}
	}
	return s.monitor.Current()
}

// CheckAvailability probes the analysis service now.
func (s *Service) CheckAvailability(ctx context.Context) model.Availability {
	s.mu.RLock()
	m := s.monitor
	s.mu.RUnlock()
	if m == nil {
		return model.Availability{State: model.AvailabilityUnknown}
	}
	return m.CheckNow(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":    s.started,
		"queueSize":  s.queueSize,
		"dedupeSize": s.dedupeSize,
	}
	if s.started {
		queued, running, done := s.batches.counts()
		stats["queueLength"] = s.queue.Len()
		stats["batchesQueued"] = queued
		stats["batchesRunning"] = running
		stats["batchesFinished"] = done
		stats["idempotencyKeys"] = s.deduper.Size()
		stats["availability"] = s.monitor.Current().State.String()
		metrics.UpdateQueueSize(s.queue.Len())
	}
	return stats
}

func (s *Service) collectSystemStats(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(systemStatsInterval)
	defer ticker.Stop()

	var lastGC uint32
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			metrics.UpdateSystemMemoryUsage(ms.HeapAlloc)
			metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
			if ms.NumGC != lastGC {
				lastGC = ms.NumGC
				pause := ms.PauseNs[(ms.NumGC+255)%256]
				metrics.RecordSystemGCPauseTime(float64(pause) / float64(time.Millisecond))
			}
		}
	}
}

func mapStoreErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrResumeNotFound, err)
	}
	return err
}
