// Package pipeline drives a batch of resume files through upload, record creation,
// remote analysis and reconciliation.
//
// Files are processed strictly one at a time in input order. A file's terminal
// record write always completes before the next file starts, so at most one
// analysis request is in flight per orchestrator.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/resumerank/internal/domain/model"
	"github.com/okian/resumerank/pkg/logger"
	"github.com/okian/resumerank/pkg/metrics"
)

// Storage persists file blobs.
type Storage interface {
	Put(ctx context.Context, key string, f model.File) (string, error)
}

// blobRemover is implemented by storage backends that can delete a blob.
type blobRemover interface {
	Remove(ctx context.Context, ref string) error
}

// RecordStore persists job postings and resume records.
type RecordStore interface {
	CreateJobPosting(ctx context.Context, p model.JobPosting) (model.JobPosting, error)
	CreateResume(ctx context.Context, r model.ResumeRecord) (model.ResumeRecord, error)
	UpdateResume(ctx context.Context, id string, upd model.ResumeUpdate) (model.ResumeRecord, error)
	ListResumes(ctx context.Context, ownerID string) ([]model.ResumeRecord, error)
}

// Analyzer scores one file against a job description.
type Analyzer interface {
	Analyze(ctx context.Context, f model.File, jobTitle, jobDescription string) (*model.AnalysisResult, error)
}

// Gate exposes the latest availability of the analysis service.
type Gate interface {
	Current() model.Availability
}

// Notifier announces terminal file outcomes. Failures never affect the batch.
type Notifier interface {
	Publish(ctx context.Context, ev model.ResumeEvent) error
}

// Submission is one batch request.
type Submission struct {
	OwnerID        string
	JobTitle       string
	JobDescription string
	Files          []model.File
}

// Result is what a finished batch produced. Records is the owner's full record set
// in store order, not only the records of this batch.
type Result struct {
	JobPosting model.JobPosting
	Outcomes   []model.FileOutcome
	Records    []model.ResumeRecord
	Narrative  string
	Analyzed   int
	Failed     int
	Cancelled  bool
}

// Orchestrator runs batches. It is safe for concurrent use, but callers are expected
// to run one batch at a time to keep the analysis service load bounded.
type Orchestrator struct {
	storage  Storage
	records  RecordStore
	analyzer Analyzer
	gate     Gate
	notifier Notifier
	logger   logger.Logger

	maxFileBytes int64
	maxFiles     int
	allowed      map[string]struct{}
	stepTimeout  time.Duration

	now   func() time.Time
	newID func() string
}

// New creates an orchestrator over its collaborators.
func New(storage Storage, records RecordStore, analyzer Analyzer, gate Gate, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		storage:      storage,
		records:      records,
		analyzer:     analyzer,
		gate:         gate,
		logger:       logger.Nop(),
		maxFileBytes: DefaultMaxFileBytes,
		maxFiles:     DefaultMaxFiles,
		stepTimeout:  defaultStepTimeout,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	WithAllowedExtensions(DefaultExtensions...)(o)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Check validates a submission without side effects. It returns an ErrPrecondition
// error when inputs are missing or invalid or the analysis service is not online.
func (o *Orchestrator) Check(sub Submission) error {
	switch {
	case strings.TrimSpace(sub.OwnerID) == "":
		return rejectInput(ErrMissingInput, "You must be signed in to analyze resumes.")
	case strings.TrimSpace(sub.JobTitle) == "":
		return rejectInput(ErrMissingInput, "Job title is required.")
	case strings.TrimSpace(sub.JobDescription) == "":
		return rejectInput(ErrMissingInput, "Job description is required.")
	case len(sub.Files) == 0:
		return rejectInput(ErrMissingInput, "Add at least one resume file.")
	case len(sub.Files) > o.maxFiles:
		return rejectInput(ErrInvalidFile, "A batch can hold at most %d files.", o.maxFiles)
	}

	for _, f := range sub.Files {
		name := BaseName(f.Name)
		if name == "" {
			return rejectInput(ErrInvalidFile, "Every file needs a name.")
		}
		if _, ok := o.allowed[extension(name)]; !ok {
			return rejectInput(ErrInvalidFile, "%s is not a supported resume format.", name)
		}
		if f.Size() == 0 {
			return rejectInput(ErrInvalidFile, "%s is empty.", name)
		}
		if f.Size() > o.maxFileBytes {
			return rejectInput(ErrInvalidFile, "%s is larger than %d MB.", name, o.maxFileBytes>>20)
		}
	}

	if o.gate == nil || !o.gate.Current().Online() {
		return newError("check", ErrPrecondition, ErrServiceUnavailable)
	}
	return nil
}

// Run processes a submission end to end.
//
// Cancelling ctx stops files that have not started yet; the file in flight always
// finishes with its terminal write. A nil Result is returned only when the batch
// never started (precondition failure, early cancellation or job posting failure).
func (o *Orchestrator) Run(ctx context.Context, sub Submission, rep Reporter) (*Result, error) {
	if rep == nil {
		rep = NopReporter{}
	}
	started := o.now()

	if err := o.Check(sub); err != nil {
		rep.Narrate(UserMessage(err))
		o.logger.Warn(ctx, "batch rejected", logger.Error(err))
		metrics.RecordBatch("rejected", 0)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		rep.Narrate(UserMessage(ErrCancelled))
		metrics.RecordBatch("cancelled", 0)
		return nil, newError("run", ErrCancelled, err)
	}

	// Writes that have started must land even if the caller gives up.
	work := context.WithoutCancel(ctx)

	rep.Narrate(narrativeCreating)
	posting, err := o.createPosting(work, sub)
	if err != nil {
		rep.Narrate(UserMessage(err))
		metrics.RecordBatch("failed", msSince(o.now(), started))
		return nil, err
	}
	work = logger.WithBatchID(work, posting.ID)

	n := len(sub.Files)
	res := &Result{JobPosting: posting, Outcomes: make([]model.FileOutcome, n)}
	for i, f := range sub.Files {
		res.Outcomes[i] = model.FileOutcome{Index: i, FileName: BaseName(f.Name), State: model.FileQueued}
		rep.FileChanged(res.Outcomes[i])
	}

	keys := &keyer{}
	skipped := 0
	for i, f := range sub.Files {
		if ctx.Err() != nil {
			res.Cancelled = true
			out := &res.Outcomes[i]
			out.State = model.FileError
			out.Reason = UserMessage(ErrCancelled)
			rep.FileChanged(*out)
			skipped++
			continue
		}
		o.processFile(work, sub, posting, f, i, n, keys, res, rep)
	}

	for _, out := range res.Outcomes {
		switch out.State {
		case model.FileAnalyzed:
			res.Analyzed++
		case model.FileError:
			res.Failed++
		}
	}

	listStart := o.now()
	records, err := withTimeout(work, o.stepTimeout, func(c context.Context) ([]model.ResumeRecord, error) {
		return o.records.ListResumes(c, sub.OwnerID)
	})
	metrics.RecordStageLatency("list", msSince(o.now(), listStart))
	if err != nil {
		metrics.RecordStageError("list")
		werr := newError("list resumes", ErrRecordStore, err)
		o.logger.Error(work, "failed to reload records", logger.Error(err))
		res.Narrative = ReloadFailedSummary
		rep.Narrate(res.Narrative)
		metrics.RecordBatch("failed", msSince(o.now(), started))
		return res, werr
	}
	res.Records = records

	outcome := "completed"
	if res.Cancelled {
		outcome = "cancelled"
		res.Narrative = narrativeCancelled(res.Analyzed, res.Failed-skipped, skipped)
	} else {
		res.Narrative = narrativeComplete(res.Analyzed, res.Failed)
	}
	rep.Narrate(res.Narrative)
	metrics.RecordBatch(outcome, msSince(o.now(), started))
	o.logger.Info(work, "batch finished",
		logger.Int("files", n),
		logger.Int("analyzed", res.Analyzed),
		logger.Int("failed", res.Failed),
		logger.Bool("cancelled", res.Cancelled))

	if res.Cancelled {
		return res, newError("run", ErrCancelled, ctx.Err())
	}
	return res, nil
}

func (o *Orchestrator) createPosting(ctx context.Context, sub Submission) (model.JobPosting, error) {
	p := model.JobPosting{
		ID:          o.newID(),
		OwnerID:     sub.OwnerID,
		Title:       strings.TrimSpace(sub.JobTitle),
		Description: strings.TrimSpace(sub.JobDescription),
		CreatedAt:   o.now(),
	}
	start := o.now()
	created, err := withTimeout(ctx, o.stepTimeout, func(c context.Context) (model.JobPosting, error) {
		return o.records.CreateJobPosting(c, p)
	})
	metrics.RecordStageLatency("posting", msSince(o.now(), start))
	if err != nil {
		metrics.RecordStageError("posting")
		o.logger.Error(ctx, "failed to create job posting", logger.Error(err))
		return model.JobPosting{}, newError("create job posting", ErrRecordStore, err)
	}
	o.logger.Info(ctx, "job posting created", logger.String("job_posting_id", created.ID),
		logger.Int("files", len(sub.Files)))
	return created, nil
}

// processFile drives one file to a terminal state and records it in res.Outcomes[i].
func (o *Orchestrator) processFile(ctx context.Context, sub Submission, posting model.JobPosting,
	f model.File, i, n int, keys *keyer, res *Result, rep Reporter) {
	out := &res.Outcomes[i]
	name := out.FileName
	fail := func(reason string) {
		out.State = model.FileError
		out.Reason = reason
		rep.FileChanged(*out)
		metrics.RecordFile("error")
	}

	out.State = model.FileUploading
	rep.FileChanged(*out)
	rep.Narrate(narrativeUploading(name, i+1, n))

	key := keys.next(sub.OwnerID, posting.ID, name, o.now())
	start := o.now()
	ref, err := withTimeout(ctx, o.stepTimeout, func(c context.Context) (string, error) {
		return o.storage.Put(c, key, f)
	})
	metrics.RecordStageLatency("upload", msSince(o.now(), start))
	if err != nil {
		metrics.RecordStageError("upload")
		werr := newError("upload", ErrStorage, err)
		o.logger.Error(ctx, "upload failed", logger.String("file", name), logger.String("key", key), logger.Error(err))
		fail(UserMessage(werr))
		return
	}

	now := o.now()
	rec := model.ResumeRecord{
		ID:              o.newID(),
		OwnerID:         sub.OwnerID,
		JobPostingID:    posting.ID,
		FileName:        name,
		StorageRef:      ref,
		FileSizeBytes:   f.Size(),
		Status:          model.ResumeProcessing,
		SkillsExtracted: []string{},
		SkillsMatched:   []string{},
		SkillsMissing:   []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	start = o.now()
	created, err := withTimeout(ctx, o.stepTimeout, func(c context.Context) (model.ResumeRecord, error) {
		return o.records.CreateResume(c, rec)
	})
	metrics.RecordStageLatency("create", msSince(o.now(), start))
	if err != nil {
		metrics.RecordStageError("create")
		werr := newError("create resume", ErrRecordStore, err)
		o.logger.Error(ctx, "record create failed", logger.String("file", name), logger.Error(err))
		o.removeOrphan(ctx, ref)
		fail(UserMessage(werr))
		return
	}

	out.State = model.FileProcessing
	out.RecordID = created.ID
	rep.FileChanged(*out)
	rep.Narrate(narrativeAnalyzing(name, i+1, n))

	start = o.now()
	analysis, err := o.analyzer.Analyze(ctx, f, posting.Title, posting.Description)
	metrics.RecordStageLatency("analyze", msSince(o.now(), start))
	if err == nil && analysis == nil {
		err = errors.New("empty analysis result")
	}

	upd := model.ResumeUpdate{Status: model.ResumeAnalyzed, Analysis: analysis}
	if err != nil {
		metrics.RecordStageError("analyze")
		werr := newError("analyze", ErrAnalysis, err)
		o.logger.Warn(ctx, "analysis failed", logger.String("file", name),
			logger.String("resume_id", created.ID), logger.Error(werr))
		summary := UserMessage(werr)
		upd = model.ResumeUpdate{Status: model.ResumeError, Summary: &summary}
	}

	final, err := o.finish(ctx, created.ID, upd)
	if err != nil {
		fail(UserMessage(err))
		return
	}

	if final.Status == model.ResumeAnalyzed {
		out.State = model.FileAnalyzed
		out.Reason = ""
		rep.FileChanged(*out)
		metrics.RecordFile("analyzed")
	} else {
		reason := AnalysisFailedSummary
		if upd.Status == model.ResumeAnalyzed {
			reason = SaveFailedSummary
		}
		fail(reason)
	}
	o.publish(ctx, final)
}

// finish applies the terminal update. When an analyzed write fails it falls back to
// an error write so the record does not stay in processing.
func (o *Orchestrator) finish(ctx context.Context, id string, upd model.ResumeUpdate) (model.ResumeRecord, error) {
	start := o.now()
	rec, err := withTimeout(ctx, o.stepTimeout, func(c context.Context) (model.ResumeRecord, error) {
		return o.records.UpdateResume(c, id, upd)
	})
	metrics.RecordStageLatency("update", msSince(o.now(), start))
	if err == nil {
		return rec, nil
	}
	metrics.RecordStageError("update")
	o.logger.Error(ctx, "terminal write failed", logger.String("resume_id", id),
		logger.String("status", string(upd.Status)), logger.Error(err))

	if upd.Status != model.ResumeAnalyzed {
		return model.ResumeRecord{}, newError("update resume", ErrRecordStore, err)
	}

	summary := SaveFailedSummary
	rec, ferr := withTimeout(ctx, o.stepTimeout, func(c context.Context) (model.ResumeRecord, error) {
		return o.records.UpdateResume(c, id, model.ResumeUpdate{Status: model.ResumeError, Summary: &summary})
	})
	if ferr != nil {
		o.logger.Error(ctx, "fallback write failed, record left in processing",
			logger.String("resume_id", id), logger.Error(ferr))
		return model.ResumeRecord{}, newError("update resume", ErrRecordStore, errors.Join(err, ferr))
	}
	return rec, nil
}

func (o *Orchestrator) removeOrphan(ctx context.Context, ref string) {
	r, ok := o.storage.(blobRemover)
	if !ok {
		return
	}
	c, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()
	if err := r.Remove(c, ref); err != nil {
		o.logger.Warn(ctx, "failed to remove orphaned blob", logger.String("ref", ref), logger.Error(err))
	}
}

func (o *Orchestrator) publish(ctx context.Context, rec model.ResumeRecord) {
	if o.notifier == nil {
		return
	}
	ev := model.ResumeEvent{
		ResumeID:     rec.ID,
		OwnerID:      rec.OwnerID,
		JobPostingID: rec.JobPostingID,
		FileName:     rec.FileName,
		Status:       rec.Status,
		MatchScore:   rec.MatchScore,
		OccurredAt:   o.now(),
	}
	if err := o.notifier.Publish(ctx, ev); err != nil {
		metrics.RecordNotification("failed")
		o.logger.Warn(ctx, "failed to publish outcome", logger.String("resume_id", rec.ID), logger.Error(err))
		return
	}
	metrics.RecordNotification("published")
}

// withTimeout runs fn under a per-step deadline.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	c, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(c)
}

func msSince(now, start time.Time) float64 {
	return float64(now.Sub(start).Microseconds()) / 1000
}

// keyer builds storage keys {owner}/{posting}/{millis}_{name} that never repeat
// within one batch even when the clock does not advance.
type keyer struct {
	last int64
}

func (k *keyer) next(owner, posting, name string, now time.Time) string {
	ms := now.UnixMilli()
	if ms <= k.last {
		ms = k.last + 1
	}
	k.last = ms
	return fmt.Sprintf("%s/%s/%d_%s", owner, posting, ms, name)
}

// BaseName strips any client-side directory, whichever separator it used.
func BaseName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i:])
}
