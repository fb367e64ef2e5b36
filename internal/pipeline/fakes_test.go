package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/resumerank/internal/domain/model"
)

var errBoom = errors.New("boom")

type fakeStorage struct {
	mu      sync.Mutex
	keys    []string
	removed []string
	failOn  map[string]error
}

func (s *fakeStorage) Put(ctx context.Context, key string, f model.File) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn[f.Name]; err != nil {
		return "", err
	}
	s.keys = append(s.keys, key)
	return "blob://" + key, nil
}

func (s *fakeStorage) Remove(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, ref)
	return nil
}

type fakeStore struct {
	mu         sync.Mutex
	postings   []model.JobPosting
	records    []model.ResumeRecord
	updates    []model.ResumeUpdate
	postingErr error
	createErr  map[string]error
	updateErr  func(id string, upd model.ResumeUpdate) error
	listErr    error
}

func (s *fakeStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.postings) + len(s.records) + len(s.updates)
}

func (s *fakeStore) CreateJobPosting(ctx context.Context, p model.JobPosting) (model.JobPosting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.postingErr != nil {
		return model.JobPosting{}, s.postingErr
	}
	s.postings = append(s.postings, p)
	return p, nil
}

func (s *fakeStore) CreateResume(ctx context.Context, r model.ResumeRecord) (model.ResumeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.createErr[r.FileName]; err != nil {
		return model.ResumeRecord{}, err
	}
	s.records = append(s.records, r)
	return r, nil
}

func (s *fakeStore) UpdateResume(ctx context.Context, id string, upd model.ResumeUpdate) (model.ResumeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		if err := s.updateErr(id, upd); err != nil {
			return model.ResumeRecord{}, err
		}
	}
	for i := range s.records {
		if s.records[i].ID == id {
			upd.Apply(&s.records[i], s.records[i].CreatedAt.Add(time.Second))
			s.updates = append(s.updates, upd)
			return s.records[i], nil
		}
	}
	return model.ResumeRecord{}, fmt.Errorf("resume %s not found", id)
}

func (s *fakeStore) ListResumes(ctx context.Context, ownerID string) ([]model.ResumeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := []model.ResumeRecord{}
	for _, r := range s.records {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	return out, nil
}

type analyzeCall struct {
	file        string
	data        []byte
	title, desc string
}

type fakeAnalyzer struct {
	mu      sync.Mutex
	calls   []analyzeCall
	results map[string]*model.AnalysisResult
	errs    map[string]error
	before  func(name string)
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, f model.File, title, desc string) (*model.AnalysisResult, error) {
	if a.before != nil {
		a.before(f.Name)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, analyzeCall{file: f.Name, data: f.Data, title: title, desc: desc})
	if err := a.errs[f.Name]; err != nil {
		return nil, err
	}
	if r, ok := a.results[f.Name]; ok {
		return r, nil
	}
	return &model.AnalysisResult{
		MatchScore:      50,
		SkillsExtracted: []string{},
		SkillsMatched:   []string{},
		SkillsMissing:   []string{},
	}, nil
}

type fakeGate struct {
	state model.AvailabilityState
}

func (g fakeGate) Current() model.Availability {
	return model.Availability{State: g.state}
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []model.ResumeEvent
	err    error
}

func (n *fakeNotifier) Publish(ctx context.Context, ev model.ResumeEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

type recordingReporter struct {
	narrative []string
	files     []model.FileOutcome
}

func (r *recordingReporter) Narrate(msg string) { r.narrative = append(r.narrative, msg) }

func (r *recordingReporter) FileChanged(o model.FileOutcome) { r.files = append(r.files, o) }

func files(names ...string) []model.File {
	out := make([]model.File, 0, len(names))
	for _, n := range names {
		out = append(out, model.File{Name: n, ContentType: "application/pdf", Data: []byte("%PDF-1.4 " + n)})
	}
	return out
}

func strPtr(s string) *string { return &s }
