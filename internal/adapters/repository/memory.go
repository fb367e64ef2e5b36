package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/resumerank/internal/domain/model"
)

// MemoryStore keeps everything in process memory. Records are kept in insertion order.
type MemoryStore struct {
	mu       sync.RWMutex
	postings map[string]model.JobPosting
	records  []model.ResumeRecord
	index    map[string]int
	settings settings
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		postings: make(map[string]model.JobPosting),
		index:    make(map[string]int),
		settings: newSettings(opts),
	}
}

func (s *MemoryStore) CreateJobPosting(ctx context.Context, p model.JobPosting) (model.JobPosting, error) {
	if p.ID == "" || p.OwnerID == "" {
		return model.JobPosting{}, fmt.Errorf("%w: job posting needs id and owner", ErrInvalidRecord)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.postings[p.ID]; ok {
		return model.JobPosting{}, fmt.Errorf("%w: job posting %s", ErrDuplicate, p.ID)
	}
	s.postings[p.ID] = p
	return p, nil
}

func (s *MemoryStore) CreateResume(ctx context.Context, r model.ResumeRecord) (model.ResumeRecord, error) {
	if r.ID == "" || r.OwnerID == "" {
		return model.ResumeRecord{}, fmt.Errorf("%w: resume needs id and owner", ErrInvalidRecord)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[r.ID]; ok {
		return model.ResumeRecord{}, fmt.Errorf("%w: resume %s", ErrDuplicate, r.ID)
	}
	s.index[r.ID] = len(s.records)
	s.records = append(s.records, cloneRecord(r))
	return cloneRecord(r), nil
}

func (s *MemoryStore) UpdateResume(ctx context.Context, id string, upd model.ResumeUpdate) (model.ResumeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return model.ResumeRecord{}, fmt.Errorf("%w: resume %s", ErrNotFound, id)
	}
	upd.Apply(&s.records[i], s.settings.now())
	s.records[i] = cloneRecord(s.records[i])
	return cloneRecord(s.records[i]), nil
}

func (s *MemoryStore) ListResumes(ctx context.Context, ownerID string) ([]model.ResumeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.ResumeRecord{}
	for _, r := range s.records {
		if r.OwnerID == ownerID {
			out = append(out, cloneRecord(r))
		}
	}
	return out, nil
}

func (s *MemoryStore) GetResume(ctx context.Context, ownerID, id string) (model.ResumeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok || s.records[i].OwnerID != ownerID {
		return model.ResumeRecord{}, fmt.Errorf("%w: resume %s", ErrNotFound, id)
	}
	return cloneRecord(s.records[i]), nil
}

func (s *MemoryStore) DeleteResume(ctx context.Context, ownerID, id string) (model.ResumeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok || s.records[i].OwnerID != ownerID {
		return model.ResumeRecord{}, fmt.Errorf("%w: resume %s", ErrNotFound, id)
	}
	removed := s.records[i]
	s.records = append(s.records[:i], s.records[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.records); j++ {
		s.index[s.records[j].ID] = j
	}
	return removed, nil
}

func (s *MemoryStore) Close() error { return nil }

func cloneRecord(r model.ResumeRecord) model.ResumeRecord {
	r.SkillsExtracted = cloneStrings(r.SkillsExtracted)
	r.SkillsMatched = cloneStrings(r.SkillsMatched)
	r.SkillsMissing = cloneStrings(r.SkillsMissing)
	return r
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
