package repository

import (
	"context"
	"fmt"
	"sort"

	supabase "github.com/nedpals/supabase-go"

	"github.com/okian/resumerank/internal/domain/model"
)

const (
	postingsTable = "job_postings"
	resumesTable  = "resumes"
)

// SupabaseStore persists records in a hosted Supabase project through its REST API.
// The SDK calls take no context, so cancellation is only checked between calls.
type SupabaseStore struct {
	client   *supabase.Client
	settings settings
}

// NewSupabaseStore creates a store for the given project URL and service key.
func NewSupabaseStore(url, key string, opts ...Option) (*SupabaseStore, error) {
	if url == "" || key == "" {
		return nil, fmt.Errorf("%w: supabase url and key are required", ErrInvalidRecord)
	}
	return &SupabaseStore{
		client:   supabase.CreateClient(url, key),
		settings: newSettings(opts),
	}, nil
}

func (s *SupabaseStore) CreateJobPosting(ctx context.Context, p model.JobPosting) (model.JobPosting, error) {
	if err := ctx.Err(); err != nil {
		return model.JobPosting{}, err
	}
	var out []jobPostingRow
	if err := s.client.DB.From(postingsTable).Insert(postingToRow(p)).Execute(&out); err != nil {
		return model.JobPosting{}, fmt.Errorf("create job posting: %w", err)
	}
	if len(out) == 0 {
		return p, nil
	}
	return out[0].toModel(), nil
}

func (s *SupabaseStore) CreateResume(ctx context.Context, r model.ResumeRecord) (model.ResumeRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.ResumeRecord{}, err
	}
	var out []resumeRow
	if err := s.client.DB.From(resumesTable).Insert(resumeToRow(r)).Execute(&out); err != nil {
		return model.ResumeRecord{}, fmt.Errorf("create resume: %w", err)
	}
	if len(out) == 0 {
		return cloneRecord(r), nil
	}
	return out[0].toModel(), nil
}

func (s *SupabaseStore) UpdateResume(ctx context.Context, id string, upd model.ResumeUpdate) (model.ResumeRecord, error) {
	current, err := s.selectOne(ctx, "id", id)
	if err != nil {
		return model.ResumeRecord{}, err
	}
	upd.Apply(&current, s.settings.now())

	var out []resumeRow
	err = s.client.DB.From(resumesTable).Update(terminalFields(resumeToRow(current))).Eq("id", id).Execute(&out)
	if err != nil {
		return model.ResumeRecord{}, fmt.Errorf("update resume: %w", err)
	}
	return current, nil
}

func (s *SupabaseStore) ListResumes(ctx context.Context, ownerID string) ([]model.ResumeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []resumeRow
	if err := s.client.DB.From(resumesTable).Select("*").Eq("user_id", ownerID).Execute(&rows); err != nil {
		return nil, fmt.Errorf("list resumes: %w", err)
	}
	sortRows(rows)
	return rowsToModels(rows), nil
}

func (s *SupabaseStore) GetResume(ctx context.Context, ownerID, id string) (model.ResumeRecord, error) {
	rec, err := s.selectOne(ctx, "id", id)
	if err != nil {
		return model.ResumeRecord{}, err
	}
	if rec.OwnerID != ownerID {
		return model.ResumeRecord{}, fmt.Errorf("%w: resume %s", ErrNotFound, id)
	}
	return rec, nil
}

func (s *SupabaseStore) DeleteResume(ctx context.Context, ownerID, id string) (model.ResumeRecord, error) {
	rec, err := s.GetResume(ctx, ownerID, id)
	if err != nil {
		return model.ResumeRecord{}, err
	}
	var out []resumeRow
	if err := s.client.DB.From(resumesTable).Delete().Eq("id", id).Eq("user_id", ownerID).Execute(&out); err != nil {
		return model.ResumeRecord{}, fmt.Errorf("delete resume: %w", err)
	}
	return rec, nil
}

func (s *SupabaseStore) Close() error { return nil }

func (s *SupabaseStore) selectOne(ctx context.Context, column, value string) (model.ResumeRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.ResumeRecord{}, err
	}
	var rows []resumeRow
	if err := s.client.DB.From(resumesTable).Select("*").Eq(column, value).Execute(&rows); err != nil {
		return model.ResumeRecord{}, fmt.Errorf("get resume: %w", err)
	}
	if len(rows) == 0 {
		return model.ResumeRecord{}, fmt.Errorf("%w: resume %s", ErrNotFound, value)
	}
	return rows[0].toModel(), nil
}

// terminalFields is the PATCH body for a terminal update.
func terminalFields(r resumeRow) map[string]any {
	return map[string]any{
		"status":           r.Status,
		"match_score":      r.MatchScore,
		"candidate_name":   r.CandidateName,
		"candidate_email":  r.CandidateEmail,
		"skills_extracted": r.SkillsExtracted,
		"skills_matched":   r.SkillsMatched,
		"skills_missing":   r.SkillsMissing,
		"experience_years": r.ExperienceYears,
		"education_level":  r.EducationLevel,
		"summary":          r.Summary,
		"raw_text":         r.RawText,
		"updated_at":       r.UpdatedAt,
	}
}

// sortRows puts rows in creation order; the REST API does not guarantee one.
func sortRows(rows []resumeRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
		return rows[i].ID < rows[j].ID
	})
}
