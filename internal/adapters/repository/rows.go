package repository

import (
	"time"

	"github.com/okian/resumerank/internal/domain/model"
)

// jobPostingRow is the job_postings table. Column names follow the hosted schema
// so the same row type serves MySQL and Supabase.
type jobPostingRow struct {
	Seq         uint64    `gorm:"column:seq;primaryKey;autoIncrement" json:"-"`
	ID          string    `gorm:"column:id;size:36;uniqueIndex" json:"id"`
	OwnerID     string    `gorm:"column:user_id;size:64;index" json:"user_id"`
	Title       string    `gorm:"column:title;size:255" json:"title"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
}

func (jobPostingRow) TableName() string { return "job_postings" }

// resumeRow is the resumes table. Seq keeps MySQL listing in creation order.
type resumeRow struct {
	Seq             uint64    `gorm:"column:seq;primaryKey;autoIncrement" json:"-"`
	ID              string    `gorm:"column:id;size:36;uniqueIndex" json:"id"`
	OwnerID         string    `gorm:"column:user_id;size:64;index" json:"user_id"`
	JobPostingID    string    `gorm:"column:job_posting_id;size:36;index" json:"job_posting_id"`
	FileName        string    `gorm:"column:file_name;size:255" json:"file_name"`
	StorageRef      string    `gorm:"column:file_path;size:1024" json:"file_path"`
	FileSizeBytes   int64     `gorm:"column:file_size" json:"file_size"`
	Status          string    `gorm:"column:status;size:16;index" json:"status"`
	MatchScore      float64   `gorm:"column:match_score" json:"match_score"`
	CandidateName   *string   `gorm:"column:candidate_name;size:255" json:"candidate_name"`
	CandidateEmail  *string   `gorm:"column:candidate_email;size:255" json:"candidate_email"`
	SkillsExtracted []string  `gorm:"column:skills_extracted;serializer:json;type:text" json:"skills_extracted"`
	SkillsMatched   []string  `gorm:"column:skills_matched;serializer:json;type:text" json:"skills_matched"`
	SkillsMissing   []string  `gorm:"column:skills_missing;serializer:json;type:text" json:"skills_missing"`
	ExperienceYears float64   `gorm:"column:experience_years" json:"experience_years"`
	EducationLevel  *string   `gorm:"column:education_level;size:255" json:"education_level"`
	Summary         *string   `gorm:"column:summary;type:text" json:"summary"`
	RawText         *string   `gorm:"column:raw_text;type:longtext" json:"raw_text"`
	CreatedAt       time.Time `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (resumeRow) TableName() string { return "resumes" }

// terminalColumns are written by UpdateResume; everything else is immutable after create.
var terminalColumns = []string{
	"status", "match_score", "candidate_name", "candidate_email",
	"skills_extracted", "skills_matched", "skills_missing",
	"experience_years", "education_level", "summary", "raw_text", "updated_at",
}

func postingToRow(p model.JobPosting) jobPostingRow {
	return jobPostingRow{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Title:       p.Title,
		Description: p.Description,
		CreatedAt:   p.CreatedAt.UTC(),
	}
}

func (r jobPostingRow) toModel() model.JobPosting {
	return model.JobPosting{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Title:       r.Title,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
	}
}

func resumeToRow(r model.ResumeRecord) resumeRow {
	return resumeRow{
		ID:              r.ID,
		OwnerID:         r.OwnerID,
		JobPostingID:    r.JobPostingID,
		FileName:        r.FileName,
		StorageRef:      r.StorageRef,
		FileSizeBytes:   r.FileSizeBytes,
		Status:          string(r.Status),
		MatchScore:      r.MatchScore,
		CandidateName:   r.CandidateName,
		CandidateEmail:  r.CandidateEmail,
		SkillsExtracted: cloneStrings(r.SkillsExtracted),
		SkillsMatched:   cloneStrings(r.SkillsMatched),
		SkillsMissing:   cloneStrings(r.SkillsMissing),
		ExperienceYears: r.ExperienceYears,
		EducationLevel:  r.EducationLevel,
		Summary:         r.Summary,
		RawText:         r.RawText,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

func (r resumeRow) toModel() model.ResumeRecord {
	return model.ResumeRecord{
		ID:              r.ID,
		OwnerID:         r.OwnerID,
		JobPostingID:    r.JobPostingID,
		FileName:        r.FileName,
		StorageRef:      r.StorageRef,
		FileSizeBytes:   r.FileSizeBytes,
		Status:          model.ResumeStatus(r.Status),
		MatchScore:      r.MatchScore,
		CandidateName:   r.CandidateName,
		CandidateEmail:  r.CandidateEmail,
		SkillsExtracted: cloneStrings(r.SkillsExtracted),
		SkillsMatched:   cloneStrings(r.SkillsMatched),
		SkillsMissing:   cloneStrings(r.SkillsMissing),
		ExperienceYears: r.ExperienceYears,
		EducationLevel:  r.EducationLevel,
		Summary:         r.Summary,
		RawText:         r.RawText,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func rowsToModels(rows []resumeRow) []model.ResumeRecord {
	out := make([]model.ResumeRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out
}
