// Package model contains domain models passed between layers.
package model

import "time"

// ResumeStatus is the persisted lifecycle state of a ResumeRecord.
type ResumeStatus string

// Stored values; keep these exact strings in every record store.
const (
	ResumeProcessing ResumeStatus = "processing"
	ResumeAnalyzed   ResumeStatus = "analyzed"
	ResumeError      ResumeStatus = "error"
)

// Terminal reports whether the orchestrator will never touch the record again.
func (s ResumeStatus) Terminal() bool {
	return s == ResumeAnalyzed || s == ResumeError
}

// JobPosting identifies one screening round. One is created per batch and never mutated.
type JobPosting struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// ResumeRecord is the persisted state of one uploaded file.
// MatchScore is only meaningful when Status is ResumeAnalyzed.
type ResumeRecord struct {
	ID              string       `json:"id"`
	OwnerID         string       `json:"owner_id"`
	JobPostingID    string       `json:"job_posting_id"`
	FileName        string       `json:"file_name"`
	StorageRef      string       `json:"storage_ref"`
	FileSizeBytes   int64        `json:"file_size_bytes"`
	Status          ResumeStatus `json:"status"`
	MatchScore      float64      `json:"match_score"`
	CandidateName   *string      `json:"candidate_name,omitempty"`
	CandidateEmail  *string      `json:"candidate_email,omitempty"`
	SkillsExtracted []string     `json:"skills_extracted"`
	SkillsMatched   []string     `json:"skills_matched"`
	SkillsMissing   []string     `json:"skills_missing"`
	ExperienceYears float64      `json:"experience_years"`
	EducationLevel  *string      `json:"education_level,omitempty"`
	Summary         *string      `json:"summary,omitempty"`
	RawText         *string      `json:"raw_text,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// ResumeUpdate is the single terminal write applied to a processing record.
// Analysis is set only for ResumeAnalyzed; Summary carries the diagnostic for ResumeError.
type ResumeUpdate struct {
	Status   ResumeStatus
	Analysis *AnalysisResult
	Summary  *string
}

// Apply folds the update into r.
func (u ResumeUpdate) Apply(r *ResumeRecord, now time.Time) {
	r.Status = u.Status
	r.UpdatedAt = now
	if a := u.Analysis; a != nil {
		r.CandidateName = a.CandidateName
		r.CandidateEmail = a.CandidateEmail
		r.MatchScore = a.MatchScore
		r.SkillsExtracted = a.SkillsExtracted
		r.SkillsMatched = a.SkillsMatched
		r.SkillsMissing = a.SkillsMissing
		r.ExperienceYears = a.ExperienceYears
		r.EducationLevel = a.EducationLevel
		r.Summary = a.Summary
		r.RawText = a.RawText
	}
	if u.Summary != nil {
		r.Summary = u.Summary
	}
}
