// Package repository persists job postings and resume records.
package repository

import (
	"context"

	"github.com/okian/resumerank/internal/domain/model"
)

// Store is the record store used by the pipeline and the API.
// ListResumes returns an owner's records in creation order.
type Store interface {
	CreateJobPosting(ctx context.Context, p model.JobPosting) (model.JobPosting, error)
	CreateResume(ctx context.Context, r model.ResumeRecord) (model.ResumeRecord, error)
	// UpdateResume applies a terminal update and returns the stored record.
	// Returns ErrNotFound if the record is unknown.
	UpdateResume(ctx context.Context, id string, upd model.ResumeUpdate) (model.ResumeRecord, error)
	ListResumes(ctx context.Context, ownerID string) ([]model.ResumeRecord, error)
	// GetResume returns ErrNotFound for records owned by someone else.
	GetResume(ctx context.Context, ownerID, id string) (model.ResumeRecord, error)
	// DeleteResume removes the record and returns what was removed.
	DeleteResume(ctx context.Context, ownerID, id string) (model.ResumeRecord, error)
	Close() error
}
