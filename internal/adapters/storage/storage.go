// Package storage keeps uploaded resume files in a blob store.
package storage

import (
	"context"
	"errors"

	"github.com/okian/resumerank/internal/domain/model"
)

// Sentinel kinds for storage errors.
var (
	ErrNotFound = errors.New("blob not found")
	ErrEmptyKey = errors.New("blob key is empty")
	ErrExists   = errors.New("blob key already used")
)

// Gateway stores file blobs under caller-chosen keys. Put never retries.
type Gateway interface {
	// Put stores f under key and returns the reference to keep on the record.
	Put(ctx context.Context, key string, f model.File) (string, error)
	// Open reads a blob back.
	Open(ctx context.Context, ref string) (model.File, error)
	// Remove deletes a blob. Removing a missing blob is not an error.
	Remove(ctx context.Context, ref string) error
	// URL returns a time-limited download link.
	URL(ctx context.Context, ref string, fileName string) (string, error)
}
