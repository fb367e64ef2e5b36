package storage

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/okian/resumerank/internal/domain/model"
)

// Memory is a process-local Gateway for development and tests.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string]model.File
}

// NewMemory creates an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string]model.File)}
}

func (m *Memory) Put(ctx context.Context, key string, f model.File) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[key]; ok {
		return "", fmt.Errorf("%w: %s", ErrExists, key)
	}
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	m.blobs[key] = model.File{Name: f.Name, ContentType: f.ContentType, Data: data}
	return key, nil
}

func (m *Memory) Open(ctx context.Context, ref string) (model.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.blobs[ref]
	if !ok {
		return model.File{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return f, nil
}

func (m *Memory) Remove(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, ref)
	return nil
}

// URL has no signing to do; the link only resolves through this process.
func (m *Memory) URL(ctx context.Context, ref string, fileName string) (string, error) {
	m.mu.RLock()
	_, ok := m.blobs[ref]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return "memory:///" + url.PathEscape(ref), nil
}

// Len returns the number of stored blobs.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
