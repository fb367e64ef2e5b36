// Package notify publishes terminal resume outcomes to downstream consumers.
package notify

import (
	"context"
	"errors"

	"github.com/okian/resumerank/internal/domain/model"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("publisher closed")

// Publisher announces one resume event.
type Publisher interface {
	Publish(ctx context.Context, ev model.ResumeEvent) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, model.ResumeEvent) error { return nil }
func (Nop) Close() error                                     { return nil }
