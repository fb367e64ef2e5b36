package pipeline

import (
	"strings"
	"time"

	"github.com/okian/resumerank/pkg/logger"
)

// Default orchestrator configuration constants.
const (
	DefaultMaxFileBytes = 10 << 20
	DefaultMaxFiles     = 50
	defaultStepTimeout  = 30 * time.Second
)

// DefaultExtensions are the resume formats the analysis service accepts.
var DefaultExtensions = []string{".pdf", ".doc", ".docx", ".txt"}

// Option applies a configuration option to the Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a custom logger for the orchestrator.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithNotifier publishes an event for every file that reaches a terminal record status.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithMaxFileBytes caps the size of a single file.
func WithMaxFileBytes(n int64) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxFileBytes = n
		}
	}
}

// WithMaxFiles caps the number of files in one batch.
func WithMaxFiles(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxFiles = n
		}
	}
}

// WithAllowedExtensions replaces the accepted file extensions (case-insensitive, with dot).
func WithAllowedExtensions(exts ...string) Option {
	return func(o *Orchestrator) {
		if len(exts) == 0 {
			return
		}
		o.allowed = make(map[string]struct{}, len(exts))
		for _, e := range exts {
			o.allowed[strings.ToLower(e)] = struct{}{}
		}
	}
}

// WithStepTimeout bounds each storage and record store call.
func WithStepTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.stepTimeout = d
		}
	}
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator overrides how record and posting ids are minted.
func WithIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) {
		if gen != nil {
			o.newID = gen
		}
	}
}
