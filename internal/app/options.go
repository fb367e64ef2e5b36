package service

import (
	"time"

	"github.com/okian/resumerank/internal/adapters/notify"
	"github.com/okian/resumerank/internal/adapters/repository"
	"github.com/okian/resumerank/internal/adapters/storage"
	"github.com/okian/resumerank/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the record store.
func WithStore(s repository.Store) Option {
	return func(svc *Service) {
		if s != nil {
			svc.store = s
		}
	}
}

// WithStorage sets the blob storage gateway.
func WithStorage(g storage.Gateway) Option {
	return func(svc *Service) {
		if g != nil {
			svc.blobs = g
		}
	}
}

// WithAnalysis sets the analysis service client used for both analysis and health probes.
func WithAnalysis(a AnalysisService) Option {
	return func(svc *Service) {
		if a != nil {
			svc.analysis = a
		}
	}
}

// WithNotifier sets the outcome event publisher.
func WithNotifier(p notify.Publisher) Option {
	return func(svc *Service) {
		if p != nil {
			svc.notifier = p
		}
	}
}

// WithQueueSize sets how many batches may wait for the worker.
func WithQueueSize(size int) Option {
	return func(svc *Service) {
		if size > 0 {
			svc.queueSize = size
		}
	}
}

// WithDedupeSize sets the number of remembered idempotency keys.
func WithDedupeSize(size int) Option {
	return func(svc *Service) {
		if size > 0 {
			svc.dedupeSize = size
		}
	}
}

// WithMaxTrackedBatches bounds how many batches stay pollable.
func WithMaxTrackedBatches(n int) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.maxTracked = n
		}
	}
}

// WithProbeInterval sets the availability probe interval.
func WithProbeInterval(d time.Duration) Option {
	return func(svc *Service) {
		if d > 0 {
			svc.probeInterval = d
		}
	}
}

// WithMaxFileBytes caps the size of one resume file.
func WithMaxFileBytes(n int64) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.maxFileBytes = n
		}
	}
}

// WithMaxBatchFiles caps the number of files per batch.
func WithMaxBatchFiles(n int) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.maxFiles = n
		}
	}
}

// WithStepTimeout bounds each storage and record store call.
func WithStepTimeout(d time.Duration) Option {
	return func(svc *Service) {
		if d > 0 {
			svc.stepTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(svc *Service) {
		if l != nil {
			svc.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) {
		if now != nil {
			svc.now = now
		}
	}
}

// WithIDGenerator overrides uuid generation for batch, posting and record ids.
func WithIDGenerator(gen func() string) Option {
	return func(svc *Service) {
		if gen != nil {
			svc.newID = gen
		}
	}
}
