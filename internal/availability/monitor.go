// Package availability keeps a process-wide view of whether the analysis service is reachable.
package availability

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/resumerank/internal/domain/model"
	"github.com/okian/resumerank/pkg/logger"
	"github.com/okian/resumerank/pkg/metrics"
)

// Default monitor configuration constants.
const (
	DefaultInterval = 8 * time.Second
)

// Prober performs one liveness check. It must not block longer than its own timeout.
type Prober interface {
	Probe(ctx context.Context) model.Liveness
}

// Monitor probes on a fixed interval and publishes the latest result.
// Reads never block and never trigger a probe.
type Monitor struct {
	prober   Prober
	interval time.Duration
	logger   logger.Logger
	now      func() time.Time

	snapshot atomic.Pointer[model.Availability]

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// Option applies a configuration option to the Monitor.
type Option func(*Monitor)

// WithInterval sets the time between probes.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithLogger sets a custom logger for the monitor.
func WithLogger(l logger.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides time.Now for CheckedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates a monitor. Its state is unknown until the first probe completes.
func New(p Prober, opts ...Option) *Monitor {
	m := &Monitor{
		prober:   p,
		interval: DefaultInterval,
		logger:   logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.snapshot.Store(&model.Availability{State: model.AvailabilityUnknown})
	metrics.UpdateAvailabilityState(int(model.AvailabilityUnknown))
	return m
}

// Start probes immediately and then on every tick until ctx is done or Stop is called.
// Calling Start on a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true
	go m.loop(ctx, m.done)
}

// Stop halts probing and waits for the loop to exit. The last snapshot stays readable.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel, done := m.cancel, m.done
	m.running = false
	m.mu.Unlock()

	cancel()
	<-done
}

// Current returns the latest snapshot.
func (m *Monitor) Current() model.Availability {
	return *m.snapshot.Load()
}

// CheckNow runs one probe synchronously and publishes its result.
func (m *Monitor) CheckNow(ctx context.Context) model.Availability {
	return m.probe(ctx)
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	m.probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) model.Availability {
	state := model.AvailabilityOffline
	result := "unreachable"
	if m.prober.Probe(ctx) == model.Alive {
		state = model.AvailabilityOnline
		result = "alive"
	}
	// A probe cut short by shutdown says nothing about the service.
	if ctx.Err() != nil {
		return m.Current()
	}

	next := &model.Availability{State: state, CheckedAt: m.now()}
	prev := m.snapshot.Swap(next)

	metrics.RecordProbe(result)
	metrics.UpdateAvailabilityState(int(state))
	if prev.State != state {
		m.logger.Info(ctx, "analysis service availability changed",
			logger.String("from", prev.State.String()),
			logger.String("to", state.String()))
	}
	return *next
}
