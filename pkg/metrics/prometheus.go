// Package metrics provides Prometheus metrics for the resumerank service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Latency buckets in milliseconds. Analysis calls routinely take seconds.
var defaultLatencyBuckets = []float64{5, 25, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000}

// Manager manages all Prometheus metrics for the resumerank service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Pipeline Metrics
	batches       *prometheus.CounterVec
	batchDuration prometheus.Histogram
	files         *prometheus.CounterVec
	stageLatency  *prometheus.HistogramVec
	stageErrors   *prometheus.CounterVec
	notifications *prometheus.CounterVec

	// Availability Metrics
	availabilityState prometheus.Gauge
	probes            *prometheus.CounterVec

	// Queue Metrics
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueEnqueued prometheus.Counter
	queueRejected prometheus.Counter
	batchesActive prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "resumerank",
		subsystem:        "pipeline",
		histogramBuckets: defaultLatencyBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.batches = m.counterVec("batches_total", "Batches by final outcome", "outcome")
	m.batchDuration = m.histogram("batch_duration_milliseconds", "Wall time of a batch run", m.histogramBuckets)
	m.files = m.counterVec("files_total", "Files by terminal outcome", "outcome")
	m.stageLatency = m.histogramVec("stage_latency_milliseconds", "Latency of each per-file stage", "stage")
	m.stageErrors = m.counterVec("stage_errors_total", "Failures of each per-file stage", "stage")
	m.notifications = m.counterVec("notifications_total", "Outcome events handed to the notifier", "result")

	m.availabilityState = m.gauge("availability_state", "Analysis service state: 0 unknown, 1 online, 2 offline")
	m.probes = m.counterVec("probes_total", "Health probes by result", "result")

	m.queueSize = m.gauge("queue_size", "Batches waiting for the worker")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of waiting batches")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Batches accepted into the queue")
	m.queueRejected = m.counter("queue_rejected_total", "Batches rejected because the queue was full")
	m.batchesActive = m.gauge("batches_active", "Batches currently being processed")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		"endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type",
		"component", "error_type")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint, method and type",
		"endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap memory in use")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Most recent GC pause",
		[]float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50})
}

// RecordBatch counts a finished batch and its wall time.
func RecordBatch(outcome string, durationMs float64) {
	globalManager.batches.WithLabelValues(outcome).Inc()
	globalManager.batchDuration.Observe(durationMs)
}

// RecordFile counts a file that reached a terminal state.
func RecordFile(outcome string) {
	globalManager.files.WithLabelValues(outcome).Inc()
}

// RecordStageLatency records the latency of one stage (upload, create, analyze, update, list).
func RecordStageLatency(stage string, latencyMs float64) {
	globalManager.stageLatency.WithLabelValues(stage).Observe(latencyMs)
}

// RecordStageError increments the failure counter of a stage.
func RecordStageError(stage string) {
	globalManager.stageErrors.WithLabelValues(stage).Inc()
}

// RecordNotification counts an outcome event publish attempt.
func RecordNotification(result string) {
	globalManager.notifications.WithLabelValues(result).Inc()
}

// UpdateAvailabilityState sets the availability gauge.
func UpdateAvailabilityState(state int) {
	globalManager.availabilityState.Set(float64(state))
}

// RecordProbe counts a health probe result.
func RecordProbe(result string) {
	globalManager.probes.WithLabelValues(result).Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueRejected increments the backpressure counter.
func RecordQueueRejected() {
	globalManager.queueRejected.Inc()
}

// UpdateBatchesActive sets the number of batches being processed.
func UpdateBatchesActive(count int) {
	globalManager.batchesActive.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
