// Package metrics provides Prometheus metrics for the gambit bot service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the gambit service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Stream Metrics - Health of the long-lived event stream
	streamConnects    prometheus.Counter
	streamDisconnects prometheus.Counter
	streamRotations   prometheus.Counter
	streamConnected   prometheus.Gauge
	streamLines       prometheus.Counter
	streamKeepAlives  prometheus.Counter

	// Event Metrics - Parsed event traffic
	eventsReceived     *prometheus.CounterVec
	eventsUnrecognized prometheus.Counter

	// Admission Metrics - Challenge accept/decline decisions
	admissionDecisions *prometheus.CounterVec

	// Ledger Metrics - Rate-limit ledger performance
	ledgerWriteLatency prometheus.Histogram
	ledgerQueryLatency prometheus.Histogram
	ledgerWriteErrors  prometheus.Counter
	ledgerPurgedRows   prometheus.Counter

	// Dispatch Metrics - Move computation supervision
	dispatchInvocations   prometheus.Counter
	dispatchFailures      prometheus.Counter
	dispatchAborts        prometheus.Counter
	dispatchLatency       prometheus.Histogram
	activeSessions        prometheus.Gauge
	dispatchDepthExceeded prometheus.Counter

	// Queue Metrics - Dispatch task queue performance
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker Metrics - Processing performance
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// HTTP Performance Metrics for the admin server
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Enhanced Error Metrics - Detailed error tracking
	errorRateByComponent *prometheus.CounterVec

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
		namespace:        "gambit",
		subsystem:        "botloop",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Stream Metrics - The event stream is the heartbeat of the service
	m.streamConnects = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_connects_total",
		Help:      "Total number of event stream connections opened",
	})

	m.streamDisconnects = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_disconnects_total",
		Help:      "Total number of event stream disconnections (errors and EOF)",
	})

	m.streamRotations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_rotations_total",
		Help:      "Total number of proactive stream rotations after max lifespan",
	})

	m.streamConnected = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_connected",
		Help:      "Whether the event stream is currently connected (1) or not (0)",
	})

	m.streamLines = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_lines_total",
		Help:      "Total number of non-blank lines received from the event stream",
	})

	m.streamKeepAlives = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_keepalives_total",
		Help:      "Total number of blank keep-alive lines received",
	})

	// Event Metrics
	m.eventsReceived = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "events_received_total",
			Help:      "Total number of typed events decoded from the stream",
		},
		[]string{"event_type"},
	)

	m.eventsUnrecognized = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_unrecognized_total",
		Help:      "Total number of lines that did not map to a known event type",
	})

	// Admission Metrics
	m.admissionDecisions = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "admission_decisions_total",
			Help:      "Total number of challenge admission decisions by outcome and reason",
		},
		[]string{"decision", "reason"},
	)

	// Ledger Metrics
	m.ledgerWriteLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_write_latency_milliseconds",
		Help:      "Rate-limit ledger write latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.ledgerQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_query_latency_milliseconds",
		Help:      "Rate-limit ledger count query latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.ledgerWriteErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_write_errors_total",
		Help:      "Total number of failed ledger writes",
	})

	m.ledgerPurgedRows = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_purged_rows_total",
		Help:      "Total number of expired ledger records removed by the sweeper",
	})

	// Dispatch Metrics
	m.dispatchInvocations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_invocations_total",
		Help:      "Total number of move computation invocations",
	})

	m.dispatchFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_failures_total",
		Help:      "Total number of failed move computation invocations",
	})

	m.dispatchAborts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_aborts_total",
		Help:      "Total number of games aborted after dispatch failure or depth exhaustion",
	})

	m.dispatchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_latency_milliseconds",
		Help:      "Move computation invocation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.activeSessions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_game_sessions",
		Help:      "Current number of active game sessions",
	})

	m.dispatchDepthExceeded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_depth_exceeded_total",
		Help:      "Total number of dispatch refusals due to recursion depth exhaustion",
	})

	// Queue Metrics
	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current size of the dispatch task queue (backlog indicator)",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Maximum dispatch task queue capacity",
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_utilization_ratio",
		Help:      "Queue utilization ratio (current size / capacity)",
	})

	m.queueEnqueueRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_total",
		Help:      "Total number of dispatch tasks enqueued",
	})

	m.queueDequeueRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_dequeue_total",
		Help:      "Total number of dispatch tasks dequeued",
	})

	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_errors_total",
		Help:      "Total number of enqueue errors",
	})

	m.queueProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_processing_latency_milliseconds",
		Help:      "Time spent inside queue operations in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// Worker Metrics
	m.workerActiveCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_active_count",
		Help:      "Number of active dispatch workers",
	})

	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_processing_latency_milliseconds",
		Help:      "Dispatch worker processing latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.workerErrorRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Total number of dispatch worker errors",
	})

	// HTTP Performance Metrics
	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	// Enhanced Error Metrics
	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component",
		},
		[]string{"component", "error_type"},
	)

	// System Performance Metrics
	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// Stream Metrics Functions.

// RecordStreamConnect increments the stream connect counter and marks the stream connected.
func RecordStreamConnect() {
	globalManager.streamConnects.Inc()
	globalManager.streamConnected.Set(1)
}

// RecordStreamDisconnect increments the disconnect counter and marks the stream disconnected.
func RecordStreamDisconnect() {
	globalManager.streamDisconnects.Inc()
	globalManager.streamConnected.Set(0)
}

// RecordStreamRotation increments the proactive rotation counter.
func RecordStreamRotation() {
	globalManager.streamRotations.Inc()
}

// RecordStreamLine increments the received line counter.
func RecordStreamLine() {
	globalManager.streamLines.Inc()
}

// RecordStreamKeepAlive increments the keep-alive counter.
func RecordStreamKeepAlive() {
	globalManager.streamKeepAlives.Inc()
}

// Event Metrics Functions.

// RecordEventReceived increments the typed event counter for the given type.
func RecordEventReceived(eventType string) {
	globalManager.eventsReceived.WithLabelValues(eventType).Inc()
}

// RecordEventUnrecognized increments the unrecognized event counter.
func RecordEventUnrecognized() {
	globalManager.eventsUnrecognized.Inc()
}

// Admission Metrics Functions.

// RecordAdmissionDecision records a challenge decision with its reason.
func RecordAdmissionDecision(decision, reason string) {
	globalManager.admissionDecisions.WithLabelValues(decision, reason).Inc()
}

// Ledger Metrics Functions.

// RecordLedgerWriteLatency records ledger write latency in milliseconds.
func RecordLedgerWriteLatency(latencyMs float64) {
	globalManager.ledgerWriteLatency.Observe(latencyMs)
}

// RecordLedgerQueryLatency records ledger query latency in milliseconds.
func RecordLedgerQueryLatency(latencyMs float64) {
	globalManager.ledgerQueryLatency.Observe(latencyMs)
}

// RecordLedgerWriteError increments the ledger write error counter.
func RecordLedgerWriteError() {
	globalManager.ledgerWriteErrors.Inc()
}

// RecordLedgerPurgedRows adds to the purged row counter.
func RecordLedgerPurgedRows(n int) {
	globalManager.ledgerPurgedRows.Add(float64(n))
}

// Dispatch Metrics Functions.

// RecordDispatchInvocation increments the invocation counter.
func RecordDispatchInvocation() {
	globalManager.dispatchInvocations.Inc()
}

// RecordDispatchFailure increments the failure counter.
func RecordDispatchFailure() {
	globalManager.dispatchFailures.Inc()
}

// RecordDispatchAbort increments the abort counter.
func RecordDispatchAbort() {
	globalManager.dispatchAborts.Inc()
}

// RecordDispatchLatency records invocation latency in milliseconds.
func RecordDispatchLatency(latencyMs float64) {
	globalManager.dispatchLatency.Observe(latencyMs)
}

// UpdateActiveSessions sets the current number of active game sessions.
func UpdateActiveSessions(count int) {
	globalManager.activeSessions.Set(float64(count))
}

// RecordDispatchDepthExceeded increments the depth exhaustion counter.
func RecordDispatchDepthExceeded() {
	globalManager.dispatchDepthExceeded.Inc()
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueProcessingLatency records time spent inside a queue operation.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Worker Metrics Functions.

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Enhanced Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// System Performance Metrics Functions.

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
