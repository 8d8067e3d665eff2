// Package metrics provides Prometheus metrics for the assay scoring service.
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

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Scoring
	scoringStarted       prometheus.Counter
	scoringCompleted     *prometheus.CounterVec
	scoringFailed        *prometheus.CounterVec
	scoringLatency       prometheus.Histogram
	idempotentHits       prometheus.Counter
	insufficientEvidence prometheus.Counter

	// Psychometrics
	itemStatus            *prometheus.GaugeVec
	competencyReliability *prometheus.GaugeVec
	recalculations        *prometheus.CounterVec
	recalculationLatency  prometheus.Histogram

	// Events
	eventsPublished    *prometheus.CounterVec
	eventPublishErrors *prometheus.CounterVec

	// Repository
	repositoryQueryLatency *prometheus.HistogramVec

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByType      *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "assay",
		subsystem:        "scoring",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	if buckets == nil {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	latencyMs := []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

	m.scoringStarted = auto.NewCounter(m.counterOpts("runs_started_total", "Scoring runs started"))
	m.scoringCompleted = auto.NewCounterVec(
		m.counterOpts("runs_completed_total", "Scoring runs persisted as COMPLETED by goal"),
		[]string{"goal"},
	)
	m.scoringFailed = auto.NewCounterVec(
		m.counterOpts("runs_failed_total", "Scoring runs degraded to PENDING by failing stage"),
		[]string{"stage"},
	)
	m.scoringLatency = auto.NewHistogram(m.histogramOpts(
		"latency_milliseconds", "End to end scoring latency in milliseconds", latencyMs))
	m.idempotentHits = auto.NewCounter(m.counterOpts(
		"idempotent_hits_total", "Scoring requests answered from an existing COMPLETED result"))
	m.insufficientEvidence = auto.NewCounter(m.counterOpts(
		"insufficient_evidence_total", "Competency scores flagged for insufficient evidence"))

	m.itemStatus = auto.NewGaugeVec(
		m.gaugeOpts("items", "Question items by validity status"),
		[]string{"status"},
	)
	m.competencyReliability = auto.NewGaugeVec(
		m.gaugeOpts("competency_reliability_alpha", "Latest Cronbach's alpha per competency"),
		[]string{"competency"},
	)
	m.recalculations = auto.NewCounterVec(
		m.counterOpts("psychometric_recalculations_total", "Psychometric recalculations by scope"),
		[]string{"scope"},
	)
	m.recalculationLatency = auto.NewHistogram(m.histogramOpts(
		"psychometric_recalculation_milliseconds", "Full pool recalculation time in milliseconds", latencyMs))

	m.eventsPublished = auto.NewCounterVec(
		m.counterOpts("events_published_total", "Scoring lifecycle events published by type"),
		[]string{"type"},
	)
	m.eventPublishErrors = auto.NewCounterVec(
		m.counterOpts("event_publish_errors_total", "Scoring lifecycle events that failed to publish"),
		[]string{"type"},
	)

	m.repositoryQueryLatency = auto.NewHistogramVec(
		m.histogramOpts("repository_query_latency_milliseconds", "Repository operation latency in milliseconds", latencyMs),
		[]string{"operation"},
	)

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Scoring jobs waiting in the queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Scoring queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_percent", "Scoring queue fill level in percent"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueued_total", "Scoring jobs accepted by the queue"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeued_total", "Scoring jobs taken off the queue"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Scoring jobs rejected by a full or closed queue"))
	m.queueProcessingLatency = auto.NewHistogram(m.histogramOpts(
		"queue_wait_milliseconds", "Time a job spent queued in milliseconds", latencyMs))

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Configured scoring workers"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active", "Workers currently scoring"))
	m.workerIdleCount = auto.NewGauge(m.gaugeOpts("worker_idle", "Workers waiting for jobs"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts(
		"worker_processing_milliseconds", "Worker job processing time in milliseconds", latencyMs))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Jobs a worker could not process"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", latencyMs),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"},
	)
	m.errorsByType = auto.NewCounterVec(
		m.counterOpts("errors_by_type_total", "Errors by type and severity"),
		[]string{"error_type", "severity"},
	)
	m.errorsByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "HTTP errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap memory in use"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts(
		"system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// Scoring

// RecordScoringStarted counts a scoring run that passed the idempotency check.
func RecordScoringStarted() { globalManager.scoringStarted.Inc() }

// RecordScoringCompleted counts a COMPLETED result for the goal.
func RecordScoringCompleted(goal string) { globalManager.scoringCompleted.WithLabelValues(goal).Inc() }

// RecordScoringFailed counts a run degraded to PENDING at the given stage.
func RecordScoringFailed(stage string) { globalManager.scoringFailed.WithLabelValues(stage).Inc() }

// RecordScoringLatency records scoring latency in milliseconds.
func RecordScoringLatency(latencyMs float64) { globalManager.scoringLatency.Observe(latencyMs) }

// RecordIdempotentHit counts a request served from an existing result.
func RecordIdempotentHit() { globalManager.idempotentHits.Inc() }

// RecordInsufficientEvidence adds flagged competencies of one run.
func RecordInsufficientEvidence(count int) {
	if count > 0 {
		globalManager.insufficientEvidence.Add(float64(count))
	}
}

// Psychometrics

// UpdateItemStatusCount sets the number of items in a validity status.
func UpdateItemStatusCount(status string, count int) {
	globalManager.itemStatus.WithLabelValues(status).Set(float64(count))
}

// UpdateCompetencyReliability sets the latest alpha of a competency.
func UpdateCompetencyReliability(competencyID string, alpha float64) {
	globalManager.competencyReliability.WithLabelValues(competencyID).Set(alpha)
}

// RecordRecalculation counts a recalculation of the given scope (item, competency, all).
func RecordRecalculation(scope string) { globalManager.recalculations.WithLabelValues(scope).Inc() }

// RecordRecalculationLatency records full recalculation time in milliseconds.
func RecordRecalculationLatency(latencyMs float64) { globalManager.recalculationLatency.Observe(latencyMs) }

// Events

// RecordEventPublished counts a published lifecycle event.
func RecordEventPublished(eventType string) {
	globalManager.eventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventPublishError counts a lifecycle event that failed to publish.
func RecordEventPublishError(eventType string) {
	globalManager.eventPublishErrors.WithLabelValues(eventType).Inc()
}

// Repository

// RecordRepositoryQueryLatency records the latency of a repository operation.
func RecordRepositoryQueryLatency(operation string, latencyMs float64) {
	globalManager.repositoryQueryLatency.WithLabelValues(operation).Observe(latencyMs)
}

// Queue

// UpdateQueueSize updates the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity updates the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization updates queue utilization in percent.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue counts an accepted job.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue counts a dequeued job.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError counts a rejected job.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// RecordQueueProcessingLatency records queue wait time in milliseconds.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Workers

// UpdateWorkerCount updates the configured worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// UpdateWorkerActiveCount updates the number of busy workers.
func UpdateWorkerActiveCount(count int) { globalManager.workerActiveCount.Set(float64(count)) }

// UpdateWorkerIdleCount updates the number of idle workers.
func UpdateWorkerIdleCount(count int) { globalManager.workerIdleCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records job processing time in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError counts a failed job.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// HTTP

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors

// RecordErrorByComponent records an error by component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error by HTTP endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System

// UpdateSystemMemoryUsage updates heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount updates the goroutine count.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records a GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the registry the global manager writes to.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
