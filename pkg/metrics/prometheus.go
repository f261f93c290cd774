package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Ingest
	submissionsReceived  prometheus.Counter
	submissionsDuplicate prometheus.Counter
	submissionsStored    prometheus.Counter
	submissionsRejected  *prometheus.CounterVec
	storeLatency         prometheus.Histogram
	chatPosts            *prometheus.CounterVec

	// Pipeline
	pipelineRuns        *prometheus.CounterVec
	pipelineDuration    prometheus.Histogram
	pipelineLastSuccess prometheus.Gauge
	pipelineStage       *prometheus.CounterVec
	rowsWritten         *prometheus.GaugeVec
	sinkAttempts        *prometheus.CounterVec
	qualityFindings     *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Queue
	queueSize         prometheus.Gauge
	queueCapacity     prometheus.Gauge
	queueUtilization  prometheus.Gauge
	queueEnqueue      prometheus.Counter
	queueDequeue      prometheus.Counter
	queueEnqueueError prometheus.Counter

	// Worker
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	errorsByComponent *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "f3",
		subsystem:        "backblast",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.submissionsReceived = auto.NewCounter(m.counterOpts("submissions_received_total",
		"Backblast submissions accepted by the ingest endpoint"))
	m.submissionsDuplicate = auto.NewCounter(m.counterOpts("submissions_duplicate_total",
		"Backblast submissions dropped because their id was already seen"))
	m.submissionsStored = auto.NewCounter(m.counterOpts("submissions_stored_total",
		"Backblast submissions persisted to the store"))
	m.submissionsRejected = auto.NewCounterVec(m.counterOpts("submissions_rejected_total",
		"Backblast submissions rejected at the ingest boundary"), []string{"reason"})
	m.storeLatency = auto.NewHistogram(m.histogramOpts("store_latency_milliseconds",
		"Latency of persisting one submission in milliseconds"))
	m.chatPosts = auto.NewCounterVec(m.counterOpts("chat_posts_total",
		"Chat summary posts by outcome"), []string{"outcome"})

	m.pipelineRuns = auto.NewCounterVec(m.counterOpts("pipeline_runs_total",
		"Reshaping pipeline runs by final status"), []string{"status"})
	m.pipelineDuration = auto.NewHistogram(m.histogramOpts("pipeline_duration_seconds",
		"Wall time of a reshaping pipeline run in seconds"))
	m.pipelineLastSuccess = auto.NewGauge(m.gaugeOpts("pipeline_last_success_unix",
		"Unix time of the last successful pipeline run"))
	m.pipelineStage = auto.NewCounterVec(m.counterOpts("pipeline_records_total",
		"Records affected per pipeline stage"), []string{"stage"})
	m.rowsWritten = auto.NewGaugeVec(m.gaugeOpts("pipeline_rows_written",
		"Rows written to each reporting table by the last run"), []string{"table"})
	m.sinkAttempts = auto.NewCounterVec(m.counterOpts("sink_attempts_total",
		"Reporting sink write attempts by outcome"), []string{"sink", "outcome"})
	m.qualityFindings = auto.NewCounterVec(m.counterOpts("quality_findings_total",
		"Data quality findings by expectation"), []string{"expectation"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"})

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current size of the submission queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio",
		"Queue utilization ratio (current size / capacity)"))
	m.queueEnqueue = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Total number of submissions enqueued"))
	m.queueDequeue = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Total number of submissions dequeued"))
	m.queueEnqueueError = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Total number of enqueue errors"))

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Current number of ingest workers"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds",
		"Worker processing latency in milliseconds"))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Total number of worker errors"))

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total",
		"Total number of errors by component"), []string{"component", "error_type"})
}

// RecordSubmissionReceived increments the accepted submissions counter.
func RecordSubmissionReceived() { globalManager.submissionsReceived.Inc() }

// RecordSubmissionDuplicate increments the duplicate submissions counter.
func RecordSubmissionDuplicate() { globalManager.submissionsDuplicate.Inc() }

// RecordSubmissionStored increments the persisted submissions counter.
func RecordSubmissionStored() { globalManager.submissionsStored.Inc() }

// RecordSubmissionRejected counts a submission refused at ingest.
func RecordSubmissionRejected(reason string) {
	globalManager.submissionsRejected.WithLabelValues(reason).Inc()
}

// RecordStoreLatency records how long persisting one submission took.
func RecordStoreLatency(latencyMs float64) { globalManager.storeLatency.Observe(latencyMs) }

// RecordChatPost counts a chat post attempt by outcome (ok, failed, skipped).
func RecordChatPost(outcome string) { globalManager.chatPosts.WithLabelValues(outcome).Inc() }

// RecordPipelineRun counts a finished run and observes its duration.
func RecordPipelineRun(status string, seconds float64) {
	globalManager.pipelineRuns.WithLabelValues(status).Inc()
	globalManager.pipelineDuration.Observe(seconds)
}

// UpdatePipelineLastSuccess sets the unix time of the last successful run.
func UpdatePipelineLastSuccess(unix int64) { globalManager.pipelineLastSuccess.Set(float64(unix)) }

// RecordPipelineStage adds n to the counter of a pipeline stage.
func RecordPipelineStage(stage string, n int) {
	if n <= 0 {
		return
	}
	globalManager.pipelineStage.WithLabelValues(stage).Add(float64(n))
}

// UpdateRowsWritten sets the number of rows the last run wrote to table.
func UpdateRowsWritten(table string, rows int) {
	globalManager.rowsWritten.WithLabelValues(table).Set(float64(rows))
}

// RecordSinkAttempt counts one sink write attempt.
func RecordSinkAttempt(sink, outcome string) {
	globalManager.sinkAttempts.WithLabelValues(sink, outcome).Inc()
}

// RecordQualityFinding counts one failed data quality expectation.
func RecordQualityFinding(expectation string) {
	globalManager.qualityFindings.WithLabelValues(expectation).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueue.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeue.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueError.Inc() }

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
