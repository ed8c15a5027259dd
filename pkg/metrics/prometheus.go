// Package metrics provides Prometheus metrics for the stomp alerting service.
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
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Connection registry
	connectionsActive  *prometheus.GaugeVec
	connectionsOpened  *prometheus.CounterVec
	connectionsClosed  *prometheus.CounterVec
	messagesDelivered  *prometheus.CounterVec
	deliveryFailures   *prometheus.CounterVec
	inboundMessages    *prometheus.CounterVec
	emergenciesActive  prometheus.Gauge
	emergenciesRaised  *prometheus.CounterVec
	emergenciesClosed  *prometheus.CounterVec
	dispatchLatency    *prometheus.HistogramVec
	sideChannelResults *prometheus.CounterVec
	readingsIngested   *prometheus.CounterVec

	// Task runner
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	workerCount        prometheus.Gauge
	workerLatency      prometheus.Histogram
	workerErrors       *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // process-wide metrics

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "stomp",
		subsystem:        "alerts",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.connectionsActive = auto.NewGaugeVec(m.gaugeOpts("connections_active", "Live connections by role"), []string{"role"})
	m.connectionsOpened = auto.NewCounterVec(m.counterOpts("connections_opened_total", "Connections registered by role"), []string{"role"})
	m.connectionsClosed = auto.NewCounterVec(m.counterOpts("connections_closed_total", "Connections removed by role and reason"), []string{"role", "reason"})
	m.messagesDelivered = auto.NewCounterVec(m.counterOpts("messages_delivered_total", "Outbound frames written by message type"), []string{"type"})
	m.deliveryFailures = auto.NewCounterVec(m.counterOpts("delivery_failures_total", "Outbound frames that failed by message type"), []string{"type"})
	m.inboundMessages = auto.NewCounterVec(m.counterOpts("inbound_messages_total", "Inbound frames by classification"), []string{"type"})

	m.emergenciesActive = auto.NewGauge(m.gaugeOpts("emergencies_active", "Emergencies currently active in the ledger"))
	m.emergenciesRaised = auto.NewCounterVec(m.counterOpts("emergencies_raised_total", "Emergencies raised by kind"), []string{"kind"})
	m.emergenciesClosed = auto.NewCounterVec(m.counterOpts("emergencies_resolved_total", "Emergencies resolved by kind"), []string{"kind"})
	m.dispatchLatency = auto.NewHistogramVec(m.histogramOpts("dispatch_latency_milliseconds", "Time from hand-off to fan-out completion"), []string{"action"})
	m.sideChannelResults = auto.NewCounterVec(m.counterOpts("side_channel_total", "Email and push attempts by channel and result"), []string{"channel", "result"})
	m.readingsIngested = auto.NewCounterVec(m.counterOpts("readings_ingested_total", "Vital-sign readings by outcome"), []string{"outcome"})

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Jobs waiting across all worker queues"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Total job queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Queue size divided by capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Jobs enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Jobs dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Jobs rejected by a full or closed queue"))
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Running workers"))
	m.workerLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds", "Job run time in milliseconds"))
	m.workerErrors = auto.NewCounterVec(m.counterOpts("worker_errors_total", "Failed or panicking jobs"), []string{"job", "kind"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"), []string{"endpoint", "method", "status_code"})
	m.httpErrors = auto.NewCounterVec(m.counterOpts("http_errors_total", "HTTP responses with status >= 400"), []string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap allocation in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "system_gc_pause_time_milliseconds",
		Help:    "GC pause time in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// UpdateConnectionsActive sets the live connection count for a role.
func UpdateConnectionsActive(role string, count int) {
	globalManager.connectionsActive.WithLabelValues(role).Set(float64(count))
}

// RecordConnectionOpened counts a registered connection.
func RecordConnectionOpened(role string) {
	globalManager.connectionsOpened.WithLabelValues(role).Inc()
}

// RecordConnectionClosed counts a removed connection.
func RecordConnectionClosed(role, reason string) {
	globalManager.connectionsClosed.WithLabelValues(role, reason).Inc()
}

// RecordMessageDelivered counts a frame written to one connection.
func RecordMessageDelivered(msgType string) {
	globalManager.messagesDelivered.WithLabelValues(msgType).Inc()
}

// RecordDeliveryFailure counts a frame that could not be written.
func RecordDeliveryFailure(msgType string) {
	globalManager.deliveryFailures.WithLabelValues(msgType).Inc()
}

// RecordInboundMessage counts an inbound frame by classification.
func RecordInboundMessage(kind string) {
	globalManager.inboundMessages.WithLabelValues(kind).Inc()
}

// UpdateEmergenciesActive sets the active emergency gauge.
func UpdateEmergenciesActive(count int) {
	globalManager.emergenciesActive.Set(float64(count))
}

// RecordEmergencyRaised counts a raised emergency.
func RecordEmergencyRaised(kind string) {
	globalManager.emergenciesRaised.WithLabelValues(kind).Inc()
}

// RecordEmergencyResolved counts a resolved emergency.
func RecordEmergencyResolved(kind string) {
	globalManager.emergenciesClosed.WithLabelValues(kind).Inc()
}

// RecordDispatchLatency observes fan-out latency for raise, resolve or update.
func RecordDispatchLatency(action string, latencyMs float64) {
	globalManager.dispatchLatency.WithLabelValues(action).Observe(latencyMs)
}

// RecordSideChannel counts an email or push attempt.
func RecordSideChannel(channel, result string) {
	globalManager.sideChannelResults.WithLabelValues(channel, result).Inc()
}

// RecordReadingIngested counts a vital-sign reading by outcome.
func RecordReadingIngested(outcome string) {
	globalManager.readingsIngested.WithLabelValues(outcome).Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the total queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the running worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records how long a job ran.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordWorkerError counts a failed ("error") or panicking ("panic") job.
func RecordWorkerError(job, kind string) {
	globalManager.workerErrors.WithLabelValues(job, kind).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordHTTPError records an error response.
func RecordHTTPError(endpoint, method, statusCode string) {
	globalManager.httpErrors.WithLabelValues(endpoint, method, statusCode).Inc()
}

// UpdateSystemMemoryUsage sets heap usage in bytes.
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

// GetRegistry returns the registry that holds the service metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
