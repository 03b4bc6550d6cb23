// Package metrics provides Prometheus metrics for the feispoints
// scoring engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Scoring engine metrics
	calculationPasses  prometheus.Counter
	calculationLatency prometheus.Histogram
	scoresAccepted     prometheus.Counter
	scoresRejected     *prometheus.CounterVec
	recallSelections   prometheus.Counter
	recallSize         prometheus.Histogram

	// Advancement metrics
	noticesCreated     prometheus.Counter
	noticesAcked       prometheus.Counter
	noticesOverridden  prometheus.Counter
	noticesDuplicate   prometheus.Counter
	eligibilityBlocks  prometheus.Counter

	// Broadcast metrics
	broadcastDeliveries prometheus.Counter
	broadcastDrops      prometheus.Counter

	// Queue metrics
	queueCapacity          prometheus.Gauge
	queueSize              prometheus.Gauge
	queueEnqueues          prometheus.Counter
	queueDequeues          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker metrics
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Repository metrics
	repositoryQueryLatency  prometheus.Histogram
	repositoryUpdateLatency prometheus.Histogram

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "feispoints",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	factory := promauto.With(m.registry)

	m.calculationPasses = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "calculation_passes_total",
		Help: "Full round calculation passes completed.",
	})
	m.calculationLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "calculation_latency_ms",
		Help:    "Latency of a full calculation pass in milliseconds.",
		Buckets: m.histogramBuckets,
	})
	m.scoresAccepted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "scores_accepted_total",
		Help: "Raw scores accepted at the boundary.",
	})
	m.scoresRejected = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "scores_rejected_total",
		Help: "Raw scores rejected at the boundary, by reason.",
	}, []string{"reason"})
	m.recallSelections = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "recall_selections_total",
		Help: "Recall selections computed.",
	})
	m.recallSize = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "recall_size",
		Help:    "Number of competitors recalled per selection.",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
	})

	m.noticesCreated = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "advancement_notices_created_total",
		Help: "Advancement notices created.",
	})
	m.noticesAcked = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "advancement_notices_acknowledged_total",
		Help: "Advancement notices acknowledged.",
	})
	m.noticesOverridden = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "advancement_notices_overridden_total",
		Help: "Advancement notices overridden.",
	})
	m.noticesDuplicate = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "advancement_notices_duplicate_total",
		Help: "Notice creations suppressed as duplicates.",
	})
	m.eligibilityBlocks = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "eligibility_blocks_total",
		Help: "Registrations blocked by an open advancement notice.",
	})

	m.broadcastDeliveries = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "broadcast_deliveries_total",
		Help: "Score-change events delivered to observers.",
	})
	m.broadcastDrops = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "broadcast_drops_total",
		Help: "Score-change events dropped for slow observers.",
	})

	m.queueCapacity = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_capacity",
		Help: "Configured recalculation queue capacity.",
	})
	m.queueSize = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_size",
		Help: "Current recalculation queue depth.",
	})
	m.queueEnqueues = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_enqueues_total",
		Help: "Jobs enqueued.",
	})
	m.queueDequeues = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_dequeues_total",
		Help: "Jobs dequeued.",
	})
	m.queueEnqueueErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_enqueue_errors_total",
		Help: "Enqueue failures from backpressure or closed queue.",
	})
	m.queueProcessingLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "queue_processing_latency_ms",
		Help:    "Enqueue call latency in milliseconds.",
		Buckets: m.histogramBuckets,
	})

	m.workerActiveCount = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "worker_active_count",
		Help: "Configured worker count.",
	})
	m.workerProcessingLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "worker_processing_latency_ms",
		Help:    "Per-job worker processing latency in milliseconds.",
		Buckets: m.histogramBuckets,
	})
	m.workerErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "worker_errors_total",
		Help: "Jobs that failed processing.",
	})

	m.repositoryQueryLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "repository_query_latency_ms",
		Help:    "Repository read latency in milliseconds.",
		Buckets: m.histogramBuckets,
	})
	m.repositoryUpdateLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "repository_update_latency_ms",
		Help:    "Repository write latency in milliseconds.",
		Buckets: m.histogramBuckets,
	})

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "HTTP requests by endpoint, method, and status.",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds.",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})
}

// Helper functions on the global manager.

// RecordCalculationPass counts a completed calculation pass.
func RecordCalculationPass() {
	if globalManager.enabled {
		globalManager.calculationPasses.Inc()
	}
}

// RecordCalculationLatency observes one calculation pass latency.
func RecordCalculationLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.calculationLatency.Observe(latencyMs)
	}
}

// RecordScoreAccepted counts a raw score accepted at the boundary.
func RecordScoreAccepted() {
	if globalManager.enabled {
		globalManager.scoresAccepted.Inc()
	}
}

// RecordScoreRejected counts a raw score rejected at the boundary.
func RecordScoreRejected(reason string) {
	if globalManager.enabled {
		globalManager.scoresRejected.WithLabelValues(reason).Inc()
	}
}

// RecordRecallSelection counts a recall selection and its size.
func RecordRecallSelection(size int) {
	if globalManager.enabled {
		globalManager.recallSelections.Inc()
		globalManager.recallSize.Observe(float64(size))
	}
}

// RecordNoticeCreated counts a persisted advancement notice.
func RecordNoticeCreated() {
	if globalManager.enabled {
		globalManager.noticesCreated.Inc()
	}
}

// RecordNoticeAcknowledged counts an acknowledged notice.
func RecordNoticeAcknowledged() {
	if globalManager.enabled {
		globalManager.noticesAcked.Inc()
	}
}

// RecordNoticeOverridden counts an overridden notice.
func RecordNoticeOverridden() {
	if globalManager.enabled {
		globalManager.noticesOverridden.Inc()
	}
}

// RecordNoticeDuplicate counts a suppressed duplicate notice.
func RecordNoticeDuplicate() {
	if globalManager.enabled {
		globalManager.noticesDuplicate.Inc()
	}
}

// RecordEligibilityBlock counts a registration blocked by a notice.
func RecordEligibilityBlock() {
	if globalManager.enabled {
		globalManager.eligibilityBlocks.Inc()
	}
}

// RecordBroadcastDelivery counts a delivered score-change event.
func RecordBroadcastDelivery() {
	if globalManager.enabled {
		globalManager.broadcastDeliveries.Inc()
	}
}

// RecordBroadcastDrop counts a dropped score-change event.
func RecordBroadcastDrop() {
	if globalManager.enabled {
		globalManager.broadcastDrops.Inc()
	}
}

// UpdateQueueCapacity sets the configured queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	if globalManager.enabled {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// UpdateQueueSize sets the queue depth gauge.
func UpdateQueueSize(size int) {
	if globalManager.enabled {
		globalManager.queueSize.Set(float64(size))
	}
}

// RecordQueueEnqueue counts a successful enqueue.
func RecordQueueEnqueue() {
	if globalManager.enabled {
		globalManager.queueEnqueues.Inc()
	}
}

// RecordQueueDequeue counts a dequeue.
func RecordQueueDequeue() {
	if globalManager.enabled {
		globalManager.queueDequeues.Inc()
	}
}

// RecordQueueEnqueueError counts a failed enqueue.
func RecordQueueEnqueueError() {
	if globalManager.enabled {
		globalManager.queueEnqueueErrors.Inc()
	}
}

// RecordQueueProcessingLatency observes enqueue call latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.queueProcessingLatency.Observe(latencyMs)
	}
}

// UpdateWorkerActiveCount sets the configured worker count gauge.
func UpdateWorkerActiveCount(count int) {
	if globalManager.enabled {
		globalManager.workerActiveCount.Set(float64(count))
	}
}

// RecordWorkerProcessingLatency observes per-job latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.workerProcessingLatency.Observe(latencyMs)
	}
}

// RecordWorkerError counts a failed job.
func RecordWorkerError() {
	if globalManager.enabled {
		globalManager.workerErrors.Inc()
	}
}

// RecordRepositoryQueryLatency observes a repository read.
func RecordRepositoryQueryLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.repositoryQueryLatency.Observe(latencyMs)
	}
}

// RecordRepositoryUpdateLatency observes a repository write.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.repositoryUpdateLatency.Observe(latencyMs)
	}
}

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, status string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
	}
}

// RecordHTTPRequestDuration observes an HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, status string, durationMs float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(durationMs)
	}
}

// GetRegistry returns the custom registry metrics are registered on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
