// Package metrics provides Prometheus metrics for the liveboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Entity refresh outcomes used as label values.
const (
	OutcomeOK         = "ok"
	OutcomeEmpty      = "empty"
	OutcomeStageError = "stage_list_error"
	OutcomeDiscarded  = "discarded"
)

// Manager manages all Prometheus metrics for the liveboard service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Aggregator
	pollCycles        prometheus.Counter
	pollCycleDuration prometheus.Histogram
	entityRefreshes   *prometheus.CounterVec
	stageFetchErrors  prometheus.Counter
	trackedEntities   prometheus.Gauge
	snapshotSize      prometheus.Histogram
	discoveryRuns     *prometheus.CounterVec

	// Delivery pipeline
	queueSize      prometheus.Gauge
	queueCapacity  prometheus.Gauge
	queueDropped   prometheus.Counter
	viewsDelivered *prometheus.CounterVec
	sinkErrors     *prometheus.CounterVec
	streamClients  prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "liveboard",
		subsystem:        "rankings",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	auto := promauto.With(m.registry)

	m.pollCycles = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "poll_cycles_total",
		Help:      "Total number of refresh cycles started (timer or manual)",
	})

	m.pollCycleDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "poll_cycle_duration_milliseconds",
		Help:      "Wall time of a full refresh cycle across all tracked entities",
		Buckets:   prometheus.ExponentialBuckets(5, 2, 12),
	})

	m.entityRefreshes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "entity_refreshes_total",
		Help:      "Per-entity refresh results by outcome",
	}, []string{"outcome"})

	m.stageFetchErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stage_fetch_errors_total",
		Help:      "Stage ranking fetches that failed and were treated as empty",
	})

	m.trackedEntities = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tracked_entities",
		Help:      "Number of live entities currently tracked",
	})

	m.snapshotSize = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_size",
		Help:      "Number of results in published snapshots",
		Buckets:   prometheus.LinearBuckets(0, 1, 11),
	})

	m.discoveryRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "discovery_runs_total",
		Help:      "Live-set discovery runs by outcome",
	}, []string{"outcome"})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Views waiting for delivery to sinks",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Capacity of the view delivery queue",
	})

	m.queueDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_dropped_total",
		Help:      "Views dropped because the delivery queue was full or closed",
	})

	m.viewsDelivered = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "views_delivered_total",
		Help:      "Views delivered per sink",
	}, []string{"sink"})

	m.sinkErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sink_errors_total",
		Help:      "Delivery failures per sink",
	}, []string{"sink"})

	m.streamClients = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_clients",
		Help:      "Connected websocket clients",
	})

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

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "memory_usage_bytes",
		Help:      "Heap bytes allocated",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "goroutines",
		Help:      "Number of goroutines",
	})
}

// Aggregator Metrics Functions.

// RecordPollCycle counts a refresh cycle and its duration.
func RecordPollCycle(durationMs float64) {
	globalManager.pollCycles.Inc()
	globalManager.pollCycleDuration.Observe(durationMs)
}

// RecordEntityRefresh counts one entity refresh by outcome.
func RecordEntityRefresh(outcome string) {
	globalManager.entityRefreshes.WithLabelValues(outcome).Inc()
}

// RecordStageFetchError counts a swallowed stage failure.
func RecordStageFetchError() {
	globalManager.stageFetchErrors.Inc()
}

// UpdateTrackedEntities sets the tracked entity gauge.
func UpdateTrackedEntities(count int) {
	globalManager.trackedEntities.Set(float64(count))
}

// RecordSnapshotSize observes the size of a published snapshot.
func RecordSnapshotSize(size int) {
	globalManager.snapshotSize.Observe(float64(size))
}

// RecordDiscoveryRun counts a discovery run by outcome.
func RecordDiscoveryRun(outcome string) {
	globalManager.discoveryRuns.WithLabelValues(outcome).Inc()
}

// Delivery Metrics Functions.

// UpdateQueueSize sets the current queue length.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueDrop counts a dropped view.
func RecordQueueDrop() {
	globalManager.queueDropped.Inc()
}

// RecordViewDelivered counts a successful delivery to sink.
func RecordViewDelivered(sink string) {
	globalManager.viewsDelivered.WithLabelValues(sink).Inc()
}

// RecordSinkError counts a failed delivery to sink.
func RecordSinkError(sink string) {
	globalManager.sinkErrors.WithLabelValues(sink).Inc()
}

// UpdateStreamClients sets the websocket client gauge.
func UpdateStreamClients(count int) {
	globalManager.streamClients.Set(float64(count))
}

// HTTP Metrics Functions.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
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

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
