// Package metrics provides Prometheus metrics for the podium standings service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// latencyBuckets are milliseconds; upstream lookups routinely take hundreds of ms.
var latencyBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Refresh pipeline
	refreshTotal     *prometheus.CounterVec
	refreshDuration  prometheus.Histogram
	refreshInFlight  prometheus.Gauge
	refreshJoined    prometheus.Counter
	snapshotVersion  *prometheus.GaugeVec
	snapshotEntrants *prometheus.GaugeVec
	unknownScores    *prometheus.GaugeVec

	// Roster provider
	rosterFetches *prometheus.CounterVec
	rosterLatency prometheus.Histogram

	// Placement provider and batch resolver
	placementLookups *prometheus.CounterVec
	placementRetries *prometheus.CounterVec
	placementLatency prometheus.Histogram
	batchSize        prometheus.Histogram

	// Circuit breaker
	breakerState       *prometheus.GaugeVec
	breakerTransitions *prometheus.CounterVec

	// Scoreboard cache and archive
	cachePublishes     prometheus.Counter
	cacheInvalidations prometheus.Counter
	cacheTournaments   prometheus.Gauge
	archiveErrors      *prometheus.CounterVec

	// Refresh queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec
	queueDuplicates    prometheus.Counter

	// Refresh workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // dedicated registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "podium",
		subsystem:        "standings",
		histogramBuckets: latencyBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) initializeMetrics() {
	m.refreshTotal = m.counterVec("refresh_total", "Refresh calls by outcome", "outcome")
	m.refreshDuration = m.histogram("refresh_duration_milliseconds", "Wall time of a complete refresh")
	m.refreshInFlight = m.gauge("refresh_in_flight", "Refreshes currently holding a tournament guard")
	m.refreshJoined = m.counter("refresh_joined_total", "Refresh calls that joined an in-flight refresh")
	m.snapshotVersion = m.gaugeVec("snapshot_version", "Latest published snapshot version", "tournament")
	m.snapshotEntrants = m.gaugeVec("snapshot_entrants", "Entrants in the latest snapshot", "tournament")
	m.unknownScores = m.gaugeVec("snapshot_unknown_scores", "Target-round scores still pending in the latest snapshot", "tournament")

	m.rosterFetches = m.counterVec("roster_fetch_total", "Roster fetches by outcome", "outcome")
	m.rosterLatency = m.histogram("roster_fetch_latency_milliseconds", "Roster fetch latency")

	m.placementLookups = m.counterVec("placement_lookups_total", "Final placement lookup outcomes", "status")
	m.placementRetries = m.counterVec("placement_retries_total", "Placement lookup retries by triggering status", "status")
	m.placementLatency = m.histogram("placement_lookup_latency_milliseconds", "Latency of a single placement call")
	m.batchSize = promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "placement_batch_size",
		Help:    "Unique identifiers per placement batch",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	m.breakerState = m.gaugeVec("circuit_breaker_state", "Circuit breaker state (0 closed, 1 half-open, 2 open)", "name")
	m.breakerTransitions = m.counterVec("circuit_breaker_transitions_total", "Circuit breaker transitions", "name", "from", "to")

	m.cachePublishes = m.counter("cache_publishes_total", "Snapshots published to the scoreboard cache")
	m.cacheInvalidations = m.counter("cache_invalidations_total", "Scoreboard cache invalidations")
	m.cacheTournaments = m.gauge("cache_tournaments", "Tournaments with a cached snapshot")
	m.archiveErrors = m.counterVec("archive_errors_total", "Snapshot archive failures", "backend", "op")

	m.queueSize = m.gauge("queue_size", "Pending refresh requests")
	m.queueCapacity = m.gauge("queue_capacity", "Refresh queue capacity")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Refresh requests enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Refresh requests dequeued")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total", "Rejected refresh requests", "reason")
	m.queueDuplicates = m.counter("queue_duplicates_total", "Refresh requests dropped because one was already pending")

	m.workerCount = m.gauge("worker_count", "Refresh workers running")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Time a worker spent on one request")
	m.workerErrors = m.counter("worker_errors_total", "Refresh requests that ended in error")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.httpErrors = m.counterVec("http_errors_total", "HTTP error responses", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// Refresh pipeline.

// RecordRefresh counts one refresh call by outcome.
func RecordRefresh(outcome string) { globalManager.refreshTotal.WithLabelValues(outcome).Inc() }

// RecordRefreshDuration observes a refresh wall time in milliseconds.
func RecordRefreshDuration(ms float64) { globalManager.refreshDuration.Observe(ms) }

// AddRefreshInFlight moves the in-flight gauge by delta.
func AddRefreshInFlight(delta float64) { globalManager.refreshInFlight.Add(delta) }

// RecordRefreshJoined counts a caller that shared an in-flight refresh.
func RecordRefreshJoined() { globalManager.refreshJoined.Inc() }

// UpdateSnapshot records version, entrant and pending counts for a published snapshot.
func UpdateSnapshot(tournament string, version uint64, entrants, unknown int) {
	globalManager.snapshotVersion.WithLabelValues(tournament).Set(float64(version))
	globalManager.snapshotEntrants.WithLabelValues(tournament).Set(float64(entrants))
	globalManager.unknownScores.WithLabelValues(tournament).Set(float64(unknown))
}

// Roster provider.

// RecordRosterFetch counts a roster fetch and its latency.
func RecordRosterFetch(outcome string, ms float64) {
	globalManager.rosterFetches.WithLabelValues(outcome).Inc()
	globalManager.rosterLatency.Observe(ms)
}

// Placement provider.

// RecordPlacementLookup counts a final per-identifier status.
func RecordPlacementLookup(status string) {
	globalManager.placementLookups.WithLabelValues(status).Inc()
}

// RecordPlacementRetry counts one retry triggered by status.
func RecordPlacementRetry(status string) {
	globalManager.placementRetries.WithLabelValues(status).Inc()
}

// RecordPlacementLatency observes one upstream call in milliseconds.
func RecordPlacementLatency(ms float64) { globalManager.placementLatency.Observe(ms) }

// RecordBatchSize observes the number of unique identifiers in a batch.
func RecordBatchSize(n int) { globalManager.batchSize.Observe(float64(n)) }

// Circuit breaker.

// UpdateBreakerState sets the numeric state of a named breaker.
func UpdateBreakerState(name string, state float64) {
	globalManager.breakerState.WithLabelValues(name).Set(state)
}

// RecordBreakerTransition counts a breaker state change.
func RecordBreakerTransition(name, from, to string) {
	globalManager.breakerTransitions.WithLabelValues(name, from, to).Inc()
}

// Cache.

// RecordCachePublish counts a snapshot swap.
func RecordCachePublish() { globalManager.cachePublishes.Inc() }

// RecordCacheInvalidation counts an invalidation.
func RecordCacheInvalidation() { globalManager.cacheInvalidations.Inc() }

// UpdateCacheTournaments sets the number of cached tournaments.
func UpdateCacheTournaments(n int) { globalManager.cacheTournaments.Set(float64(n)) }

// RecordArchiveError counts a failed archive operation.
func RecordArchiveError(backend, op string) {
	globalManager.archiveErrors.WithLabelValues(backend, op).Inc()
}

// Queue.

// UpdateQueueSize sets the pending request count.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue counts an accepted request.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue counts a request handed to a worker.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError counts a rejected request by reason.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// RecordQueueDuplicate counts a request dropped as already pending.
func RecordQueueDuplicate() { globalManager.queueDuplicates.Inc() }

// Workers.

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerProcessingLatency observes one request's processing time.
func RecordWorkerProcessingLatency(ms float64) { globalManager.workerProcessingLatency.Observe(ms) }

// RecordWorkerError counts a failed request.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// HTTP.

// RecordHTTPRequest records a request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

// RecordHTTPError records an error response by type.
func RecordHTTPError(endpoint, method, errorType string) {
	globalManager.httpErrors.WithLabelValues(endpoint, method, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets allocated heap bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
