// Package metrics provides Prometheus metrics for the spotter engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus metric exposed by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Round lifecycle
	roundsStarted  prometheus.Counter
	roundsSettled  *prometheus.CounterVec // outcome, rated
	missesRecorded prometheus.Counter
	missesPerRound prometheus.Histogram
	settleLatency  prometheus.Histogram
	saveErrors     prometheus.Counter
	lockedReplays  prometheus.Counter

	// Scoring and rating
	performanceScore prometheus.Histogram
	eloDelta         prometheus.Histogram

	// Baseline estimation
	baselineSource    *prometheus.CounterVec // source: image|global|default|cache
	baselineFallbacks prometheus.Counter

	// Store
	storeErrors *prometheus.CounterVec // op

	// Refresh queue and workers
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueEnqueues prometheus.Counter
	queueDrops    prometheus.Counter
	queueDequeues prometheus.Counter
	workerCount   prometheus.Gauge
	refreshJobs   prometheus.Counter
	refreshErrors prometheus.Counter

	// HTTP
	httpRequests *prometheus.CounterVec   // endpoint, method, status_code
	httpDuration *prometheus.HistogramVec // endpoint, method, status_code

	// Population
	trackedPlayers prometheus.Gauge
	trackedImages  prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry keeps default Go collectors out of /healthz output.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "spotter",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat metric registration
	auto := promauto.With(m.registry)

	m.roundsStarted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rounds_started_total",
		Help:      "Total rounds moved from ready to active",
	})

	m.roundsSettled = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "rounds_settled_total",
			Help:      "Total settled rounds by outcome and rating eligibility",
		},
		[]string{"outcome", "rated"},
	)

	m.missesRecorded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "misses_recorded_total",
		Help:      "Total registered misses across all rounds",
	})

	m.missesPerRound = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "misses_per_round",
		Help:      "Distribution of miss counts at settlement",
		Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
	})

	m.settleLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "settlement_latency_milliseconds",
		Help:      "Settlement execution latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.saveErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "settlement_save_errors_total",
		Help:      "Settlements whose persistence failed but still reached a terminal state",
	})

	m.lockedReplays = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "locked_replays_total",
		Help:      "Click, abort or settlement attempts ignored on an already locked round",
	})

	m.performanceScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "performance_score",
		Help:      "Distribution of normalized performance scores",
		Buckets:   prometheus.LinearBuckets(0.0, 0.1, 11),
	})

	m.eloDelta = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "elo_total_delta",
		Help:      "Distribution of net rating deltas applied to players",
		Buckets:   prometheus.LinearBuckets(-40, 5, 17),
	})

	m.baselineSource = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "baseline_estimates_total",
			Help:      "Baseline estimates by source (image, global, default, cache)",
		},
		[]string{"source"},
	)

	m.baselineFallbacks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "baseline_fallbacks_total",
		Help:      "Baseline estimates that degraded to the default after a data-access error",
	})

	m.storeErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "store_errors_total",
			Help:      "Persistence errors by operation",
		},
		[]string{"op"},
	)

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "refresh_queue_size",
		Help:      "Current size of the baseline refresh queue",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "refresh_queue_capacity",
		Help:      "Capacity of the baseline refresh queue",
	})

	m.queueEnqueues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "refresh_enqueues_total",
		Help:      "Refresh jobs accepted by the queue",
	})

	m.queueDrops = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "refresh_drops_total",
		Help:      "Refresh jobs dropped due to backpressure or a closed queue",
	})

	m.queueDequeues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "refresh_dequeues_total",
		Help:      "Refresh jobs handed to workers",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "refresh_worker_count",
		Help:      "Number of active baseline refresh workers",
	})

	m.refreshJobs = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "refresh_jobs_total",
		Help:      "Baseline refresh jobs completed",
	})

	m.refreshErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "refresh_errors_total",
		Help:      "Baseline refresh jobs that failed",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint, method and status code",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.trackedPlayers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tracked_players",
		Help:      "Number of players with a rating row",
	})

	m.trackedImages = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tracked_images",
		Help:      "Number of images with a rating row",
	})
}

// GetRegistry returns the gatherer backing the global manager, for /healthz.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level recording helpers against the global manager.

func RecordRoundStarted() { globalManager.roundsStarted.Inc() }

func RecordRoundSettled(outcome string, rated bool) {
	r := "practice"
	if rated {
		r = "rated"
	}
	globalManager.roundsSettled.WithLabelValues(outcome, r).Inc()
}

func RecordMiss()                     { globalManager.missesRecorded.Inc() }
func ObserveRoundMisses(n int)        { globalManager.missesPerRound.Observe(float64(n)) }
func ObserveSettleLatency(ms float64) { globalManager.settleLatency.Observe(ms) }
func RecordSaveError()                { globalManager.saveErrors.Inc() }
func RecordLockedReplay()             { globalManager.lockedReplays.Inc() }

func ObserveScore(s float64)    { globalManager.performanceScore.Observe(s) }
func ObserveEloDelta(d float64) { globalManager.eloDelta.Observe(d) }

func RecordBaselineEstimate(source string) {
	globalManager.baselineSource.WithLabelValues(source).Inc()
}
func RecordBaselineFallback() { globalManager.baselineFallbacks.Inc() }

func RecordStoreError(op string) { globalManager.storeErrors.WithLabelValues(op).Inc() }

func UpdateQueueSize(n int)     { globalManager.queueSize.Set(float64(n)) }
func UpdateQueueCapacity(n int) { globalManager.queueCapacity.Set(float64(n)) }
func RecordEnqueue()            { globalManager.queueEnqueues.Inc() }
func RecordEnqueueDrop()        { globalManager.queueDrops.Inc() }
func RecordDequeue()            { globalManager.queueDequeues.Inc() }
func UpdateWorkerCount(n int)   { globalManager.workerCount.Set(float64(n)) }
func RecordRefreshDone()        { globalManager.refreshJobs.Inc() }
func RecordRefreshError()       { globalManager.refreshErrors.Inc() }

func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func ObserveHTTPDuration(endpoint, method, status string, ms float64) {
	globalManager.httpDuration.WithLabelValues(endpoint, method, status).Observe(ms)
}

func UpdateTrackedPlayers(n int) { globalManager.trackedPlayers.Set(float64(n)) }
func UpdateTrackedImages(n int)  { globalManager.trackedImages.Set(float64(n)) }
