package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sync outcomes used as the outcome label of geoserver_sync_total.
const (
	SyncOK       = "ok"
	SyncError    = "error"
	SyncRejected = "rejected"
	SyncSkipped  = "skipped"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream", "call"},
	)

	syncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoserver_sync_total",
			Help: "GeoServer sync attempts by layer, op and outcome.",
		},
		[]string{"layer", "op", "outcome"},
	)

	syncDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoserver_sync_dropped_total",
			Help: "Sync operations dropped because the dispatcher queue was full or closed.",
		},
		[]string{"layer"},
	)

	syncDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geoserver_sync_duration_seconds",
			Help:    "Time from submit to recorded outcome, including the settle delay.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"layer", "op"},
	)

	syncQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geoserver_sync_queue_depth",
			Help: "Operations waiting in the dispatcher queue.",
		},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Cache results by outcome.",
		},
		[]string{"layer", "outcome"},
	)

	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "change_events_total",
			Help: "Change events handed to the publisher by outcome.",
		},
		[]string{"layer", "outcome"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream, call string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream, call).Observe(durationSeconds)
}

func ObserveSync(layer, op, outcome string, durationSeconds float64) {
	syncTotal.WithLabelValues(layer, op, outcome).Inc()
	if outcome != SyncSkipped {
		syncDurationSeconds.WithLabelValues(layer, op).Observe(durationSeconds)
	}
}

func IncSyncDropped(layer string) {
	syncDropped.WithLabelValues(layer).Inc()
}

func SetSyncQueueDepth(n int) {
	syncQueueDepth.Set(float64(n))
}

func IncCacheHit(layer string) {
	cacheResults.WithLabelValues(layer, "hit").Inc()
}

func IncCacheMiss(layer string) {
	cacheResults.WithLabelValues(layer, "miss").Inc()
}

func IncCacheError(layer string) {
	cacheResults.WithLabelValues(layer, "error").Inc()
}

func IncEvent(layer, outcome string) {
	eventsTotal.WithLabelValues(layer, outcome).Inc()
}

var cacheOpDurationSeconds = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "cache_op_duration_seconds",
		Help:    "Latency of Redis cache operations.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	},
	[]string{"op", "result"},
)

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	cacheOpDurationSeconds.WithLabelValues(op, result).Observe(durationSeconds)
}
