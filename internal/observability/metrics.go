// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Collector metrics
	CollectorRunsTotal *prometheus.CounterVec
	CollectorDuration  *prometheus.HistogramVec
	ItemsCollected     *prometheus.CounterVec
	CollectorErrors    *prometheus.CounterVec

	// Provider metrics
	ProviderRequests      *prometheus.CounterVec
	ProviderLatency       *prometheus.HistogramVec
	RateLimiterWaitSecond prometheus.Histogram

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Backfill / gap metrics
	BackfillRunsTotal  *prometheus.CounterVec
	MissingBucketsSeen *prometheus.GaugeVec

	// Health metrics
	LastSuccessfulRun *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "coinharvest"
	}

	return &Metrics{
		CollectorRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "runs_total",
			Help:      "Total number of collector runs by collector and status",
		}, []string{"collector", "status"}),
		CollectorDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "duration_seconds",
			Help:      "Collector run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"collector"}),
		ItemsCollected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "items_total",
			Help:      "Total number of items written by collector",
		}, []string{"collector"}),
		CollectorErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "errors_total",
			Help:      "Total number of collector errors",
		}, []string{"collector"}),

		ProviderRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Total number of upstream provider requests by provider and outcome",
		}, []string{"provider", "outcome"}),
		ProviderLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "latency_seconds",
			Help:      "Upstream provider request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		RateLimiterWaitSecond: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "rate_limiter_wait_seconds",
			Help:      "Time spent waiting on the provider rate limiter",
			Buckets:   prometheus.DefBuckets,
		}),

		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of cache misses",
		}),

		BackfillRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "runs_total",
			Help:      "Total number of backfill runs by status",
		}, []string{"status"}),
		MissingBucketsSeen: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "missing_buckets",
			Help:      "Missing buckets found by the most recent gap scan, by symbol and table",
		}, []string{"symbol", "table"}),

		LastSuccessfulRun: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last successful run per collector",
		}, []string{"collector"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRun records a finished collector run.
func (m *Metrics) RecordRun(collector, status string, durationSeconds float64, items int) {
	if m == nil {
		return
	}
	m.CollectorRunsTotal.WithLabelValues(collector, status).Inc()
	m.CollectorDuration.WithLabelValues(collector).Observe(durationSeconds)
	if items > 0 {
		m.ItemsCollected.WithLabelValues(collector).Add(float64(items))
	}
	if status == "error" {
		m.CollectorErrors.WithLabelValues(collector).Inc()
	}
}

// RecordProviderRequest records one upstream request.
func (m *Metrics) RecordProviderRequest(provider, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(provider, outcome).Inc()
	m.ProviderLatency.WithLabelValues(provider).Observe(seconds)
}

// RecordRateLimiterWait records time spent blocked on the rate limiter.
func (m *Metrics) RecordRateLimiterWait(seconds float64) {
	if m == nil {
		return
	}
	m.RateLimiterWaitSecond.Observe(seconds)
}

// RecordCacheHit counts a price cache hit.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// RecordCacheMiss counts a price cache miss.
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}
