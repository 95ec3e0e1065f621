// Package metrics exposes Prometheus collectors for the prospecting service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchRequestsTotal        *prometheus.CounterVec
	fetchRetriesTotal         prometheus.Counter
	rateLimitDelaySeconds     prometheus.Histogram
	poolSizeKeywords          prometheus.Histogram
	tasksTotal                *prometheus.CounterVec
	pipelineDurationSeconds   prometheus.Histogram
	cacheLookupsTotal         *prometheus.CounterVec
	httpRequestsTotal         *prometheus.CounterVec
	httpRequestDurationSecond *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. It is safe to call multiple
// times.
func Init() {
	once.Do(func() {
		fetchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prospector_fetch_requests_total",
				Help: "Total outbound keyword API requests, labeled by HTTP status (0 = transport error).",
			},
			[]string{"status"},
		)

		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "prospector_fetch_retries_total",
				Help: "Total backoff retries against the keyword API.",
			},
		)

		rateLimitDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "prospector_rate_limit_delay_seconds",
				Help:    "Histogram of delays introduced by the shared throttle.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		)

		poolSizeKeywords = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "prospector_pool_size_keywords",
				Help:    "Histogram of final keyword pool sizes per pipeline run.",
				Buckets: []float64{0, 10, 25, 50, 100, 250, 500, 1000},
			},
		)

		tasksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prospector_tasks_total",
				Help: "Total tasks reaching a terminal state, labeled by status.",
			},
			[]string{"status"},
		)

		pipelineDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "prospector_pipeline_duration_seconds",
				Help:    "Histogram of full pipeline run durations on cache misses.",
				Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
			},
		)

		cacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prospector_cache_lookups_total",
				Help: "Total arbitrage cache lookups, labeled by outcome (fresh, stale, miss).",
			},
			[]string{"outcome"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSecond = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordFetch increments the outbound request counter for status.
func RecordFetch(status string) {
	Init()
	fetchRequestsTotal.WithLabelValues(status).Inc()
}

// RecordFetchRetry increments the retry counter.
func RecordFetchRetry() {
	Init()
	fetchRetriesTotal.Inc()
}

// ObserveRateLimitDelay records a delay introduced by the throttle.
func ObserveRateLimitDelay(d time.Duration) {
	Init()
	rateLimitDelaySeconds.Observe(d.Seconds())
}

// ObservePoolSize records the final pool size of a pipeline run.
func ObservePoolSize(n int) {
	Init()
	poolSizeKeywords.Observe(float64(n))
}

// RecordTask increments the terminal-state task counter.
func RecordTask(status string) {
	Init()
	tasksTotal.WithLabelValues(status).Inc()
}

// ObservePipelineDuration records the duration of a full pipeline run.
func ObservePipelineDuration(d time.Duration) {
	Init()
	pipelineDurationSeconds.Observe(d.Seconds())
}

// RecordCacheLookup increments the cache lookup counter for outcome.
func RecordCacheLookup(outcome string) {
	Init()
	cacheLookupsTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest increments the inbound HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSecond.WithLabelValues(method, route).Observe(duration.Seconds())
}
