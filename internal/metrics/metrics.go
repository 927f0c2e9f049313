// Package metrics exposes Prometheus collectors for the breach collector and API.
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
	downloadsTotal             *prometheus.CounterVec
	downloadWaitSeconds        *prometheus.HistogramVec
	rowsLoadedTotal            *prometheus.CounterVec
	lastSuccessTimestamp       *prometheus.GaugeVec
	partialsRemovedTotal       prometheus.Counter
	processesReapedTotal       *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitedTotal           prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		downloadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "breachwatch_downloads_total",
				Help: "Report downloads, labeled by category and outcome.",
			},
			[]string{"category", "outcome"},
		)

		downloadWaitSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "breachwatch_download_wait_seconds",
				Help:    "Time spent waiting for partial download markers to disappear.",
				Buckets: []float64{1, 5, 10, 20, 40, 60, 120},
			},
			[]string{"category"},
		)

		rowsLoadedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "breachwatch_rows_loaded_total",
				Help: "Breach rows written to the store, labeled by category.",
			},
			[]string{"category"},
		)

		lastSuccessTimestamp = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "breachwatch_last_success_timestamp_seconds",
				Help: "Unix time of the last successful load, labeled by category.",
			},
			[]string{"category"},
		)

		partialsRemovedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "breachwatch_partials_removed_total",
				Help: "Partial download entries removed during cleanup.",
			},
		)

		processesReapedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "breachwatch_processes_reaped_total",
				Help: "Browser processes cleaned up after a session, labeled by action.",
			},
			[]string{"action"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		rateLimitedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "breachwatch_rate_limited_total",
				Help: "API requests rejected by the per-client rate limiter.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDownload records one download attempt and how long the monitor waited.
func ObserveDownload(category, outcome string, wait time.Duration) {
	Init()
	downloadsTotal.WithLabelValues(category, outcome).Inc()
	downloadWaitSeconds.WithLabelValues(category).Observe(wait.Seconds())
}

// ObserveLoad records rows written for a category and stamps the success time.
func ObserveLoad(category string, rows int64, at time.Time) {
	Init()
	rowsLoadedTotal.WithLabelValues(category).Add(float64(rows))
	lastSuccessTimestamp.WithLabelValues(category).Set(float64(at.Unix()))
}

// ObservePartialsRemoved counts removed partial download entries.
func ObservePartialsRemoved(n int) {
	Init()
	if n > 0 {
		partialsRemovedTotal.Add(float64(n))
	}
}

// ObserveReaped counts processes handled by the reaper. action is "reaped" or "killed".
func ObserveReaped(action string, n int) {
	Init()
	if n > 0 {
		processesReapedTotal.WithLabelValues(action).Add(float64(n))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimited counts a request rejected by the rate limiter.
func ObserveRateLimited() {
	Init()
	rateLimitedTotal.Inc()
}
