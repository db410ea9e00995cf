// Package metrics exposes Prometheus collectors for the monitor.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	watchTargetsTotal          *prometheus.CounterVec
	watchCyclesTotal           *prometheus.CounterVec
	watchCycleDurationSeconds  prometheus.Histogram
	watchFetchDurationSeconds  *prometheus.HistogramVec
	watchNotificationsTotal    *prometheus.CounterVec
	watchActiveWorkers         prometheus.Gauge
	watchRateLimitDelaySeconds *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		watchTargetsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watch_targets_total",
				Help: "Total targets processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		watchCyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watch_cycles_total",
				Help: "Total monitor cycles run, labeled by status.",
			},
			[]string{"status"},
		)

		watchCycleDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "watch_cycle_duration_seconds",
				Help:    "Histogram of full-cycle durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)

		watchFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "watch_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by site and transport.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 15, 45},
			},
			[]string{"site", "transport"},
		)

		watchNotificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watch_notifications_total",
				Help: "Total notifications attempted, labeled by status.",
			},
			[]string{"status"},
		)

		watchActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "watch_active_workers",
				Help: "Number of workers currently processing a target.",
			},
		)

		watchRateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "watch_rate_limit_delay_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests served, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of served HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite extracts a lowercase hostname for use as a label value.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveTarget counts one processed target by outcome.
func ObserveTarget(outcome string) {
	Init()
	watchTargetsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCycle counts one completed monitor cycle.
func ObserveCycle(status string) {
	Init()
	watchCyclesTotal.WithLabelValues(status).Inc()
}

// ObserveCycleDuration records how long a full cycle took.
func ObserveCycleDuration(duration time.Duration) {
	Init()
	watchCycleDurationSeconds.Observe(duration.Seconds())
}

// ObserveFetch records a page fetch latency. Transport is "probe" or
// "headless".
func ObserveFetch(site string, transport string, duration time.Duration) {
	Init()
	watchFetchDurationSeconds.WithLabelValues(SanitizeSite(site), transport).Observe(duration.Seconds())
}

// ObserveNotification counts one notification attempt by status.
func ObserveNotification(status string) {
	Init()
	watchNotificationsTotal.WithLabelValues(status).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	watchActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	watchActiveWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	watchRateLimitDelaySeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest records a served HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
