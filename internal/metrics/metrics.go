// Package metrics exposes Prometheus collectors for the webgraph service.
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
	pagesTotal                 *prometheus.CounterVec
	edgesTotal                 *prometheus.CounterVec
	edgesPendingTotal          *prometheus.CounterVec
	postprocessRecordsTotal    *prometheus.CounterVec
	clickDepthChangesTotal     prometheus.Counter
	postprocessDurationSeconds prometheus.Histogram
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	activeWorkers              prometheus.Gauge
	rateLimitDelaysSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webgraph_pages_total",
				Help: "Total number of pages turned into edges, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		edgesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webgraph_edges_total",
				Help: "Total number of edge records built, labeled by direction.",
			},
			[]string{"direction"},
		)

		edgesPendingTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webgraph_edges_pending_total",
				Help: "Edge records built with a provisional click depth, labeled by endpoint side.",
			},
			[]string{"side"},
		)

		postprocessRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webgraph_postprocess_records_total",
				Help: "Records handled by post-processing, labeled by result.",
			},
			[]string{"result"},
		)

		clickDepthChangesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "webgraph_clickdepth_changes_total",
				Help: "Click depth values rewritten by post-processing.",
			},
		)

		postprocessDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "webgraph_postprocess_duration_seconds",
				Help:    "Histogram of post-processing run durations.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
			},
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

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "webgraph_active_workers",
				Help: "Number of workers currently processing a page.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webgraph_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
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

// ObservePage increments the page counter.
func ObservePage(site string, status string) {
	pagesTotal.WithLabelValues(SanitizeSite(site), status).Inc()
}

// ObserveEdges adds n built edges for the given direction.
func ObserveEdges(direction string, n int) {
	if n > 0 {
		edgesTotal.WithLabelValues(direction).Add(float64(n))
	}
}

// ObservePendingEdge counts one edge left with a provisional value on side.
func ObservePendingEdge(side string) {
	edgesPendingTotal.WithLabelValues(side).Inc()
}

// ObservePostprocessRecord counts one post-processed record.
func ObservePostprocessRecord(result string) {
	postprocessRecordsTotal.WithLabelValues(result).Inc()
}

// ObserveClickDepthChange counts one rewritten click depth.
func ObserveClickDepthChange() {
	clickDepthChangesTotal.Inc()
}

// ObservePostprocessRun records the duration of one post-processing run.
func ObservePostprocessRun(duration time.Duration) {
	postprocessDurationSeconds.Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
