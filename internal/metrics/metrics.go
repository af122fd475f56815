// Package metrics exposes Prometheus collectors for the funding crawler.
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
	crawlerPagesTotal             *prometheus.CounterVec
	crawlerBytesTotal             *prometheus.CounterVec
	discoveryLinksTotal           *prometheus.CounterVec
	gateRejectionsTotal           *prometheus.CounterVec
	classifierCallsTotal          *prometheus.CounterVec
	resolutionsTotal              *prometheus.CounterVec
	recordsInsertedTotal          *prometheus.CounterVec
	recordsSuppressedTotal        prometheus.Counter
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec
	runDurationSeconds            prometheus.Histogram
	crawlerActiveWorkers          prometheus.Gauge
	crawlerRateLimitDelaysSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funding_crawler_pages_total",
				Help: "Total number of pages fetched, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		crawlerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funding_crawler_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		discoveryLinksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funding_crawler_discovery_links_total",
				Help: "Candidate links returned by discovery, labeled by strategy.",
			},
			[]string{"strategy"},
		)

		gateRejectionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funding_crawler_gate_rejections_total",
				Help: "Pages dropped before classification, labeled by reason.",
			},
			[]string{"reason"},
		)

		classifierCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funding_crawler_classifier_calls_total",
				Help: "Calls to the classification collaborator, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		resolutionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funding_crawler_resolutions_total",
				Help: "Entity link resolutions, labeled by link kind and confidence level.",
			},
			[]string{"kind", "level"},
		)

		recordsInsertedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funding_crawler_records_inserted_total",
				Help: "Records newly inserted into the store, labeled by source.",
			},
			[]string{"source"},
		)

		recordsSuppressedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "funding_crawler_records_suppressed_total",
				Help: "Drafts dropped as in-run duplicates.",
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

		runDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "funding_crawler_run_duration_seconds",
				Help:    "Wall time of a full crawl run.",
				Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 3600},
			},
		)

		crawlerActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "funding_crawler_active_workers",
				Help: "Number of workers currently processing a candidate.",
			},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "funding_crawler_rate_limit_delays_seconds",
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

// ObserveFetch counts a fetched page and its size.
func ObserveFetch(site string, status int, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	crawlerPagesTotal.WithLabelValues(sanitizedSite, strconv.Itoa(status)).Inc()
	if bytesFetched > 0 {
		crawlerBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveDiscovery counts links produced by a strategy.
func ObserveDiscovery(strategy string, links int) {
	Init()
	discoveryLinksTotal.WithLabelValues(strategy).Add(float64(links))
}

// ObserveGateRejection counts a page dropped before classification.
func ObserveGateRejection(reason string) {
	Init()
	gateRejectionsTotal.WithLabelValues(reason).Inc()
}

// ObserveClassification counts a classifier call outcome.
func ObserveClassification(outcome string) {
	Init()
	classifierCallsTotal.WithLabelValues(outcome).Inc()
}

// ObserveResolution counts an entity link resolution.
func ObserveResolution(kind, level string) {
	Init()
	resolutionsTotal.WithLabelValues(kind, level).Inc()
}

// ObserveInserted adds newly inserted records for a source.
func ObserveInserted(source string, n int) {
	Init()
	recordsInsertedTotal.WithLabelValues(source).Add(float64(n))
}

// ObserveSuppressed adds in-run duplicates dropped before persistence.
func ObserveSuppressed(n int) {
	Init()
	recordsSuppressedTotal.Add(float64(n))
}

// ObserveRun records the duration of a full run.
func ObserveRun(duration time.Duration) {
	Init()
	runDurationSeconds.Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	crawlerActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	crawlerActiveWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	crawlerRateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
