// Package metrics exposes Prometheus collectors for the crawler service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlerPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobcrawler_listing_pages_total",
			Help: "Listing pages requested, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	crawlerCardsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobcrawler_cards_total",
			Help: "Listing cards seen, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	crawlerDetailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobcrawler_detail_fetches_total",
			Help: "Detail fetches, labeled by enrichment status.",
		},
		[]string{"status"},
	)

	crawlerRateLimitHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobcrawler_rate_limit_hits_total",
			Help: "Responses with HTTP 429.",
		},
	)

	crawlerBackoffSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jobcrawler_rate_limit_backoff_seconds",
			Help:    "Histogram of waits after HTTP 429.",
			Buckets: []float64{1, 10, 60, 120, 180, 240, 300},
		},
	)

	crawlerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobcrawler_requests_total",
			Help: "Outbound requests, labeled by site and status code.",
		},
		[]string{"site", "code"},
	)

	crawlerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobcrawler_runs_total",
			Help: "Completed crawls, labeled by stop reason.",
		},
		[]string{"stop_reason"},
	)

	crawlerRunResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jobcrawler_run_results",
			Help:    "Records returned per crawl.",
			Buckets: []float64{0, 1, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	crawlerRunDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jobcrawler_run_duration_seconds",
			Help:    "Wall-clock duration of a crawl.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	crawlerRateLimitDelaysSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobcrawler_client_rate_limit_delays_seconds",
			Help:    "Histogram of client-side token bucket waits.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
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
)

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

// ObservePage counts a listing page by outcome.
func ObservePage(outcome string) {
	crawlerPagesTotal.WithLabelValues(outcome).Inc()
}

// ObserveCard counts a card by outcome.
func ObserveCard(outcome string) {
	crawlerCardsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDetail counts a detail fetch by enrichment status.
func ObserveDetail(status string) {
	crawlerDetailsTotal.WithLabelValues(status).Inc()
}

// ObserveRateLimit records one 429 and the backoff it caused.
func ObserveRateLimit(wait time.Duration) {
	crawlerRateLimitHitsTotal.Inc()
	crawlerBackoffSeconds.Observe(wait.Seconds())
}

// ObserveRequest counts an outbound request.
func ObserveRequest(site string, code int) {
	crawlerRequestsTotal.WithLabelValues(SanitizeSite(site), strconv.Itoa(code)).Inc()
}

// ObserveCrawl records a finished crawl.
func ObserveCrawl(stopReason string, results int, duration time.Duration) {
	crawlerRunsTotal.WithLabelValues(stopReason).Inc()
	crawlerRunResults.Observe(float64(results))
	crawlerRunDurationSeconds.Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a client-side limiter wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	crawlerRateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
