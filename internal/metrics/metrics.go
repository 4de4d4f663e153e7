// Package metrics exposes process-wide Prometheus collectors for fetch
// plumbing, dump output and the HTTP API.
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
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	fetchRetriesTotal          *prometheus.CounterVec
	headlessPromotionsTotal    *prometheus.CounterVec
	dumpsWrittenTotal          *prometheus.CounterVec
	dumpFragmentsTotal         *prometheus.CounterVec
	dumpBytesTotal             *prometheus.CounterVec

	once sync.Once
)

// Init registers the collectors with the default registry. Repeated calls
// are no-ops.
func Init() {
	once.Do(func() {
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
		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "whparser_rate_limit_delay_seconds",
				Help:    "Time spent waiting for a fetch slot, labeled by site.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)
		fetchRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whparser_fetch_retries_total",
				Help: "Entry fetch attempts repeated after a transient transport error.",
			},
			[]string{"site"},
		)
		headlessPromotionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whparser_headless_promotions_total",
				Help: "Entry pages re-fetched through the browser, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		dumpsWrittenTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whparser_dumps_written_total",
				Help: "Dump artifacts written, labeled by parser and run state.",
			},
			[]string{"parser", "state"},
		)
		dumpFragmentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whparser_dump_fragments_total",
				Help: "Non-empty parser fragments written to dumps.",
			},
			[]string{"parser"},
		)
		dumpBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whparser_dump_bytes_total",
				Help: "Bytes written to dumps.",
			},
			[]string{"parser"},
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

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(site string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(SanitizeSite(site)).Observe(duration.Seconds())
}

// ObserveFetchRetry counts one repeated fetch attempt.
func ObserveFetchRetry(site string) {
	Init()
	fetchRetriesTotal.WithLabelValues(SanitizeSite(site)).Inc()
}

// ObserveHeadlessPromotion counts a browser re-fetch by outcome.
func ObserveHeadlessPromotion(outcome string) {
	Init()
	headlessPromotionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDump records a written dump.
func ObserveDump(parser, state string, fragments int, bytes int64) {
	Init()
	dumpsWrittenTotal.WithLabelValues(parser, state).Inc()
	if fragments > 0 {
		dumpFragmentsTotal.WithLabelValues(parser).Add(float64(fragments))
	}
	if bytes > 0 {
		dumpBytesTotal.WithLabelValues(parser).Add(float64(bytes))
	}
}
