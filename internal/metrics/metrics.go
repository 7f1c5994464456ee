// Package metrics exposes Prometheus instrumentation for the fitting
// service: fit outcomes and iteration counts, codec failures, and HTTP
// request metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fit outcome label values.
const (
	OutcomeConverged = "converged"
	OutcomeExhausted = "exhausted"
	OutcomeError     = "error"
)

var (
	fitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlefit_fits_total",
			Help: "Total number of element fits by outcome.",
		},
		[]string{"outcome"},
	)

	fitIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tlefit_fit_iterations",
			Help:    "Iterations needed per element fit.",
			Buckets: []float64{1, 2, 3, 5, 10, 20, 50, 100},
		},
	)

	decodeErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tlefit_decode_errors_total",
			Help: "Total number of TLE decode failures.",
		},
	)

	catalogRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tlefit_catalog_records",
			Help: "Number of element sets in the current catalog.",
		},
	)

	catalogAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tlefit_catalog_age_seconds",
			Help: "Age of the current catalog in seconds.",
		},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlefit_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tlefit_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

func init() {
	prometheus.MustRegister(fitsTotal)
	prometheus.MustRegister(fitIterations)
	prometheus.MustRegister(decodeErrorsTotal)
	prometheus.MustRegister(catalogRecords)
	prometheus.MustRegister(catalogAgeSeconds)
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
}

// RecordFit records one completed fit attempt.
func RecordFit(iterations int, outcome string) {
	fitsTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeError {
		fitIterations.Observe(float64(iterations))
	}
}

// RecordDecodeError counts a TLE decode failure.
func RecordDecodeError() {
	decodeErrorsTotal.Inc()
}

// SetCatalogCount sets the current catalog size gauge.
func SetCatalogCount(n int) {
	catalogRecords.Set(float64(n))
}

// SetCatalogAge sets the catalog age gauge.
func SetCatalogAge(seconds float64) {
	catalogAgeSeconds.Set(seconds)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// knownRoutes are the exact paths the service serves.
var knownRoutes = map[string]bool{
	"/healthz":                true,
	"/readyz":                 true,
	"/metrics":                true,
	"/api/v1/fit":             true,
	"/api/v1/elements":        true,
	"/api/v1/decode":          true,
	"/api/v1/catalog/refresh": true,
	"/api/v1/catalog/refit":   true,
}

// normalizeRoute collapses unknown paths to "other" so scanners and bots
// cannot blow up the path label cardinality.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
