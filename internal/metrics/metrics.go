// Package metrics provides Prometheus instrumentation for the dashboard.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FetchesTotal counts Yahoo fetch attempts, partitioned by outcome
	// ("ok" or the error kind).
	FetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "svp_fetches_total",
		Help: "Total Yahoo Finance fetch attempts",
	}, []string{"outcome"})

	// CacheLookupsTotal counts analyze lookups by the tier that served them.
	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "svp_cache_lookups_total",
		Help: "Quote lookups by serving tier",
	}, []string{"tier"})

	// ThrottleWait is the time spent waiting on the request throttle.
	ThrottleWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "svp_throttle_wait_seconds",
		Help:    "Time spent waiting on the upstream request throttle",
		Buckets: []float64{0.5, 1, 2, 3, 4, 5, 6, 10},
	})

	// ActiveSessions tracks logged-in sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "svp_active_sessions",
		Help: "Number of live authenticated sessions",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "svp_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "svp_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.25, 1, 3, 6, 12},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path, the route surface is small and fixed.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
