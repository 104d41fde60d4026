// Package metrics provides Prometheus instrumentation for the trade engine.
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
	// FundingComputations counts funding-rate accruals, partitioned by
	// which side paid.
	FundingComputations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perp_funding_computations_total",
		Help: "Total number of funding rate accruals computed",
	}, []string{"payer"})

	// MetricsComputations counts full per-trade metric evaluations.
	MetricsComputations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "perp_trade_metrics_total",
		Help: "Total number of trade metric evaluations",
	})

	// MetricsLatency tracks per-trade metric evaluation latency.
	MetricsLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "perp_trade_metrics_latency_seconds",
		Help:    "Trade metric evaluation latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// ActivePairs tracks the number of tracked trading pairs.
	ActivePairs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "perp_active_pairs",
		Help: "Number of currently tracked trading pairs",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "perp_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perp_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "perp_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})

	// ParseFailures counts rejected fixed-point payloads.
	ParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "perp_fixedpoint_parse_failures_total",
		Help: "Payloads rejected for malformed fixed-point fields",
	})
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

		// Use the route pattern for path label to avoid high cardinality.
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
