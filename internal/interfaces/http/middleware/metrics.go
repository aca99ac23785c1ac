package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetricsConfig holds configuration for HTTP metrics middleware.
type HTTPMetricsConfig struct {
	// Registerer receives the collectors. Nil disables the middleware.
	Registerer prometheus.Registerer
	Enabled    bool
	// SkipPaths are not recorded (e.g. /metrics itself).
	SkipPaths []string
}

// httpMetrics holds all HTTP-related collectors.
type httpMetrics struct {
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec
	activeRequests  prometheus.Gauge
}

// httpDurationBuckets leave room for SSE generation streams.
var httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	f := promauto.With(reg)
	return &httpMetrics{
		requestTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_server_request_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_server_request_duration_seconds",
			Help:    "HTTP request latency distribution in seconds",
			Buckets: httpDurationBuckets,
		}, []string{"method", "route"}),
		responseSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_server_response_size_bytes",
			Help:    "HTTP response body size distribution in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 4, 9),
		}, []string{"method", "route"}),
		activeRequests: f.NewGauge(prometheus.GaugeOpts{
			Name: "http_server_active_requests",
			Help: "Number of currently active HTTP requests",
		}),
	}
}

// HTTPMetrics returns a middleware recording request count, latency and
// response size, labelled by route pattern rather than raw path.
func HTTPMetrics(cfg HTTPMetricsConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.Registerer == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	metrics := newHTTPMetrics(cfg.Registerer)
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		metrics.activeRequests.Inc()
		c.Next()
		metrics.activeRequests.Dec()

		route := getRoutePattern(c)
		method := c.Request.Method

		metrics.requestTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size > 0 {
			metrics.responseSize.WithLabelValues(method, route).Observe(float64(size))
		}
	}
}

// getRoutePattern returns the matched route (e.g. "/api/v1/theses/:id").
// Unmatched requests share one label.
func getRoutePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

// HTTPMetricsStatusGroup returns the status class ("2xx", "4xx", ...).
func HTTPMetricsStatusGroup(statusCode int) string {
	switch {
	case statusCode >= 500:
		return "5xx"
	case statusCode >= 400:
		return "4xx"
	case statusCode >= 300:
		return "3xx"
	case statusCode >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
