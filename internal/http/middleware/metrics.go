// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file instruments HTTP traffic with Prometheus. Label cardinality is
// bounded: the path label is the registered Gin route, and requests that
// matched no route share the single label "unmatched" (static upload files
// and scanners would otherwise mint one series per URL).
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const unmatchedPath = "unmatched"

// HTTPMetrics holds the HTTP collectors.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inflight prometheus.Gauge
	size     *prometheus.HistogramVec
}

// NewHTTPMetrics creates the collectors and registers them with reg when reg
// is non-nil.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "path"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		}),
		size: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "http_response_size_bytes",
			Help: "Size of HTTP responses in bytes.",
			Buckets: []float64{
				200, 500, 1 << 10, 5 << 10, 25 << 10, 100 << 10,
				500 << 10, 1 << 20, 5 << 20, 10 << 20,
			},
		}, []string{"method", "path"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.latency, m.inflight, m.size)
	}
	return m
}

// Handler records count, latency, in-flight and response size per request.
// The long-lived WebSocket route is counted but kept out of the latency
// histogram.
func (m *HTTPMetrics) Handler(skipLatency ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipLatency))
	for _, p := range skipLatency {
		skip[p] = struct{}{}
	}
	return func(c *gin.Context) {
		start := time.Now()
		m.inflight.Inc()
		defer m.inflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedPath
		}
		method := c.Request.Method

		m.requests.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		if _, ok := skip[path]; !ok {
			m.latency.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		}
		if size := c.Writer.Size(); size >= 0 {
			m.size.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
