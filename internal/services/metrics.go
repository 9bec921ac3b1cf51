package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds domain collectors. A nil *Metrics is valid and records
// nothing, which keeps tests free of registry setup.
type Metrics struct {
	analysisAttempts *prometheus.CounterVec
	modelLatency     prometheus.Histogram
	webhookEvents    *prometheus.CounterVec
	uploads          *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when reg is
// non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		analysisAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analysis_model_attempts_total",
			Help: "Vision model calls by outcome (ok, overloaded, error).",
		}, []string{"outcome"}),
		modelLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "analysis_model_call_duration_seconds",
			Help:    "Latency of a single vision model call.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_webhook_events_total",
			Help: "Payment webhook events by type and outcome.",
		}, []string{"type", "outcome"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reports_uploads_total",
			Help: "Stored report uploads by storage backend.",
		}, []string{"method"}),
	}
	if reg != nil {
		reg.MustRegister(m.analysisAttempts, m.modelLatency, m.webhookEvents, m.uploads)
	}
	return m
}

func (m *Metrics) modelCall(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.analysisAttempts.WithLabelValues(outcome).Inc()
	m.modelLatency.Observe(d.Seconds())
}

func (m *Metrics) webhook(eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) upload(method string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(method).Inc()
}
