package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records backend API activity. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	routes   prometheus.Counter
}

// NewMetrics creates the client collectors and registers them with reg
// when it is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokenflight",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Backend API requests segmented by operation and outcome.",
		}, []string{"operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tokenflight",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Backend API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		routes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tokenflight",
			Subsystem: "api",
			Name:      "streamed_routes_total",
			Help:      "Routes received over streaming quote responses.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.latency, m.routes)
	}
	return m
}

func (m *Metrics) observe(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(operation, outcome(err)).Inc()
	m.latency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) routeStreamed() {
	if m == nil {
		return
	}
	m.routes.Inc()
}
