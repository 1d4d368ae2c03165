package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// outcome labels of ldash_api_requests_total.
const (
	outcomeOK           = "ok"
	outcomeUnauthorized = "unauthorized"
	outcomeRejected     = "rejected"
	outcomeServer       = "server_error"
	outcomeDecode       = "decode_error"
	outcomeNetwork      = "network_error"
)

// Metrics counts and times backend calls. A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the client metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ldash_api_requests_total",
			Help: "Backend calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ldash_api_request_duration_seconds",
			Help:    "Backend call latency by operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *Metrics) observe(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (c *Client) observe(operation, outcome string, start time.Time) {
	c.metrics.observe(operation, outcome, time.Since(start))
}
