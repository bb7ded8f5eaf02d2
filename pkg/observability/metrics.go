// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring authgate.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LatencyBuckets defines histogram buckets for API request latencies,
// ranging from 1ms to 5s.
var LatencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

var (
	// RequestsTotal counts all HTTP requests by method, status class, and route.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authgate_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LatencyBuckets,
		},
		[]string{"method", "route"},
	)

	// AuthDecisionsTotal counts authentication outcomes by decision
	// (yes, no, abstain) and failure kind ("none" on success or abstain).
	AuthDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_auth_decisions_total",
			Help: "Authentication decisions",
		},
		[]string{"decision", "kind"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "authgate_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		AuthDecisionsTotal,
		RateLimitRejectedTotal,
	)
}
