package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records login attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intervia_auth_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"},
	)

	// SignupOTPs counts issued signup codes by path (created|resent).
	SignupOTPs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intervia_signup_otps_total",
			Help: "Total number of signup verification codes issued",
		},
		[]string{"path"},
	)

	// Registrations counts completed OTP verifications that created an account.
	Registrations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intervia_registrations_total",
			Help: "Total number of accounts created via OTP verification",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intervia_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
