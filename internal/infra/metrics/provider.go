package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		providerCallsTotal,
		providerCallDuration,
	)
}

var (
	// op: create_session|get_status ; result: ok|error|timeout
	providerCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_provider_calls_total",
			Help: "Calls to the external payment provider by operation and result.",
		},
		[]string{"op", "result"},
	)

	providerCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_provider_call_duration_seconds",
			Help:    "Latency of payment provider calls in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"op"},
	)
)

func ObserveProviderCall(op, result string, d time.Duration) {
	providerCallsTotal.WithLabelValues(norm(op), norm(result)).Inc()
	providerCallDuration.WithLabelValues(norm(op)).Observe(d.Seconds())
}
