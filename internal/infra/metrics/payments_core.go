package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentTransitionsTotal,
		paymentAuditFailuresTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payments reaching a status (pending on creation, then every applied transition).",
		},
		[]string{"status"},
	)

	// result: applied|noop|rejected|conflict
	paymentTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_transitions_total",
			Help: "Payment state machine transition attempts by edge and result.",
		},
		[]string{"from", "to", "result"},
	)

	paymentAuditFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_audit_failures_total",
			Help: "Audit log appends that could not be written, by event type.",
		},
		[]string{"event_type"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func IncTransition(from, to, result string) {
	paymentTransitionsTotal.WithLabelValues(norm(from), norm(to), norm(result)).Inc()
}

func IncAuditFailure(eventType string) {
	paymentAuditFailuresTotal.WithLabelValues(norm(eventType)).Inc()
}
