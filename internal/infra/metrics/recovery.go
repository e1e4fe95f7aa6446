package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		recoveryActionsTotal,
		reconcilerRunsTotal,
		reconcilerRecordsTotal,
		httpRequestsTotal,
	)
}

var (
	// result: ok or an error kind (forbidden, not_found, already_claimed, ...)
	recoveryActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_recovery_actions_total",
			Help: "Recovery actions by action and result.",
		},
		[]string{"action", "result"},
	)

	// result: ok|skipped_locked|error
	reconcilerRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconciler_runs_total",
			Help: "Reconciler sweeps by result.",
		},
		[]string{"result"},
	)

	// outcome: paid|failed|expired|unchanged|unknown|error
	reconcilerRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconciler_records_total",
			Help: "Records visited by the reconciler by outcome.",
		},
		[]string{"outcome"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route pattern and status code.",
		},
		[]string{"route", "status"},
	)
)

func IncRecoveryAction(action, result string) {
	recoveryActionsTotal.WithLabelValues(norm(action), norm(result)).Inc()
}

func IncReconcilerRun(result string) {
	reconcilerRunsTotal.WithLabelValues(norm(result)).Inc()
}

func IncReconcilerRecord(outcome string) {
	reconcilerRecordsTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncHTTPRequest(route string, status int) {
	httpRequestsTotal.WithLabelValues(route, statusClass(status)).Inc()
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
