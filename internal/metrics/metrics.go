// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tadasupo_case_transitions_total",
		Help: "Case lifecycle operations by action and result.",
	}, []string{"action", "result"})

	MailSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tadasupo_mail_sends_total",
		Help: "Outbound mail attempts by result.",
	}, []string{"result"})

	MeetingProvisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tadasupo_meeting_provisions_total",
		Help: "Meeting provisioning attempts by provider and result.",
	}, []string{"provider", "result"})

	LockWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tadasupo_lock_wait_seconds",
		Help:    "Time spent waiting for the mutation lock.",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 20},
	})

	LockTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tadasupo_lock_timeouts_total",
		Help: "Mutation lock acquisitions that timed out.",
	})

	AuditFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tadasupo_audit_write_failures_total",
		Help: "Audit entries that could not be written.",
	})
)

// Result maps an error to the "ok"/"error" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
