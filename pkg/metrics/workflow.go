package metrics

import "github.com/prometheus/client_golang/prometheus"

// WorkflowMetrics counts loan transitions and dropped notifications.
type WorkflowMetrics struct {
	loanTransitions      *prometheus.CounterVec
	notificationFailures *prometheus.CounterVec
	notificationsSent    *prometheus.CounterVec
}

// NewWorkflowMetrics registers the workflow counters on reg. A nil registerer
// yields a no-op recorder.
func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	if reg == nil {
		return &WorkflowMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "loans",
		Name:      "transitions_total",
		Help:      "Loan status transitions by outcome.",
	}, []string{"from", "to", "result"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifications",
		Name:      "failures_total",
		Help:      "Notifications that could not be stored.",
	}, []string{"target"})
	sent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifications",
		Name:      "sent_total",
		Help:      "Notifications stored per target kind.",
	}, []string{"target"})
	reg.MustRegister(transitions, failures, sent)
	return &WorkflowMetrics{
		loanTransitions:      transitions,
		notificationFailures: failures,
		notificationsSent:    sent,
	}
}

// ObserveLoanTransition records a transition attempt; result is "ok" or an error code.
func (w *WorkflowMetrics) ObserveLoanTransition(from, to, result string) {
	if w == nil || w.loanTransitions == nil {
		return
	}
	w.loanTransitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to), normalizeLabel(result)).Inc()
}

// IncNotificationFailure counts a swallowed notification error. target is "user" or "role".
func (w *WorkflowMetrics) IncNotificationFailure(target string) {
	if w == nil || w.notificationFailures == nil {
		return
	}
	w.notificationFailures.WithLabelValues(normalizeLabel(target)).Inc()
}

// AddNotificationsSent counts stored notifications.
func (w *WorkflowMetrics) AddNotificationsSent(target string, n int) {
	if w == nil || w.notificationsSent == nil || n <= 0 {
		return
	}
	w.notificationsSent.WithLabelValues(normalizeLabel(target)).Add(float64(n))
}
