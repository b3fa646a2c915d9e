package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ReviewMetrics counts admin approve and decline attempts.
type ReviewMetrics struct {
	decisions *prometheus.CounterVec
}

func NewReviewMetrics(reg prometheus.Registerer) *ReviewMetrics {
	if reg == nil {
		return &ReviewMetrics{}
	}
	return &ReviewMetrics{
		decisions: family{reg: reg}.counter("review_decisions_total", "Admin review decisions by action and result.", "action", "result"),
	}
}

func (m *ReviewMetrics) Observe(action, result string) {
	if m == nil {
		return
	}
	inc(m.decisions, action, result)
}

// NotificationMetrics counts what status changes turned into.
type NotificationMetrics struct {
	created *prometheus.CounterVec
	failed  *prometheus.CounterVec
}

func NewNotificationMetrics(reg prometheus.Registerer) *NotificationMetrics {
	if reg == nil {
		return &NotificationMetrics{}
	}
	f := family{reg: reg}
	return &NotificationMetrics{
		created: f.counter("notifications_created_total", "Notifications inserted for business status changes.", "source", "status"),
		failed:  f.counter("notification_handler_failures_total", "Status changes that failed to produce a notification.", "source"),
	}
}

func (m *NotificationMetrics) IncCreated(source, status string) {
	if m == nil {
		return
	}
	inc(m.created, source, status)
}

func (m *NotificationMetrics) IncFailed(source string) {
	if m == nil {
		return
	}
	inc(m.failed, source)
}
