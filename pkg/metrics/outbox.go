package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics tracks what the publisher did with each claimed row.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	retried   *prometheus.CounterVec
	dead      *prometheus.CounterVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	f := family{reg: reg, subsystem: "outbox"}
	return &OutboxMetrics{
		published: f.counter("published_total", "Outbox events published to Pub/Sub.", "event_type"),
		retried:   f.counter("retried_total", "Failed publish attempts scheduled for retry.", "event_type"),
		dead:      f.counter("dead_lettered_total", "Outbox events dead-lettered, by reason.", "event_type", "reason"),
	}
}

func (m *OutboxMetrics) IncPublished(eventType string) {
	if m != nil {
		inc(m.published, eventType)
	}
}

func (m *OutboxMetrics) IncRetried(eventType string) {
	if m != nil {
		inc(m.retried, eventType)
	}
}

func (m *OutboxMetrics) IncDeadLettered(eventType, reason string) {
	if m != nil {
		inc(m.dead, eventType, reason)
	}
}
