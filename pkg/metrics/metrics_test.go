package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// series returns the metric of family name whose labels include want.
func series(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
	next:
		for _, m := range fam.GetMetric() {
			got := map[string]string{}
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if got[k] != v {
					continue next
				}
			}
			return m
		}
	}
	t.Fatalf("no %s series with %v", name, want)
	return nil
}

func TestJobMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJobMetrics(reg)

	m.Ran("outbox-retention", 250*time.Millisecond, nil)
	m.Ran("outbox-retention", time.Second, errors.New("db down"))
	m.Deleted("notification-cleanup", "notifications", 3)
	m.Deleted("notification-cleanup", "notifications", 0)

	assert.Equal(t, 1.0, series(t, reg, "localbiz_cron_job_runs_total", map[string]string{"outcome": "success"}).GetCounter().GetValue())
	assert.Equal(t, 1.0, series(t, reg, "localbiz_cron_job_runs_total", map[string]string{"outcome": "failure"}).GetCounter().GetValue())

	h := series(t, reg, "localbiz_cron_job_duration_seconds", map[string]string{"job": "outbox-retention"}).GetHistogram()
	assert.EqualValues(t, 2, h.GetSampleCount())
	assert.InDelta(t, 1.25, h.GetSampleSum(), 1e-9)

	assert.Equal(t, 3.0, series(t, reg, "localbiz_cron_rows_deleted_total", map[string]string{"table": "notifications"}).GetCounter().GetValue())
}

func TestDomainMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	review := NewReviewMetrics(reg)
	notes := NewNotificationMetrics(reg)
	outbox := NewOutboxMetrics(reg)

	review.Observe("decline", "conflict")
	notes.IncCreated("hook", "rejected")
	notes.IncFailed("")
	outbox.IncPublished("business.status_changed")
	outbox.IncDeadLettered("business.status_changed", "max_attempts")

	assert.Equal(t, 1.0, series(t, reg, "localbiz_review_decisions_total", map[string]string{"result": "conflict"}).GetCounter().GetValue())
	assert.Equal(t, 1.0, series(t, reg, "localbiz_notifications_created_total", map[string]string{"status": "rejected"}).GetCounter().GetValue())
	assert.Equal(t, 1.0, series(t, reg, "localbiz_notification_handler_failures_total", map[string]string{"source": "unknown"}).GetCounter().GetValue())
	assert.Equal(t, 1.0, series(t, reg, "localbiz_outbox_published_total", nil).GetCounter().GetValue())
	assert.Equal(t, 1.0, series(t, reg, "localbiz_outbox_dead_lettered_total", map[string]string{"reason": "max_attempts"}).GetCounter().GetValue())
}

func TestNilRecordersAreNoops(t *testing.T) {
	var jobs *JobMetrics
	jobs.Ran("job", time.Second, nil)
	jobs.Deleted("job", "t", 1)
	NewJobMetrics(nil).Ran("job", time.Second, errors.New("x"))

	var outbox *OutboxMetrics
	outbox.IncRetried("e")
	NewOutboxMetrics(nil).IncPublished("e")
	NewReviewMetrics(nil).Observe("approve", "ok")
	NewNotificationMetrics(nil).IncCreated("hook", "active")
}
