package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics covers the scheduled maintenance jobs.
type JobMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	deleted  *prometheus.CounterVec
}

func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	f := family{reg: reg, subsystem: "cron"}
	return &JobMetrics{
		runs:     f.counter("job_runs_total", "Cron job runs by outcome.", "job", "outcome"),
		duration: f.histogram("job_duration_seconds", "Wall time of cron job runs.", "job"),
		deleted:  f.counter("rows_deleted_total", "Rows removed by retention jobs.", "job", "table"),
	}
}

// Ran records one run of job that took elapsed and ended with err.
func (m *JobMetrics) Ran(job string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	inc(m.runs, job, outcome)
	if m.duration != nil {
		m.duration.WithLabelValues(clean([]string{job})...).Observe(elapsed.Seconds())
	}
}

func (m *JobMetrics) Deleted(job, table string, n int64) {
	if m == nil {
		return
	}
	add(m.deleted, float64(n), job, table)
}
