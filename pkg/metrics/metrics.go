// Package metrics defines the Prometheus collectors each binary registers.
// Every recorder is nil-safe, and a nil Registerer yields one that records
// nothing, so tests and optional wiring can skip metrics entirely.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "localbiz"

type family struct {
	reg       prometheus.Registerer
	subsystem string
}

func (f family) counter(name, help string, labels ...string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: f.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
	f.reg.MustRegister(c)
	return c
}

func (f family) histogram(name, help string, labels ...string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: f.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   prometheus.DefBuckets,
	}, labels)
	f.reg.MustRegister(h)
	return h
}

func add(c *prometheus.CounterVec, n float64, labels ...string) {
	if c == nil || n <= 0 {
		return
	}
	c.WithLabelValues(clean(labels)...).Add(n)
}

func inc(c *prometheus.CounterVec, labels ...string) { add(c, 1, labels...) }

// clean keeps empty label values from producing an unlabeled series.
func clean(labels []string) []string {
	for i, v := range labels {
		if v == "" {
			labels[i] = "unknown"
		}
	}
	return labels
}
