package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/model"
)

// Metrics are the store-wide counters/gauges exposed over the
// engine's Prometheus registry: commits, rejections, rewinds, and the
// live version counter, so an operator can watch conflict pressure
// without attaching a debugger.
type Metrics struct {
	Commits  prometheus.Counter
	Rejects  prometheus.Counter
	Rewinds  prometheus.Counter
	Version  prometheus.Gauge
}

// NewMetrics registers a fresh set of collectors under namespace
// "floatingtemple", scoped to peerID so multiple local peers (as used
// in tests) don't collide on the same registry.
func NewMetrics(registerer prometheus.Registerer, peerID string) *Metrics {
	if !model.IsValidMetricName(model.LabelValue("floatingtemple_commits_total")) {
		panic("floatingtemple: invalid metric name")
	}

	labels := prometheus.Labels{"peer": peerID}

	m := &Metrics{
		Commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "floatingtemple",
			Name:        "commits_total",
			Help:        "Total number of transactions committed locally.",
			ConstLabels: labels,
		}),
		Rejects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "floatingtemple",
			Name:        "rejects_total",
			Help:        "Total number of remote transactions rejected by conflict detection.",
			ConstLabels: labels,
		}),
		Rewinds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "floatingtemple",
			Name:        "rewinds_total",
			Help:        "Total number of recording-thread rewinds triggered by a rejection.",
			ConstLabels: labels,
		}),
		Version: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "floatingtemple",
			Name:        "version",
			Help:        "The store's current monotonically increasing version counter.",
			ConstLabels: labels,
		}),
	}

	registerer.MustRegister(m.Commits, m.Rejects, m.Rewinds, m.Version)
	return m
}
