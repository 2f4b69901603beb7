package notelist

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the engine's Prometheus collectors.
type Metrics struct {
	events          *prometheus.CounterVec
	resubscriptions prometheus.Counter
	failedMutations *prometheus.CounterVec
	snapshots       prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notelist_events_total",
				Help: "Total number of events handled by the list engine",
			},
			[]string{"event"},
		),
		resubscriptions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "notelist_resubscriptions_total",
				Help: "Total number of live queries replaced after an order change",
			},
		),
		failedMutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notelist_failed_mutations_total",
				Help: "Total number of store mutations that failed",
			},
			[]string{"op"},
		),
		snapshots: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "notelist_snapshots_published_total",
				Help: "Total number of list snapshots published",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.events, m.resubscriptions, m.failedMutations, m.snapshots)
	}
	return m
}
