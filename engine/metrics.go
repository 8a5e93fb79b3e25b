package engine

import "github.com/prometheus/client_golang/prometheus"

// metrics instruments the reconcile/install pipeline. A nil Registerer
// (the default) leaves the engine fully functional with metrics simply
// uncollected.
type metrics struct {
	jobsInstalled   *prometheus.CounterVec
	jobsDropped     *prometheus.CounterVec
	cyclesBroken    prometheus.Counter
	activateLatency prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		jobsInstalled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "systemgo",
			Subsystem: "engine",
			Name:      "jobs_installed_total",
			Help:      "Jobs moved into the live job set, by job type.",
		}, []string{"type"}),
		jobsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "systemgo",
			Subsystem: "engine",
			Name:      "jobs_dropped_total",
			Help:      "Jobs dropped by the reconciler, by error kind.",
		}, []string{"kind"}),
		cyclesBroken: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "systemgo",
			Subsystem: "engine",
			Name:      "cycles_broken_total",
			Help:      "Ordering cycles resolved by dropping a job.",
		}),
		activateLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "systemgo",
			Subsystem: "engine",
			Name:      "activate_seconds",
			Help:      "Wall-clock time spent inside Activate.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.jobsInstalled, m.jobsDropped, m.cyclesBroken, m.activateLatency)
	}
	return m
}
