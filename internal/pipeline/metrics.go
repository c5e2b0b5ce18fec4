package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the pipeline counters.
type Metrics struct {
	// Decisions counts evaluations by decision, "skip" or "proceed".
	Decisions *prometheus.CounterVec
	// FilterDeletions counts subscription filter deletions by result,
	// "deleted" or "failed".
	FilterDeletions *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg. A nil
// registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftless_deploy_decisions_total",
				Help: "Total number of deployment necessity decisions",
			},
			[]string{"decision"},
		),
		FilterDeletions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftless_filter_deletions_total",
				Help: "Total number of log subscription filter deletions",
			},
			[]string{"result"},
		),
	}
}
