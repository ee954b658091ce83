package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

type WorkflowMetrics struct {
	Transitions  *prometheus.CounterVec
	StaleDropped *prometheus.CounterVec
	Sessions     prometheus.GaugeFunc
}

func NewWorkflowMetrics(reg prometheus.Registerer, liveSessions func() int) *WorkflowMetrics {
	m := &WorkflowMetrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testcase_workflow",
			Subsystem: "workflow",
			Name:      "stage_transitions_total",
			Help:      "Stage changes by target stage and source.",
		}, []string{"stage", "source"}),
		StaleDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testcase_workflow",
			Subsystem: "workflow",
			Name:      "stale_results_dropped_total",
			Help:      "Completions discarded because a newer request of the same kind was issued.",
		}, []string{"action"}),
		Sessions: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "testcase_workflow",
			Subsystem: "workflow",
			Name:      "live_sessions",
			Help:      "Workflow sessions held in memory.",
		}, func() float64 { return float64(liveSessions()) }),
	}
	reg.MustRegister(m.Transitions, m.StaleDropped, m.Sessions)
	return m
}
