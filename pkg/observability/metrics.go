package observability

import (
	"context"

	"github.com/ddt-tool/ddt/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine collectors.
type Metrics struct {
	NodeVisits       *prometheus.CounterVec
	Transitions      *prometheus.CounterVec
	TransitionErrors *prometheus.CounterVec
	HandoffDuration  prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg, if non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ddt_node_visits_total",
			Help: "Total number of node entries.",
		}, []string{"pack_id", "node_id"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ddt_transitions_total",
			Help: "Completed transitions by kind.",
		}, []string{"kind"}),
		TransitionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ddt_transition_errors_total",
			Help: "Rejected or failed transitions by kind.",
		}, []string{"kind"}),
		HandoffDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ddt_handoff_duration_seconds",
			Help:    "Duration of handoffs, including target pack acquisition.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.NodeVisits, m.Transitions, m.TransitionErrors, m.HandoffDuration)
	}
	return m
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(e.PackID, e.NodeID).Inc()
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.Transitions.WithLabelValues(string(e.Kind)).Inc()
			if e.Kind == domain.TraceHandoff {
				m.HandoffDuration.Observe(e.Duration.Seconds())
			}
		},
		OnError: func(_ context.Context, e *domain.TransitionEvent) {
			m.TransitionErrors.WithLabelValues(string(e.Kind)).Inc()
		},
	}
}
