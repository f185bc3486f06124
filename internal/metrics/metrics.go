// Package metrics exposes Prometheus instrumentation for the action
// pipeline and trust store.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters shared across the pipeline and HTTP surface.
type Metrics struct {
	ActionsExecuted *prometheus.CounterVec
	ActionsDenied   *prometheus.CounterVec
	ActionsFailed   *prometheus.CounterVec
	TrustUpdates    *prometheus.CounterVec
}

// New registers the counters on reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActionsExecuted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_actions_executed_total",
			Help: "Actions that reached the executed terminal state.",
		}, []string{"category"}),
		ActionsDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_actions_denied_total",
			Help: "Actions denied by the user.",
		}, []string{"category"}),
		ActionsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_actions_failed_total",
			Help: "Actions that failed during execution, including unregistered handlers.",
		}, []string{"category"}),
		TrustUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_trust_updates_total",
			Help: "Trust level changes, by category and new level.",
		}, []string{"category", "level"}),
	}
}
