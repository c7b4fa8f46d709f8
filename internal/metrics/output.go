package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	outputState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "branchout",
		Subsystem: "output",
		Name:      "state",
		Help:      "Current lifecycle state (1 for the active state label)",
	}, []string{"filter", "state"})

	outputTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "branchout",
		Subsystem: "output",
		Name:      "transitions_total",
		Help:      "Lifecycle state transitions",
	}, []string{"filter", "from", "to"})

	outputStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "branchout",
		Subsystem: "output",
		Name:      "starts_total",
		Help:      "Output start attempts by result",
	}, []string{"filter", "result"})
)

// SetOutputState records a transition and marks the new state as current.
// states lists every state label so stale ones are zeroed.
func SetOutputState(filter, from, to string, states []string) {
	for _, s := range states {
		v := 0.0
		if s == to {
			v = 1
		}
		outputState.WithLabelValues(filter, s).Set(v)
	}
	if from != to {
		outputTransitions.WithLabelValues(filter, from, to).Inc()
	}
}

// IncOutputStart counts a start attempt.
func IncOutputStart(filter string, ok bool) {
	result := "failed"
	if ok {
		result = "succeeded"
	}
	outputStarts.WithLabelValues(filter, result).Inc()
}

// DeleteOutputMetrics removes all lifecycle metrics for a filter.
func DeleteOutputMetrics(filter string) {
	outputState.DeletePartialMatch(prometheus.Labels{"filter": filter})
	outputTransitions.DeletePartialMatch(prometheus.Labels{"filter": filter})
	outputStarts.DeletePartialMatch(prometheus.Labels{"filter": filter})
}
