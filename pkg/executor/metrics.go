package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the execution collectors. A nil *Metrics records nothing.
type Metrics struct {
	ExecutionsTotal *prometheus.CounterVec
	StatusChecks    *prometheus.CounterVec
}

// NewMetrics registers the execution collectors on reg
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "xchain_swap"
	}
	factory := promauto.With(reg)

	return &Metrics{
		ExecutionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "executions_total",
			Help:      "Total number of swap submissions by adapter and outcome",
		}, []string{"adapter", "outcome"}),
		StatusChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "status_checks_total",
			Help:      "Total number of status polls by adapter and observed state",
		}, []string{"adapter", "state"}),
	}
}

func (m *Metrics) execution(adapter, outcome string) {
	if m == nil {
		return
	}
	m.ExecutionsTotal.WithLabelValues(adapter, outcome).Inc()
}

func (m *Metrics) statusCheck(adapter, state string) {
	if m == nil {
		return
	}
	m.StatusChecks.WithLabelValues(adapter, state).Inc()
}
