package aggregator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the orchestrator. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	RoundsTotal      *prometheus.CounterVec
	RoundDuration    *prometheus.HistogramVec
	QuotesTotal      *prometheus.CounterVec
	ProviderFailures *prometheus.CounterVec
	StreamEvents     *prometheus.CounterVec
}

// NewMetrics registers the orchestrator collectors on reg
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "xchain_swap"
	}
	factory := promauto.With(reg)

	return &Metrics{
		RoundsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "rounds_total",
			Help:      "Total number of aggregation rounds by path and outcome",
		}, []string{"path", "outcome"}),
		RoundDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "round_duration_seconds",
			Help:      "Aggregation round duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}, []string{"path"}),
		QuotesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "quotes_total",
			Help:      "Total number of accepted quotes by provider and phase",
		}, []string{"provider", "phase"}),
		ProviderFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "provider_failures_total",
			Help:      "Total number of provider quote failures by reason",
		}, []string{"provider", "reason"}),
		StreamEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_total",
			Help:      "Total number of quote stream events by type",
		}, []string{"event"}),
	}
}

func (m *Metrics) round(path, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RoundsTotal.WithLabelValues(path, outcome).Inc()
	m.RoundDuration.WithLabelValues(path).Observe(elapsed.Seconds())
}

func (m *Metrics) quote(provider string, phase Phase) {
	if m == nil {
		return
	}
	m.QuotesTotal.WithLabelValues(provider, string(phase)).Inc()
}

func (m *Metrics) failure(provider, reason string) {
	if m == nil {
		return
	}
	m.ProviderFailures.WithLabelValues(provider, reason).Inc()
}

func (m *Metrics) event(name string) {
	if m == nil {
		return
	}
	m.StreamEvents.WithLabelValues(name).Inc()
}
