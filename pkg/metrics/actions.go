package metrics

import (
	"github.com/marmos91/dittostore/pkg/observer"
	"github.com/prometheus/client_golang/prometheus"
)

// ActionMetrics is an observer.Observer counting published actions.
type ActionMetrics struct {
	total *prometheus.CounterVec
	last  *prometheus.GaugeVec
}

// NewActionMetrics returns an observer backed by the global registry, or an
// observer that discards actions when metrics are disabled.
func NewActionMetrics() observer.Observer {
	if !IsEnabled() {
		return observer.ObserverFunc(func(observer.Action) {})
	}
	return NewActionMetricsWith(GetRegistry())
}

// NewActionMetricsWith registers the action collectors on reg.
func NewActionMetricsWith(reg prometheus.Registerer) *ActionMetrics {
	return &ActionMetrics{
		total: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittostore_actions_total",
				Help: "Total number of store actions by type and source",
			},
			[]string{"type", "source"},
		)),
		last: register(reg, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittostore_last_action_timestamp_seconds",
				Help: "Unix time of the most recent action by type",
			},
			[]string{"type"},
		)),
	}
}

// Notify implements observer.Observer.
func (m *ActionMetrics) Notify(a observer.Action) {
	m.total.WithLabelValues(string(a.Type), a.Source).Inc()
	if !a.Time.IsZero() {
		m.last.WithLabelValues(string(a.Type)).Set(float64(a.Time.UnixNano()) / 1e9)
	}
}
