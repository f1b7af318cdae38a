package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Path is where the scrape endpoint is mounted.
const Path = "/metrics"

// Handler serves the global registry in the Prometheus exposition format.
// Before InitRegistry it answers 503.
func Handler() http.Handler {
	reg := GetRegistry()
	if reg == nil {
		return HandlerFor(nil)
	}
	return HandlerFor(reg)
}

// HandlerFor serves g, or answers 503 when g is nil.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "metrics collection is disabled", http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
