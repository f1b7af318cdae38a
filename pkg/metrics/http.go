package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// InstrumentHandler counts and times the requests served by next. It returns
// next unchanged when metrics are disabled.
func InstrumentHandler(next http.Handler) http.Handler {
	if !IsEnabled() {
		return next
	}
	return InstrumentHandlerWith(GetRegistry(), next)
}

// InstrumentHandlerWith registers the HTTP collectors on reg and wraps next.
func InstrumentHandlerWith(reg prometheus.Registerer, next http.Handler) http.Handler {
	requests := register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dittostore_http_requests_total",
			Help: "Total number of API requests by status code and method",
		},
		[]string{"code", "method"},
	))
	duration := register(reg, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dittostore_http_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"code", "method"},
	))
	inFlight := register(reg, prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dittostore_http_requests_in_flight",
			Help: "Current number of API requests being served",
		},
	))

	return promhttp.InstrumentHandlerInFlight(inFlight,
		promhttp.InstrumentHandlerDuration(duration,
			promhttp.InstrumentHandlerCounter(requests, next),
		),
	)
}
