// Package metrics exposes Prometheus counters and histograms for the
// request pipeline: total requests by method/outcome, response size, and
// requests currently in flight (always 0 or 1, given the single-slot
// dispatcher, but tracked as a gauge so a scrape can catch it mid-tick).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the pipeline's Prometheus collectors.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	responseBytes   prometheus.Histogram
	inFlightGauge   prometheus.Gauge
	requestDuration *prometheus.HistogramVec
}

// New registers and returns the collector set against reg. Pass
// prometheus.NewRegistry() for an isolated registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mcphost_bridge_requests_total",
			Help: "Total JSON-RPC requests handled, by method and outcome.",
		}, []string{"method", "outcome"}),
		responseBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mcphost_bridge_response_bytes",
			Help:    "Size in bytes of JSON-RPC response envelopes.",
			Buckets: prometheus.ExponentialBuckets(64, 4, 10),
		}),
		inFlightGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mcphost_bridge_in_flight_requests",
			Help: "Number of requests currently held by the dispatcher's single slot (0 or 1).",
		}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mcphost_bridge_request_duration_seconds",
			Help:    "Time spent in the router for a single JSON-RPC request.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// ObserveRequest records one completed request's outcome, response size,
// and duration.
func (m *Metrics) ObserveRequest(method, outcome string, responseSize int, durationSeconds float64) {
	m.requestsTotal.WithLabelValues(method, outcome).Inc()
	m.responseBytes.Observe(float64(responseSize))
	m.requestDuration.WithLabelValues(method).Observe(durationSeconds)
}

// SetInFlight reports whether the single slot is currently occupied.
func (m *Metrics) SetInFlight(occupied bool) {
	if occupied {
		m.inFlightGauge.Set(1)
	} else {
		m.inFlightGauge.Set(0)
	}
}

// Handler returns the /metrics scrape endpoint for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
