// Package metrics holds the server's Prometheus registry and collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics encapsulates Prometheus metrics for the server.
type Metrics struct {
	registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  prometheus.Gauge
	ErrorsTotal     *prometheus.CounterVec

	LLMRequestsTotal   *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with a custom registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "explainthat_http_requests_total",
				Help: "Total number of HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "explainthat_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		ActiveRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "explainthat_http_active_requests",
				Help: "Number of currently active HTTP requests",
			},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "explainthat_errors_total",
				Help: "Total number of errors by type",
			},
			[]string{"type"},
		),
		LLMRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "explainthat_llm_requests_total",
				Help: "Total number of LLM completions by template and outcome",
			},
			[]string{"template", "outcome"},
		),
		LLMRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "explainthat_llm_request_duration_seconds",
				Help: "Duration of LLM completions in seconds",
				// completions take seconds, not milliseconds
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
			},
			[]string{"template"},
		),
	}

	// Register default Go metrics
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m.RequestsTotal.WithLabelValues("/health", "200").Add(0)
	m.RequestDuration.WithLabelValues("/health").Observe(0)

	return m
}

// Registry returns the registry so other components can add collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns a handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: false,
	})
}
