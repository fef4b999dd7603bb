// Package metrics provides Prometheus metrics for the chat pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects counters and histograms for chat turns.
type Metrics struct {
	registry *prometheus.Registry

	turnDuration *prometheus.HistogramVec
	turns        *prometheus.CounterVec
	failovers    prometheus.Counter
	streamErrors prometheus.Counter
	enrichErrors *prometheus.CounterVec
}

// New creates a Metrics instance backed by its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		turnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nexus",
			Subsystem: "chat",
			Name:      "turn_duration_seconds",
			Help:      "Wall-clock duration of chat turns.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"model"}),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexus",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Chat turns by outcome.",
		}, []string{"outcome"}),
		failovers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nexus",
			Subsystem: "chat",
			Name:      "failovers_total",
			Help:      "Turns that fell back to the secondary model.",
		}),
		streamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nexus",
			Subsystem: "chat",
			Name:      "stream_errors_total",
			Help:      "Terminal stream errors surfaced to clients.",
		}),
		enrichErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexus",
			Subsystem: "chat",
			Name:      "enrichment_errors_total",
			Help:      "Recovered enrichment failures by kind.",
		}, []string{"kind"}),
	}

	registry.MustRegister(m.turnDuration, m.turns, m.failovers, m.streamErrors, m.enrichErrors)

	return m
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveTurn(model string, d time.Duration, outcome string) {
	m.turnDuration.WithLabelValues(model).Observe(d.Seconds())
	m.turns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncFailover() {
	m.failovers.Inc()
}

func (m *Metrics) IncStreamError() {
	m.streamErrors.Inc()
}

func (m *Metrics) IncEnrichmentError(kind string) {
	m.enrichErrors.WithLabelValues(kind).Inc()
}
