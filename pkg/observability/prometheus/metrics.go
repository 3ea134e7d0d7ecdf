// Package prometheus exposes dispatch metrics: publish fan-out sizes and
// durations per bus, and mediation outcomes. It implements the observer
// hooks of pkg/bus and pkg/mediator.
package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mandel59/comunica/pkg/bus"
	"github.com/mandel59/comunica/pkg/mediator"
)

var (
	// DefaultRegistry is the default Prometheus registry.
	DefaultRegistry = prometheus.NewRegistry()

	// DefaultRegisterer is the default Prometheus registerer.
	DefaultRegisterer = prometheus.WrapRegistererWith(prometheus.Labels{"service": "comunica"}, DefaultRegistry)

	metricsOnce sync.Once
	metrics     *Metrics
)

// Metrics holds all dispatch metrics.
type Metrics struct {
	PublishesTotal    *prometheus.CounterVec
	PublishDuration   *prometheus.HistogramVec
	PublishCandidates *prometheus.HistogramVec

	MediationsTotal   *prometheus.CounterVec
	MediationDuration *prometheus.HistogramVec
}

// GetMetrics returns the global metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics(DefaultRegisterer)
	})
	return metrics
}

// NewMetrics creates a metrics collection registered against the given
// registerer. A nil registerer falls back to DefaultRegisterer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = DefaultRegisterer
	}

	return &Metrics{
		PublishesTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "comunica_bus_publishes_total",
				Help: "Total number of bus publishes",
			},
			[]string{"bus", "route"}, // route: indexed, fullscan
		),
		PublishDuration: promauto.With(registerer).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "comunica_bus_publish_duration_seconds",
				Help:    "Time spent collecting test replies for one publish",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"bus", "route"},
		),
		PublishCandidates: promauto.With(registerer).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "comunica_bus_publish_candidates",
				Help:    "Number of actors tested per publish",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1 to 512
			},
			[]string{"bus", "route"},
		),
		MediationsTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "comunica_mediations_total",
				Help: "Total number of mediations",
			},
			[]string{"bus", "outcome"}, // outcome: ok, no_candidate, run_failure
		),
		MediationDuration: promauto.With(registerer).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "comunica_mediation_duration_seconds",
				Help:    "End-to-end mediation duration including the winner's run",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"bus", "outcome"},
		),
	}
}

// ObservePublish implements bus.Observer.
func (m *Metrics) ObservePublish(_ context.Context, busName string, route bus.Route, candidates int, elapsed time.Duration) {
	m.PublishesTotal.WithLabelValues(busName, string(route)).Inc()
	m.PublishDuration.WithLabelValues(busName, string(route)).Observe(elapsed.Seconds())
	m.PublishCandidates.WithLabelValues(busName, string(route)).Observe(float64(candidates))
}

// ObserveMediation implements mediator.Observer.
func (m *Metrics) ObserveMediation(busName string, outcome mediator.Outcome, elapsed time.Duration) {
	m.MediationsTotal.WithLabelValues(busName, string(outcome)).Inc()
	m.MediationDuration.WithLabelValues(busName, string(outcome)).Observe(elapsed.Seconds())
}
