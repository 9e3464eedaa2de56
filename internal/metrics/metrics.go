// Package metrics exposes the execution driver's counters and timings as
// prometheus collectors on a private registry.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors the driver updates.
type Metrics struct {
	registry *prometheus.Registry

	StepsTotal   *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec
	Batches      prometheus.Counter
	BatchSize    prometheus.Histogram
	InFlight     prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		StepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "station_steps_total",
				Help: "Leaf attempts dispatched, by action kind and outcome",
			},
			[]string{"kind", "status"},
		),
		StepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "station_step_duration_seconds",
				Help:    "Duration of leaf attempts",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
			},
			[]string{"kind"},
		),
		Batches: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "station_batches_total",
				Help: "Batches of runnable leaves dispatched",
			},
		),
		BatchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "station_batch_size",
				Help:    "Leaves per dispatched batch",
				Buckets: prometheus.ExponentialBuckets(1, 2, 8),
			},
		),
		InFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "station_steps_in_flight",
				Help: "Leaf attempts currently executing",
			},
		),
	}
}

// ObserveStep records one finished leaf attempt.
func (m *Metrics) ObserveStep(kind, status string, d time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	m.StepsTotal.WithLabelValues(kind, status).Inc()
	m.StepDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveBatch records a dispatched batch.
func (m *Metrics) ObserveBatch(size int) {
	m.Batches.Inc()
	m.BatchSize.Observe(float64(size))
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteToTextfile writes the current values in the text exposition format,
// suitable for the node exporter's textfile collector.
func (m *Metrics) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
