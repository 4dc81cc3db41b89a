// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pdiddy/notemill/internal/stats"
)

const metricsNamespace = "notemill"

// Metrics holds per-run counters. Each Scheduler owns a private registry so
// runs and tests do not share state.
type Metrics struct {
	Registry *prometheus.Registry

	SourcesTotal   *prometheus.CounterVec
	UnitsTotal     *prometheus.CounterVec
	SourceDuration *prometheus.HistogramVec
}

// NewMetrics creates a Metrics with its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		SourcesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "sources_total",
				Help:      "Sources processed, by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		UnitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "units_total",
				Help:      "Units handled, by source type and result",
			},
			[]string{"type", "result"},
		),
		SourceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "source_duration_seconds",
				Help:      "Time spent converting one source",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"type"},
		),
	}
}

func (m *Metrics) observe(sourceType string, d time.Duration, frag *stats.Run, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.SourcesTotal.WithLabelValues(sourceType, outcome).Inc()
	m.SourceDuration.WithLabelValues(sourceType).Observe(d.Seconds())
	if frag == nil {
		return
	}
	m.UnitsTotal.WithLabelValues(sourceType, "cached").Add(float64(frag.FromCache))
	m.UnitsTotal.WithLabelValues(sourceType, "regenerated").Add(float64(frag.Regenerated))
	m.UnitsTotal.WithLabelValues(sourceType, "skipped").Add(float64(frag.Skipped))
}

// WriteTextfile writes all metrics to path in the Prometheus text format,
// for pickup by a node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
