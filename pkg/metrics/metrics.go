// Package metrics exposes prometheus metrics of the composition watch loop.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "supergraph"

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

type Metrics struct {
	compositionsTotal   *prometheus.CounterVec
	compositionDuration prometheus.Histogram
	subgraphUpdates     *prometheus.CounterVec
	activeWatchers      prometheus.Gauge
}

// New creates the collectors and registers them with registerer.
func New(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		compositionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compositions_total",
				Help:      "Number of supergraph compositions by result.",
			},
			[]string{"result"},
		),
		compositionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "composition_duration_seconds",
				Help:      "Time taken to compose the supergraph.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		subgraphUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "subgraph_updates_total",
				Help:      "Number of subgraph change and removal events by subgraph.",
			},
			[]string{"subgraph", "kind"},
		),
		activeWatchers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_subgraph_watchers",
				Help:      "Number of running subgraph watchers.",
			},
		),
	}
	for _, collector := range []prometheus.Collector{m.compositionsTotal, m.compositionDuration, m.subgraphUpdates, m.activeWatchers} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ObserveComposition(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.compositionsTotal.WithLabelValues(result).Inc()
	m.compositionDuration.Observe(duration.Seconds())
}

// SubgraphUpdated counts a subgraph event, kind is "changed" or "removed".
func (m *Metrics) SubgraphUpdated(subgraph, kind string) {
	if m == nil {
		return
	}
	m.subgraphUpdates.WithLabelValues(subgraph, kind).Inc()
}

func (m *Metrics) SetActiveWatchers(n int) {
	if m == nil {
		return
	}
	m.activeWatchers.Set(float64(n))
}
