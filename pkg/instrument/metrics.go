package instrument

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/liveq-dev/liveq/pkg/liveq"
)

// MetricsConfig configures the Prometheus observer.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "liveq").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// SyncBuckets are the histogram buckets for sync wait durations.
	// Default: prometheus.DefBuckets.
	SyncBuckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus observer.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithSyncBuckets sets the sync wait histogram buckets.
func WithSyncBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.SyncBuckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:   "liveq",
		SyncBuckets: prometheus.DefBuckets,
		Registry:    prometheus.DefaultRegisterer,
	}
}

// Metrics is a liveq.Observer backed by Prometheus. Pass it to
// liveq.New via liveq.WithObserver.
type Metrics struct {
	cellsCreated     *prometheus.CounterVec
	cellsCollapsed   *prometheus.CounterVec
	cellsDestroyed   prometheus.Counter
	liveCells        prometheus.Gauge
	transitionsTotal prometheus.Counter
	transitionTokens prometheus.Histogram
	syncWaits        *prometheus.HistogramVec
}

// NewMetrics registers and returns the Prometheus observer.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		cellsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "cells_created_total",
			Help:        "Query cells created, by query name",
			ConstLabels: config.ConstLabels,
		}, []string{"query"}),

		cellsCollapsed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "cells_collapsed_total",
			Help:        "Duplicate subscriptions collapsed onto an existing cell, by query name",
			ConstLabels: config.ConstLabels,
		}, []string{"query"}),

		cellsDestroyed: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "cells_destroyed_total",
			Help:        "Query cells torn down",
			ConstLabels: config.ConstLabels,
		}),

		liveCells: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "live_cells",
			Help:        "Cells currently live in the registry",
			ConstLabels: config.ConstLabels,
		}),

		transitionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "transitions_total",
			Help:        "Transition batches delivered",
			ConstLabels: config.ConstLabels,
		}),

		transitionTokens: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "transition_tokens",
			Help:        "Distinct tokens per transition batch",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{1, 2, 5, 10, 25, 50, 100},
		}),

		syncWaits: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "sync_wait_seconds",
			Help:        "Sync wait duration, by outcome",
			ConstLabels: config.ConstLabels,
			Buckets:     config.SyncBuckets,
		}, []string{"outcome"}),
	}
}

// CellCreated implements liveq.Observer.
func (m *Metrics) CellCreated(name string, _ liveq.Token) {
	m.cellsCreated.WithLabelValues(name).Inc()
	m.liveCells.Inc()
}

// CellCollapsed implements liveq.Observer.
func (m *Metrics) CellCollapsed(name string, _ liveq.Token) {
	m.cellsCollapsed.WithLabelValues(name).Inc()
}

// CellDestroyed implements liveq.Observer.
func (m *Metrics) CellDestroyed(_ liveq.Token) {
	m.cellsDestroyed.Inc()
	m.liveCells.Dec()
}

// TransitionDelivered implements liveq.Observer.
func (m *Metrics) TransitionDelivered(tokens int) {
	m.transitionsTotal.Inc()
	m.transitionTokens.Observe(float64(tokens))
}

// SyncDone implements liveq.Observer.
func (m *Metrics) SyncDone(outcome liveq.SyncOutcome, elapsed time.Duration) {
	m.syncWaits.WithLabelValues(string(outcome)).Observe(elapsed.Seconds())
}

var _ liveq.Observer = (*Metrics)(nil)
