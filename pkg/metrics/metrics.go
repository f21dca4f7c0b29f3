// Package metrics exposes Prometheus instrumentation for the interaction
// engine: toggle outcomes, optimistic rollbacks, read marks, and visibility
// triggers. A nil *Recorder is valid and records nothing, so engine
// components can take an optional recorder without branching.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures a Recorder.
type Config struct {
	// Namespace is the metrics namespace (default: "tessera").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// Option configures a Recorder.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) { c.Namespace = namespace }
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) { c.ConstLabels = labels }
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) { c.Registry = registry }
}

func defaultConfig() Config {
	return Config{
		Namespace: "tessera",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Recorder holds the engine's Prometheus collectors.
type Recorder struct {
	togglesTotal       *prometheus.CounterVec
	rollbacksTotal     *prometheus.CounterVec
	readMarksTotal     prometheus.Counter
	readMarkFailures   prometheus.Counter
	visibilityTriggers prometheus.Counter
}

// New creates a Recorder and registers its collectors.
func New(opts ...Option) *Recorder {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	factory := promauto.With(cfg.Registry)

	return &Recorder{
		togglesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "toggles_total",
			Help:        "Toggle actions dispatched, by action kind, direction and outcome.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"kind", "direction", "outcome"}),
		rollbacksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "toggle_rollbacks_total",
			Help:        "Optimistic updates rolled back after a failed confirmation.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"kind"}),
		readMarksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "read_marks_total",
			Help:        "Feed items reported as read.",
			ConstLabels: cfg.ConstLabels,
		}),
		readMarkFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "read_mark_failures_total",
			Help:        "Failed read-mark service calls.",
			ConstLabels: cfg.ConstLabels,
		}),
		visibilityTriggers: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "visibility_triggers_total",
			Help:        "Visibility episodes that fired a trigger callback.",
			ConstLabels: cfg.ConstLabels,
		}),
	}
}

// Toggle records a settled toggle action.
// direction is "on" or "off"; outcome is "success" or "error".
func (r *Recorder) Toggle(kind, direction, outcome string) {
	if r == nil {
		return
	}
	r.togglesTotal.WithLabelValues(kind, direction, outcome).Inc()
}

// Rollback records an optimistic update that was rolled back.
func (r *Recorder) Rollback(kind string) {
	if r == nil {
		return
	}
	r.rollbacksTotal.WithLabelValues(kind).Inc()
}

// ReadMarks records n items reported as read.
func (r *Recorder) ReadMarks(n int) {
	if r == nil {
		return
	}
	r.readMarksTotal.Add(float64(n))
}

// ReadMarkFailure records a failed read-mark call.
func (r *Recorder) ReadMarkFailure() {
	if r == nil {
		return
	}
	r.readMarkFailures.Inc()
}

// VisibilityTrigger records a fired visibility episode.
func (r *Recorder) VisibilityTrigger() {
	if r == nil {
		return
	}
	r.visibilityTriggers.Inc()
}
