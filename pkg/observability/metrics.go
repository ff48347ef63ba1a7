package observability

import (
	"net/http"
	"time"

	"github.com/aretw0/muster/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors fed by the runtime hooks.
type Metrics struct {
	evaluations   *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	cacheHits     *prometheus.CounterVec
	subscriptions prometheus.Gauge
	emissions     *prometheus.CounterVec
	failures      *prometheus.CounterVec
	events        *prometheus.CounterVec
}

// MetricsOption configures Metrics.
type MetricsOption func(*metricsConfig)

type metricsConfig struct {
	namespace string
	buckets   []float64
}

// WithNamespace prefixes every metric name (default "muster").
func WithNamespace(namespace string) MetricsOption {
	return func(c *metricsConfig) {
		c.namespace = namespace
	}
}

// WithBuckets sets the evaluation duration histogram buckets, in seconds.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *metricsConfig) {
		c.buckets = buckets
	}
}

// NewMetrics creates the collectors and registers them with reg. It panics if
// they are already registered.
func NewMetrics(reg prometheus.Registerer, opts ...MetricsOption) *Metrics {
	cfg := metricsConfig{
		namespace: "muster",
		buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Metrics{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "evaluations_total",
			Help:      "Operation handler runs by node type and operation.",
		}, []string{"type", "operation"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Duration of operation handler runs.",
			Buckets:   cfg.buckets,
		}, []string{"type", "operation"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "cache_hits_total",
			Help:      "Subscriptions served from a cached entry.",
		}, []string{"type", "operation"}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.namespace,
			Name:      "active_entries",
			Help:      "Cache entries currently held by a subscriber.",
		}),
		emissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "emissions_total",
			Help:      "Results delivered to subscribers by result type.",
		}, []string{"result"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "errors_total",
			Help:      "Error results produced by node type and error code.",
		}, []string{"type", "code"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "events_total",
			Help:      "Events dispatched into scope buses by event type.",
		}, []string{"event"}),
	}
	reg.MustRegister(m.evaluations, m.duration, m.cacheHits, m.subscriptions, m.emissions, m.failures, m.events)
	return m
}

// Hooks returns runtime hooks that feed the collectors.
func (m *Metrics) Hooks() domain.Hooks {
	return domain.Hooks{
		OnEvaluate: func(node *domain.GraphNode, op *domain.Operation, elapsed time.Duration) {
			m.evaluations.WithLabelValues(node.Type().Name, op.Name()).Inc()
			m.duration.WithLabelValues(node.Type().Name, op.Name()).Observe(elapsed.Seconds())
		},
		OnCacheHit: func(node *domain.GraphNode, op *domain.Operation) {
			m.cacheHits.WithLabelValues(node.Type().Name, op.Name()).Inc()
		},
		OnSubscribe: func(*domain.GraphNode, *domain.Operation) {
			m.subscriptions.Inc()
		},
		OnUnsubscribe: func(*domain.GraphNode, *domain.Operation) {
			m.subscriptions.Dec()
		},
		OnEmit: func(_ *domain.GraphNode, result *domain.Definition) {
			m.emissions.WithLabelValues(result.Type.Name).Inc()
		},
		OnError: func(node *domain.GraphNode, _ *domain.Operation, err *domain.Error) {
			code := err.Code
			if code == "" {
				code = "generic"
			}
			m.failures.WithLabelValues(node.Type().Name, code).Inc()
		},
		OnDispatch: func(_ domain.ScopeID, ev domain.Event) {
			m.events.WithLabelValues(ev.Type).Inc()
		},
	}
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
