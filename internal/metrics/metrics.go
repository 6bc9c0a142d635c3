// Package metrics exposes gateway counters and histograms to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Backend call outcomes.
const (
	OutcomePresent = "present"
	OutcomeAbsent  = "absent"
)

// Metrics holds a private registry and every collector the gateway updates.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	queries      *prometheus.CounterVec
	queryLatency *prometheus.HistogramVec
	rejections   *prometheus.CounterVec
	backendCalls *prometheus.CounterVec
	backendTime  prometheus.Histogram
}

// New builds a registry whose metric names are prefixed with namespace.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Queries by task and terminal state.",
		}, []string{"task", "state"}),
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_seconds",
			Help:      "End-to-end query execution time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_rejections_total",
			Help:      "Queries rejected by the blacklist, by reason.",
		}, []string{"reason"}),
		backendCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_calls_total",
			Help:      "Worker calls by outcome.",
		}, []string{"outcome"}),
		backendTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_call_seconds",
			Help:      "Worker call duration.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30},
		}),
	}
	reg.MustRegister(m.queries, m.queryLatency, m.rejections, m.backendCalls, m.backendTime)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveQuery records a query reaching a terminal state.
func (m *Metrics) ObserveQuery(task, state string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(task, state).Inc()
	m.queryLatency.WithLabelValues(task).Observe(elapsed.Seconds())
}

// ObserveRejection records an admission rejection.
func (m *Metrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

// ObserveBackendCall records one worker call.
func (m *Metrics) ObserveBackendCall(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.backendCalls.WithLabelValues(outcome).Inc()
	m.backendTime.Observe(elapsed.Seconds())
}

// RegisterGauge exposes fn as a gauge, e.g. scheduler occupancy.
func (m *Metrics) RegisterGauge(namespace, name, help string, fn func() float64) error {
	if m == nil {
		return nil
	}
	return m.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}
