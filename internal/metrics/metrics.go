// Package metrics exposes Prometheus collectors for flow runs, token spend,
// circuit breaker state, and the HTTP surface.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/resilience"
)

const namespace = "contentmix"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	flowRuns     *prometheus.CounterVec
	flowDuration *prometheus.HistogramVec
	tokens       *prometheus.CounterVec
	costUSD      *prometheus.CounterVec
	circuit      *prometheus.GaugeVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates a Metrics with the Go runtime and process collectors
// registered alongside the domain collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		flowRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_runs_total",
			Help:      "Flow invocations by flow, terminal state and error kind.",
		}, []string{"flow", "state", "kind"}),
		flowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flow_duration_seconds",
			Help:      "Flow invocation latency.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"flow"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_tokens_total",
			Help:      "Tokens consumed by flow and token class.",
		}, []string{"flow", "class"}),
		costUSD: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_cost_usd_total",
			Help:      "Estimated inference spend in USD.",
		}, []string{"flow"}),
		circuit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_state",
			Help:      "Circuit breaker state per service (0 closed, 1 open, 2 half-open).",
		}, []string{"service"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.flowRuns, m.flowDuration, m.tokens, m.costUSD, m.circuit,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordFlowRun implements flow.Recorder. It never fails.
func (m *Metrics) RecordFlowRun(_ context.Context, run model.FlowRun) error {
	m.flowRuns.WithLabelValues(run.Flow, string(run.State), run.ErrorKind).Inc()
	m.flowDuration.WithLabelValues(run.Flow).Observe(float64(run.DurationMs) / 1000)

	u := run.Usage
	for class, n := range map[string]int{
		"input":       u.InputTokens,
		"output":      u.OutputTokens,
		"cache_write": u.CacheCreationTokens,
		"cache_read":  u.CacheReadTokens,
	} {
		if n > 0 {
			m.tokens.WithLabelValues(run.Flow, class).Add(float64(n))
		}
	}
	if u.Cost > 0 {
		m.costUSD.WithLabelValues(run.Flow).Add(u.Cost)
	}
	return nil
}

// CircuitChanged records a breaker transition. Its signature matches the
// resilience.ServiceBreakers change hook.
func (m *Metrics) CircuitChanged(service string, _, to resilience.CircuitState) {
	m.circuit.WithLabelValues(service).Set(float64(to))
}

// ObserveHTTP records one served request. route is the matched pattern,
// not the raw path.
func (m *Metrics) ObserveHTTP(method, route string, code int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
