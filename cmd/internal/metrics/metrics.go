// Package metrics owns the Prometheus collectors for auth decisions, refresh
// outcomes, token store calls and HTTP traffic.
//
// All recording methods are safe on a nil *Metrics, so tests and tools can run
// without a registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "checklists"

// Metrics groups the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	authDecisions   *prometheus.CounterVec
	refreshOutcomes *prometheus.CounterVec
	storeOps        *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
}

// New registers all collectors (plus Go runtime and process collectors) on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		authDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "decisions_total",
			Help:      "Authorization decisions by mechanism and outcome.",
		}, []string{"mechanism", "outcome"}),
		refreshOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "refresh_total",
			Help:      "Session refresh results.",
		}, []string{"result"}),
		storeOps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "op_duration_seconds",
			Help:      "Token store call latency by operation and result.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 3},
		}, []string{"op", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method and status class.",
		}, []string{"method", "class"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.authDecisions,
		m.refreshOutcomes,
		m.storeOps,
		m.httpRequests,
	)

	return m
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// AuthDecision counts one authorization outcome ("ok", "unauthenticated", "forbidden", "rate_limited").
func (m *Metrics) AuthDecision(mechanism, outcome string) {
	if m == nil {
		return
	}
	m.authDecisions.WithLabelValues(mechanism, outcome).Inc()
}

// RefreshOutcome counts one refresh result ("unchanged", "refreshed", "rotated", "rejected").
func (m *Metrics) RefreshOutcome(result string) {
	if m == nil {
		return
	}
	m.refreshOutcomes.WithLabelValues(result).Inc()
}

// StoreOp records the latency of one store call.
func (m *Metrics) StoreOp(op, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.storeOps.WithLabelValues(op, result).Observe(d.Seconds())
}

// HTTPRequest counts one served request.
func (m *Metrics) HTTPRequest(method, class string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, class).Inc()
}
