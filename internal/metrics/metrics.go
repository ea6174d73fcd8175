// Package metrics exposes Prometheus collectors for compliance outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "townbox"

// Metrics owns its registry so tests and multiple servers do not collide on
// the global default.
type Metrics struct {
	Registry *prometheus.Registry

	Violations  *prometheus.CounterVec
	Transitions *prometheus.CounterVec
	Deadlines   *prometheus.CounterVec
	Votes       *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compliance_violations_total",
			Help:      "Operations refused by a statutory compliance check, by error code.",
		}, []string{"code"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Accepted status transitions by entity and target status.",
		}, []string{"entity", "to"}),
		Deadlines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deadline_calculations_total",
			Help:      "Publication deadline calculations by notice reason and risk level.",
		}, []string{"reason", "risk"}),
		Votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_recorded_total",
			Help:      "Votes recorded by stored value.",
		}, []string{"vote"}),
	}
	reg.MustRegister(
		m.Violations, m.Transitions, m.Deadlines, m.Votes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// The observe helpers accept a nil receiver so callers without metrics
// need no guard.

func (m *Metrics) Violation(code string) {
	if m == nil {
		return
	}
	m.Violations.WithLabelValues(code).Inc()
}

func (m *Metrics) Transition(entity, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(entity, to).Inc()
}

func (m *Metrics) Deadline(reason, risk string) {
	if m == nil {
		return
	}
	m.Deadlines.WithLabelValues(reason, risk).Inc()
}

func (m *Metrics) Vote(value string) {
	if m == nil {
		return
	}
	m.Votes.WithLabelValues(value).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
