// Package metrics exposes Prometheus counters for the gate, the feedback
// fan-out and entitlement sync.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultOK      = "ok"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry        *prometheus.Registry
	gateOutcomes    *prometheus.CounterVec
	fanOutSteps     *prometheus.CounterVec
	entitlementSync *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		gateOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "thrive",
			Name:      "gate_outcomes_total",
			Help:      "Content gate decisions by outcome.",
		}, []string{"outcome"}),
		fanOutSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "thrive",
			Name:      "feedback_fanout_steps_total",
			Help:      "Feedback fan-out steps by step and result.",
		}, []string{"step", "result"}),
		entitlementSync: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "thrive",
			Name:      "entitlement_sync_total",
			Help:      "Entitlement sync writes by trigger and result.",
		}, []string{"trigger", "result"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "thrive",
			Name:      "billing_webhook_events_total",
			Help:      "Billing webhook events by type and result.",
		}, []string{"type", "result"}),
	}
	reg.MustRegister(m.gateOutcomes, m.fanOutSteps, m.entitlementSync, m.webhookEvents)
	return m
}

func (m *Metrics) GateOutcome(outcome string) {
	if m == nil {
		return
	}
	m.gateOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) FanOutStep(step, result string) {
	if m == nil {
		return
	}
	m.fanOutSteps.WithLabelValues(step, result).Inc()
}

func (m *Metrics) EntitlementSync(trigger, result string) {
	if m == nil {
		return
	}
	m.entitlementSync.WithLabelValues(trigger, result).Inc()
}

func (m *Metrics) WebhookEvent(eventType, result string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, result).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
