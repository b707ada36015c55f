// Package metrics defines the Prometheus collectors spec.md §4.12 names.
// Naming follows the teacher's flow_net_proxy_* counters: subsystem-prefixed,
// suffixed _total for counters and _seconds for durations. Unlike the
// teacher's promauto package-level globals registered on the default
// registry, Metrics here is constructed explicitly and registered on a
// caller-supplied *prometheus.Registry so an orchestrator instance never
// fights another instance (or a test) over the process-wide default.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	CNTransitions         *prometheus.CounterVec
	TPTransitions         *prometheus.CounterVec
	ValidatorRejections   *prometheus.CounterVec
	PeerDispatchDuration  *prometheus.HistogramVec
	NotificationsPending  prometheus.Gauge
}

// New builds the collector set and registers every one of them on reg.
func New(reg *prometheus.Registry) *Metrics {
	var m = &Metrics{
		CNTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dsp_cn_transitions_total",
			Help: "counter of contract negotiation state transitions",
		}, []string{"from", "to", "kind"}),

		TPTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dsp_tp_transitions_total",
			Help: "counter of transfer process state transitions",
		}, []string{"from", "to", "kind"}),

		ValidatorRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dsp_validator_rejections_total",
			Help: "counter of inbound messages rejected by the validator pipeline",
		}, []string{"kind"}),

		PeerDispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "dsp_peer_dispatch_duration_seconds",
			Help: "duration of outbound peer HTTP dispatch calls",
		}, []string{"outcome"}),

		NotificationsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dsp_notifications_pending",
			Help: "gauge of notification rows awaiting delivery",
		}),
	}

	reg.MustRegister(m.CNTransitions, m.TPTransitions, m.ValidatorRejections, m.PeerDispatchDuration, m.NotificationsPending)
	return m
}

func (m *Metrics) ObserveCNTransition(from, to, kind string) {
	m.CNTransitions.WithLabelValues(from, to, kind).Inc()
}

func (m *Metrics) ObserveTPTransition(from, to, kind string) {
	m.TPTransitions.WithLabelValues(from, to, kind).Inc()
}

func (m *Metrics) ObserveRejection(kind string) {
	m.ValidatorRejections.WithLabelValues(kind).Inc()
}
