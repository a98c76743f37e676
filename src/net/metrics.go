package net

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts transporter activity.
type Metrics struct {
	FlowsOpened  *prometheus.CounterVec
	FlowsClosed  prometheus.Counter
	BytesSent    prometheus.Counter
	SendsDropped *prometheus.CounterVec
}

// NewMetrics creates the transporter counters and registers them with reg
// when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FlowsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reload",
			Subsystem: "transport",
			Name:      "flows_opened_total",
			Help:      "Flows opened, by direction.",
		}, []string{"direction"}),
		FlowsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reload",
			Subsystem: "transport",
			Name:      "flows_closed_total",
			Help:      "Flows closed.",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reload",
			Subsystem: "transport",
			Name:      "bytes_sent_total",
			Help:      "Bytes written to flows.",
		}),
		SendsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reload",
			Subsystem: "transport",
			Name:      "sends_dropped_total",
			Help:      "Messages not sent, by reason.",
		}, []string{"reason"}),
	}

	if reg != nil {
		reg.MustRegister(m.FlowsOpened, m.FlowsClosed, m.BytesSent, m.SendsDropped)
	}
	return m
}

func direction(inbound bool) string {
	if inbound {
		return "inbound"
	}
	return "outbound"
}
