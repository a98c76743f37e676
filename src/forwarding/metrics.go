package forwarding

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts what the forwarding layer does with messages.
type Metrics struct {
	Delivered prometheus.Counter
	Forwarded prometheus.Counter
	Dropped   *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg when it is not
// nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reload",
			Subsystem: "forwarding",
			Name:      "delivered_total",
			Help:      "Messages delivered to this node.",
		}),
		Forwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reload",
			Subsystem: "forwarding",
			Name:      "forwarded_total",
			Help:      "Messages handed to the transporter.",
		}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reload",
			Subsystem: "forwarding",
			Name:      "dropped_total",
			Help:      "Messages dropped, by reason.",
		}, []string{"reason"}),
	}

	if reg != nil {
		reg.MustRegister(m.Delivered, m.Forwarded, m.Dropped)
	}
	return m
}
