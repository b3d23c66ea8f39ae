// Package metrics exposes Prometheus instrumentation for the sACN receiver
// and sender. Construction takes a Registerer; pass nil to the cores to run
// without instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Receiver holds the receive-path collectors.
type Receiver struct {
	PacketsReceived *prometheus.CounterVec
	ParseErrors     prometheus.Counter
	FramesDelivered prometheus.Counter
	OutOfSequence   prometheus.Counter
	PendingFrames   prometheus.Gauge
	TrackedSources  prometheus.Gauge
}

// NewReceiver builds and registers the receive-path collectors.
func NewReceiver(reg prometheus.Registerer) *Receiver {
	m := &Receiver{
		PacketsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sacn",
			Subsystem: "receiver",
			Name:      "packets_received_total",
			Help:      "Packets parsed successfully, by PDU kind.",
		}, []string{"kind"}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sacn",
			Subsystem: "receiver",
			Name:      "parse_errors_total",
			Help:      "Datagrams dropped due to parse failure.",
		}),
		FramesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sacn",
			Subsystem: "receiver",
			Name:      "frames_delivered_total",
			Help:      "DMX frames delivered to the caller.",
		}),
		OutOfSequence: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sacn",
			Subsystem: "receiver",
			Name:      "out_of_sequence_total",
			Help:      "Packets rejected by the sequence window.",
		}),
		PendingFrames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sacn",
			Subsystem: "receiver",
			Name:      "pending_frames",
			Help:      "Frames buffered awaiting a synchronization packet.",
		}),
		TrackedSources: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sacn",
			Subsystem: "receiver",
			Name:      "tracked_sources",
			Help:      "Distinct source CIDs with live sequence state.",
		}),
	}
	reg.MustRegister(
		m.PacketsReceived, m.ParseErrors, m.FramesDelivered,
		m.OutOfSequence, m.PendingFrames, m.TrackedSources,
	)
	return m
}

// Sender holds the send-path collectors.
type Sender struct {
	PacketsSent *prometheus.CounterVec
}

// NewSender builds and registers the send-path collectors.
func NewSender(reg prometheus.Registerer) *Sender {
	m := &Sender{
		PacketsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sacn",
			Subsystem: "sender",
			Name:      "packets_sent_total",
			Help:      "Packets transmitted, by PDU kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.PacketsSent)
	return m
}
