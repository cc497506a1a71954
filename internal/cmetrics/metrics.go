// Package cmetrics holds the transport's Prometheus counters.
package cmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts transport-level traffic and anomalies.
type Metrics struct {
	FramesSent       prometheus.Counter
	FramesReceived   prometheus.Counter
	MalformedFrames  prometheus.Counter
	PacketsDelivered prometheus.Counter
	StalePackets     prometheus.Counter
	DuplicatePackets prometheus.Counter
	Retransmits      prometheus.Counter
	PingsSent        prometheus.Counter
}

// New registers the transport counters with reg and returns them.
// A nil reg registers into a private throwaway registry, which
// keeps repeated client construction (tests, reconnect tools) from
// colliding on the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	counter := func(name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{
			Namespace: "cozmo",
			Subsystem: "transport",
			Name:      name,
			Help:      help,
		})
	}

	return &Metrics{
		FramesSent:       counter("frames_sent_total", "Frames transmitted to the device."),
		FramesReceived:   counter("frames_received_total", "Well-formed frames received from the device."),
		MalformedFrames:  counter("malformed_frames_total", "Datagrams dropped because they failed frame decoding."),
		PacketsDelivered: counter("packets_delivered_total", "Packets handed to the client run loop."),
		StalePackets:     counter("stale_packets_total", "Ordered packets dropped as behind or beyond the receive window."),
		DuplicatePackets: counter("duplicate_packets_total", "Ordered packets dropped as already buffered."),
		Retransmits:      counter("retransmits_total", "Unacknowledged packets re-sent on timeout."),
		PingsSent:        counter("pings_sent_total", "Keepalive pings transmitted."),
	}
}
