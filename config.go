package cozmo

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultRobotAddr is the fixed endpoint the robot listens on
// when the client joins its access point.
const DefaultRobotAddr = "172.31.1.1:5551"

// Config carries the transport tuning knobs.
// The zero value is usable; every field defaults sensibly.
type Config struct {
	// RobotAddr is the device's UDP endpoint.
	// Defaults to [DefaultRobotAddr].
	RobotAddr string

	// LocalAddr optionally pins the local UDP bind address.
	// Defaults to an ephemeral port on all interfaces.
	LocalAddr string

	// RecvBufferSize is the datagram read buffer size in bytes.
	// Defaults to 65536.
	RecvBufferSize int

	// SeqBits is the sequence-number width in bits, at most 16.
	// Defaults to 16.
	SeqBits uint8

	// WindowSize is the capacity of both sliding windows,
	// in packets. Defaults to 256.
	WindowSize int

	// ReadTimeout bounds each wait for socket readability in the
	// receive loop, and each wait on the outbound queue in the
	// send loop. It also bounds shutdown latency for both loops.
	// Defaults to 500ms.
	ReadTimeout time.Duration

	// PollInterval bounds each wait on the inbound queue in the
	// client run loop. Defaults to 50ms.
	PollInterval time.Duration

	// PingInterval is how long the connection may stay silent
	// before a keepalive ping goes out. Defaults to 50ms.
	PingInterval time.Duration

	// RetransmitInterval is how long an unacknowledged packet may
	// sit in the send window before the oldest one is re-sent.
	// Zero keeps the default; negative disables retransmission
	// entirely, reducing the transport to best-effort delivery.
	// Defaults to 500ms.
	RetransmitInterval time.Duration

	// Metrics is the registry the transport counters register
	// into. Nil uses a private registry, so counters are kept but
	// not exported anywhere.
	Metrics prometheus.Registerer
}

func (c Config) withDefaults() Config {
	if c.RobotAddr == "" {
		c.RobotAddr = DefaultRobotAddr
	}
	if c.RecvBufferSize <= 0 {
		c.RecvBufferSize = 65536
	}
	if c.SeqBits == 0 {
		c.SeqBits = 16
	}
	if c.WindowSize <= 0 {
		c.WindowSize = 256
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 500 * time.Millisecond
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 50 * time.Millisecond
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 50 * time.Millisecond
	}
	if c.RetransmitInterval == 0 {
		c.RetransmitInterval = 500 * time.Millisecond
	}
	return c
}
