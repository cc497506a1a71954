// Package cozmotest provides a scripted fake robot for exercising
// the client against a real loopback UDP socket.
package cozmotest

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spindlebot/cozmo/cframe"
	"github.com/spindlebot/cozmo/cpacket"
)

// FakeRobot is a device stand-in bound to an ephemeral loopback
// port. It decodes every inbound frame onto Frames and lets the
// test script arbitrary responses toward the client.
//
// The robot itself has no protocol behavior; tests drive the
// handshake explicitly so each scenario controls exactly what the
// device does and does not say.
type FakeRobot struct {
	Frames chan cframe.Frame

	conn *net.UDPConn

	mu     sync.Mutex
	client *net.UDPAddr
}

// NewFakeRobot starts a fake robot and registers its shutdown with
// t.Cleanup.
func NewFakeRobot(t *testing.T) *FakeRobot {
	t.Helper()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)

	r := &FakeRobot{
		Frames: make(chan cframe.Frame, 256),
		conn:   conn,
	}

	done := make(chan struct{})
	go r.readLoop(done)
	t.Cleanup(func() {
		_ = conn.Close()
		<-done
	})

	return r
}

// Addr returns the robot's UDP endpoint, suitable for
// Config.RobotAddr.
func (r *FakeRobot) Addr() string {
	return r.conn.LocalAddr().String()
}

func (r *FakeRobot) readLoop(done chan<- struct{}) {
	defer close(done)

	buf := make([]byte, 65536)
	for {
		n, addr, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		r.mu.Lock()
		r.client = addr
		r.mu.Unlock()

		raw := make([]byte, n)
		copy(raw, buf[:n])
		frame, err := cframe.Decode(raw)
		if err != nil {
			continue
		}

		select {
		case r.Frames <- frame:
		default:
			// Test is not consuming; drop rather than wedge.
		}
	}
}

// SendFrame transmits one frame to the client.
// The client must have sent at least one datagram first, so the
// robot knows where to respond.
func (r *FakeRobot) SendFrame(t *testing.T, frame cframe.Frame) {
	t.Helper()

	r.mu.Lock()
	client := r.client
	r.mu.Unlock()
	require.NotNil(t, client, "no client datagram seen yet")

	raw, err := frame.Encode()
	require.NoError(t, err)

	_, err = r.conn.WriteToUDP(raw, client)
	require.NoError(t, err)
}

// SendEngine wraps ordered packets in an engine frame with
// consecutive sequences starting at firstSeq, acking ack.
func (r *FakeRobot) SendEngine(
	t *testing.T, firstSeq, ack uint16, pkts ...cpacket.Packet,
) {
	t.Helper()

	seq := firstSeq
	for _, pkt := range pkts {
		if !pkt.OOB() {
			seq++
		}
	}
	if seq != firstSeq {
		// Seq names the last assigned sequence, not one past it.
		seq--
	}

	r.SendFrame(t, cframe.Frame{
		Type:     cframe.TypeEngine,
		FirstSeq: firstSeq,
		Seq:      seq,
		Ack:      ack,
		Packets:  pkts,
	})
}

// SendPing transmits an out-of-band keepalive frame carrying ack.
func (r *FakeRobot) SendPing(t *testing.T, ack uint16) {
	t.Helper()

	r.SendFrame(t, cframe.Frame{
		Type:    cframe.TypePing,
		Ack:     ack,
		Packets: []cpacket.Packet{cpacket.Ping{Counter: 1}},
	})
}

// WaitForFrame receives decoded frames until match returns true,
// failing the test after the timeout.
func (r *FakeRobot) WaitForFrame(
	t *testing.T, timeout time.Duration, match func(cframe.Frame) bool,
) cframe.Frame {
	t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case f := <-r.Frames:
			if match(f) {
				return f
			}
		case <-deadline:
			t.Fatalf("timed out after %s waiting for a matching frame", timeout)
			panic("unreachable")
		}
	}
}
