package cozmo

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/spindlebot/cozmo/cframe"
	"github.com/spindlebot/cozmo/cpacket"
	"github.com/spindlebot/cozmo/cwindow"
	"github.com/spindlebot/cozmo/internal/cmetrics"
	"github.com/spindlebot/cozmo/internal/cqueue"
)

// sendLoop owns the outbound side of the socket.
// It drains the unbounded outbound queue, wraps packets in frames
// with current sequencing state, and handles keepalive-independent
// retransmission of the oldest unacknowledged packet.
type sendLoop struct {
	log  *slog.Logger
	conn *net.UDPConn
	dest *net.UDPAddr

	pollTimeout        time.Duration
	retransmitInterval time.Duration

	metrics *cmetrics.Metrics

	queue *cqueue.FIFO[cpacket.Packet]

	// mu guards the window and the ack/timing counters, which the
	// client run loop updates from received packets.
	mu       sync.Mutex
	window   *cwindow.SendWindow
	lastAck  uint16
	lastSend time.Time

	// lastEngineSend only tracks sequenced traffic, so steady
	// keepalive pings cannot mask a lost engine frame and starve
	// the retransmit timer.
	lastEngineSend time.Time
}

func newSendLoop(
	log *slog.Logger,
	conn *net.UDPConn,
	dest *net.UDPAddr,
	cfg Config,
	m *cmetrics.Metrics,
) *sendLoop {
	return &sendLoop{
		log:                log,
		conn:               conn,
		dest:               dest,
		pollTimeout:        cfg.ReadTimeout,
		retransmitInterval: cfg.RetransmitInterval,
		metrics:            m,
		queue:              cqueue.New[cpacket.Packet](),
		window:             cwindow.NewSendWindow(cfg.SeqBits, cfg.WindowSize),
		lastAck:            1,
	}
}

func (l *sendLoop) Run(ctx context.Context, parentWG *sync.WaitGroup) {
	defer parentWG.Done()

	timer := time.NewTimer(l.pollTimeout)
	defer timer.Stop()

	// A packet popped from the queue while the window was full.
	// It stays here, blocking further ordered sends, until acks
	// open a slot.
	var blocked cpacket.Packet

	for {
		if blocked != nil {
			if l.transmit(blocked) {
				blocked = nil
			}
		}
		for blocked == nil {
			pkt, ok := l.queue.Pop()
			if !ok {
				break
			}
			if !l.transmit(pkt) {
				blocked = pkt
			}
		}

		l.maybeRetransmit()

		select {
		case <-ctx.Done():
			l.log.Info("Stopping due to context cancellation", "cause", context.Cause(ctx))
			return
		case <-l.queue.Ready():
		case <-timer.C:
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(l.pollTimeout)
	}
}

// transmit frames and sends one packet.
// It returns false only when an ordered packet cannot be assigned
// a sequence because the window is full; the packet was not sent
// and the caller must retry it later.
func (l *sendLoop) transmit(pkt cpacket.Packet) bool {
	l.mu.Lock()

	var frame cframe.Frame
	isPing := pkt.Kind() == cpacket.KindPing
	if isPing {
		// Pings ride outside the window: sequence zero, never
		// buffered, never retransmitted.
		frame = cframe.Frame{
			Type:    cframe.TypePing,
			Ack:     l.lastAck,
			Packets: []cpacket.Packet{pkt},
		}
	} else {
		seq, err := l.window.Put(pkt)
		if err != nil {
			l.mu.Unlock()
			return false
		}
		frame = cframe.Frame{
			Type:     cframe.TypeEngine,
			FirstSeq: seq,
			Seq:      seq,
			Ack:      l.lastAck,
			Packets:  []cpacket.Packet{pkt},
		}
	}

	if l.writeFrame(frame) && !isPing {
		l.lastEngineSend = l.lastSend
	}
	l.mu.Unlock()

	if isPing {
		l.metrics.PingsSent.Inc()
	} else {
		l.log.Debug("Sent packet", "kind", pkt.Kind(), "seq", frame.Seq)
	}
	return true
}

// maybeRetransmit re-sends the oldest unacknowledged packet when
// the line has been quiet for the retransmit interval.
func (l *sendLoop) maybeRetransmit() {
	if l.retransmitInterval <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	seq, pkt, ok := l.window.Oldest()
	if !ok || time.Since(l.lastEngineSend) <= l.retransmitInterval {
		return
	}

	if !l.writeFrame(cframe.Frame{
		Type:     cframe.TypeEngine,
		FirstSeq: seq,
		Seq:      seq,
		Ack:      l.lastAck,
		Packets:  []cpacket.Packet{pkt},
	}) {
		return
	}
	l.lastEngineSend = l.lastSend
	l.metrics.Retransmits.Inc()
	l.log.Debug("Retransmitted packet", "kind", pkt.Kind(), "seq", seq)
}

// writeFrame encodes and transmits one frame. Callers hold l.mu.
// Transient socket errors are logged and swallowed; anything
// window-buffered will go out again via retransmission.
func (l *sendLoop) writeFrame(frame cframe.Frame) bool {
	raw, err := frame.Encode()
	if err != nil {
		l.log.Error("Dropping unencodable frame", "err", err, "type", frame.Type)
		return false
	}

	if _, err := l.conn.WriteToUDP(raw, l.dest); err != nil {
		if !errors.Is(err, net.ErrClosed) {
			l.log.Debug("Transient send error", "err", err)
		}
		return false
	}

	l.metrics.FramesSent.Inc()
	l.lastSend = time.Now()
	return true
}

// Send queues a packet for transmission. It never blocks.
func (l *sendLoop) Send(pkt cpacket.Packet) {
	l.queue.Push(pkt)
}

// Ack advances the send window past every sequence up to and
// including seq. Safe to call from the client run loop.
func (l *sendLoop) Ack(seq uint16) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.window.IsOutOfOrder(seq) {
		return
	}
	l.window.Ack(seq)
}

// SetLastAck records the cumulative acknowledgement to piggyback
// on future outbound frames.
func (l *sendLoop) SetLastAck(seq uint16) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastAck = seq
}

// Reset clears window and ack state for a fresh session.
func (l *sendLoop) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.window.Reset()
	l.lastAck = 1
	l.lastSend = time.Time{}
	l.lastEngineSend = time.Time{}
}
