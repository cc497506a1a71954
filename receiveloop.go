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
)

// receiveLoop owns the inbound side of the socket.
// It decodes frames, reorders engine traffic through the receive
// window, and publishes an ordered packet stream on out.
type receiveLoop struct {
	log  *slog.Logger
	conn *net.UDPConn

	// sender, when non-nil, filters inbound datagrams to one peer.
	sender *net.UDPAddr

	readTimeout time.Duration
	bufSize     int

	metrics *cmetrics.Metrics

	// mu guards window, which the client pokes via Reset on
	// reconnect while the loop is live.
	mu     sync.Mutex
	window *cwindow.ReceiveWindow

	out chan cpacket.Incoming
}

func newReceiveLoop(
	log *slog.Logger,
	conn *net.UDPConn,
	sender *net.UDPAddr,
	cfg Config,
	m *cmetrics.Metrics,
) *receiveLoop {
	return &receiveLoop{
		log:         log,
		conn:        conn,
		sender:      sender,
		readTimeout: cfg.ReadTimeout,
		bufSize:     cfg.RecvBufferSize,
		metrics:     m,
		window:      cwindow.NewReceiveWindow(cfg.SeqBits, cfg.WindowSize),
		out:         make(chan cpacket.Incoming, 2*cfg.WindowSize),
	}
}

func (l *receiveLoop) Run(ctx context.Context, parentWG *sync.WaitGroup) {
	defer parentWG.Done()

	buf := make([]byte, l.bufSize)
	for {
		if ctx.Err() != nil {
			l.log.Info("Stopping due to context cancellation", "cause", context.Cause(ctx))
			return
		}

		if err := l.conn.SetReadDeadline(time.Now().Add(l.readTimeout)); err != nil {
			l.log.Warn("Failed to set read deadline", "err", err)
			return
		}

		n, addr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				// Idle read window elapsed; go re-check the context.
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				l.log.Info("Stopping due to closed socket")
				return
			}
			l.log.Debug("Transient receive error", "err", err)
			continue
		}

		if l.sender != nil && !sameUDPAddr(l.sender, addr) {
			continue
		}

		// The read buffer is reused, and decoded packets retain
		// references into the datagram.
		raw := make([]byte, n)
		copy(raw, buf[:n])

		frame, err := cframe.Decode(raw)
		if err != nil {
			l.metrics.MalformedFrames.Inc()
			l.log.Debug("Dropping malformed datagram", "err", err, "from", addr)
			continue
		}

		l.metrics.FramesReceived.Inc()
		if !l.handleFrame(ctx, frame) {
			return
		}
	}
}

// handleFrame classifies each packet in the frame and delivers
// whatever is ready, in order. It returns false when ctx ended
// mid-delivery.
func (l *receiveLoop) handleFrame(ctx context.Context, frame cframe.Frame) bool {
	seq := frame.FirstSeq
	for _, pkt := range frame.Packets {
		if u, ok := pkt.(cpacket.Unknown); ok {
			l.log.Debug("Passing through unknown packet kind",
				"kind", u.RawKind, "len", len(u.Payload))
		}
		if pkt.OOB() {
			// Out-of-band traffic must never wait on missing
			// ordered data.
			if !l.deliver(ctx, cpacket.Incoming{Pkt: pkt, Ack: frame.Ack}) {
				return false
			}
			continue
		}

		if !l.handleOrdered(ctx, seq, pkt, frame.Ack) {
			return false
		}
		seq++
	}
	return true
}

func (l *receiveLoop) handleOrdered(
	ctx context.Context, seq uint16, pkt cpacket.Packet, ack uint16,
) bool {
	l.mu.Lock()

	if l.window.IsOutOfOrder(seq) {
		l.mu.Unlock()
		l.metrics.StalePackets.Inc()
		return true
	}
	if l.window.Exists(seq) {
		l.mu.Unlock()
		l.metrics.DuplicatePackets.Inc()
		return true
	}

	l.window.Put(seq, pkt)

	var run []cpacket.Incoming
	if l.window.IsExpected(seq) {
		for {
			s := l.window.ExpectedSeq()
			p, ok := l.window.Get()
			if !ok {
				break
			}
			run = append(run, cpacket.Incoming{Pkt: p, Seq: s, Ack: ack})
		}
	}
	l.mu.Unlock()

	for _, in := range run {
		if !l.deliver(ctx, in) {
			return false
		}
	}
	return true
}

func (l *receiveLoop) deliver(ctx context.Context, in cpacket.Incoming) bool {
	select {
	case <-ctx.Done():
		return false
	case l.out <- in:
		l.metrics.PacketsDelivered.Inc()
		return true
	}
}

// Reset discards window state left over from a previous session.
// Called by the client on every new connection attempt.
func (l *receiveLoop) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.window.Reset()
}

func sameUDPAddr(a, b *net.UDPAddr) bool {
	return a.Port == b.Port && a.IP.Equal(b.IP)
}
