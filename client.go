package cozmo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/spindlebot/cozmo/cevent"
	"github.com/spindlebot/cozmo/cframe"
	"github.com/spindlebot/cozmo/cpacket"
	"github.com/spindlebot/cozmo/internal/cmetrics"
)

// State is the client's session state.
type State uint8

const (
	StateIdle State = iota + 1
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(s))
	}
}

// Client is the session state machine over the reliable transport.
//
// A Client drives three goroutines once started: the receive loop,
// the send loop, and its own run loop, which consumes the ordered
// packet stream, maintains ack and keepalive state, and dispatches
// packets and lifecycle events to subscribers.
type Client struct {
	log *slog.Logger
	cfg Config

	conn      *net.UDPConn
	robotAddr *net.UDPAddr

	recv       *receiveLoop
	send       *sendLoop
	dispatcher *cevent.Dispatcher
	metrics    *cmetrics.Metrics

	cancel context.CancelCauseFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	state    State
	fwSig    map[string]any
	lastSent time.Time
}

// New opens the UDP socket and builds a client in the idle state.
// The caller still has to call [*Client.Start] and
// [*Client.Connect].
func New(log *slog.Logger, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()

	robotAddr, err := net.ResolveUDPAddr("udp", cfg.RobotAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve robot address %q: %w", cfg.RobotAddr, err)
	}

	var localAddr *net.UDPAddr
	if cfg.LocalAddr != "" {
		localAddr, err = net.ResolveUDPAddr("udp", cfg.LocalAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve local address %q: %w", cfg.LocalAddr, err)
		}
	}

	conn, err := net.ListenUDP("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to open UDP socket: %w", err)
	}

	m := cmetrics.New(cfg.Metrics)

	c := &Client{
		log:        log,
		cfg:        cfg,
		conn:       conn,
		robotAddr:  robotAddr,
		recv:       newReceiveLoop(log.With("loop", "receive"), conn, robotAddr, cfg, m),
		send:       newSendLoop(log.With("loop", "send"), conn, robotAddr, cfg, m),
		dispatcher: cevent.NewDispatcher(),
		metrics:    m,
		state:      StateIdle,
	}

	c.dispatcher.Register(cevent.Kind(cpacket.KindConnect), c.onConnect)
	c.dispatcher.Register(cevent.Kind(cpacket.KindFirmwareSignature), c.onFirmwareSignature)

	return c, nil
}

// Start launches the receive, send, and run loops.
// The loops stop when ctx ends or [*Client.Stop] is called.
func (c *Client) Start(ctx context.Context) {
	ctx, cancel := context.WithCancelCause(ctx)
	c.cancel = cancel

	c.wg.Add(3)
	go c.recv.Run(ctx, &c.wg)
	go c.send.Run(ctx, &c.wg)
	go c.run(ctx, &c.wg)
}

// Stop shuts down all loops, closes the socket, and drops every
// handler registration. Shutdown latency is bounded by the loops'
// configured wait timeouts.
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel(nil)
	}
	c.wg.Wait()
	_ = c.conn.Close()
	c.dispatcher.Reset()
}

// run is the client's own loop: drain one received packet per
// cycle, keep ack and keepalive state current, and dispatch.
func (c *Client) run(ctx context.Context, parentWG *sync.WaitGroup) {
	defer parentWG.Done()

	timer := time.NewTimer(c.cfg.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("Stopping due to context cancellation", "cause", context.Cause(ctx))
			return

		case in := <-c.recv.out:
			c.send.Ack(in.Ack)
			if !in.Pkt.OOB() {
				c.send.SetLastAck(in.Seq)
			}
			c.maybePing()
			c.dispatcher.Dispatch(cevent.Event{
				Kind:   cevent.KindOf(in.Pkt),
				Packet: in.Pkt,
			})

		case <-timer.C:
			c.maybePing()
			c.dispatcher.Dispatch(cevent.Event{Kind: cevent.KindTick})
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(c.cfg.PollInterval)
	}
}

// Connect begins a new session: both windows are rewound and a
// reset frame with sequence 1 goes straight to the device,
// bypassing the send queue.
func (c *Client) Connect() error {
	c.mu.Lock()
	c.state = StateConnecting
	c.mu.Unlock()

	c.send.Reset()
	c.recv.Reset()

	frame := cframe.Frame{Type: cframe.TypeReset, FirstSeq: 1, Seq: 1}
	raw, err := frame.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode reset frame: %w", err)
	}
	if _, err := c.conn.WriteToUDP(raw, c.robotAddr); err != nil {
		return fmt.Errorf("failed to send reset frame: %w", err)
	}

	c.log.Info("Connecting", "robot", c.robotAddr)
	return nil
}

// Disconnect asks the device to close the session. It is a no-op
// outside the connected state, and it does not itself change
// state: the session's end is observed, not assumed.
func (c *Client) Disconnect() {
	if c.State() != StateConnected {
		return
	}
	c.Send(cpacket.Disconnect{})
}

// Send queues a packet for ordered delivery to the device.
// It never blocks: the outbound queue is unbounded, and packets
// beyond the send window's capacity wait in the queue until
// acknowledgements open a slot.
func (c *Client) Send(pkt cpacket.Packet) {
	c.mu.Lock()
	c.lastSent = time.Now()
	c.mu.Unlock()

	c.send.Send(pkt)
}

// AddHandler subscribes h to every dispatch of kind.
func (c *Client) AddHandler(kind cevent.Kind, h cevent.Handler) {
	c.dispatcher.Register(kind, h)
}

// AddHandlerOnce subscribes h to the next dispatch of kind only.
func (c *Client) AddHandlerOnce(kind cevent.Kind, h cevent.Handler) {
	c.dispatcher.RegisterOnce(kind, h)
}

// WaitForReady blocks until the robot announces readiness, or
// fails with [ReadyTimeoutError] after the given timeout.
func (c *Client) WaitForReady(timeout time.Duration) error {
	ready := make(chan struct{})
	c.dispatcher.RegisterOnce(cevent.KindRobotReady, func(cevent.Event) {
		close(ready)
	})

	select {
	case <-ready:
		return nil
	case <-time.After(timeout):
		return ReadyTimeoutError{Timeout: timeout}
	}
}

// State returns the current session state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// FirmwareSignature returns the parsed firmware signature, or nil
// if none has been received yet.
func (c *Client) FirmwareSignature() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fwSig
}

func (c *Client) maybePing() {
	c.mu.Lock()
	due := c.state == StateConnected && time.Since(c.lastSent) > c.cfg.PingInterval
	c.mu.Unlock()

	if due {
		c.Send(cpacket.Ping{Counter: 1})
	}
}

func (c *Client) onConnect(cevent.Event) {
	c.mu.Lock()
	c.state = StateConnected
	c.mu.Unlock()

	c.log.Info("Robot accepted the session")
}

func (c *Client) onFirmwareSignature(e cevent.Event) {
	fw, ok := e.Packet.(cpacket.FirmwareSignature)
	if !ok {
		return
	}

	var sig map[string]any
	if err := json.Unmarshal(fw.Signature, &sig); err != nil {
		c.log.Warn("Failed to parse firmware signature", "err", err)
	}

	c.mu.Lock()
	c.fwSig = sig
	c.mu.Unlock()

	c.initializeRobot()

	c.dispatcher.Dispatch(cevent.Event{Kind: cevent.KindRobotFound})
	c.dispatcher.Dispatch(cevent.Event{Kind: cevent.KindRobotReady})
	c.log.Info("Robot ready", "firmware", sig["version"])
}

// initializeRobot queues the fixed post-handshake command burst:
// engine enablement followed by a display-clear sequence.
func (c *Client) initializeRobot() {
	c.Send(cpacket.Command{Op: cpacket.OpEnable})
	// Enables the 0xf0 and 0xf3 event groups; requires OpEnable.
	c.Send(cpacket.Command{
		Op:   cpacket.OpEnableEvents,
		Data: []byte{0xc4, 0xb6, 0x39, 0x00, 0x00, 0x00, 0xa0, 0xc1},
	})
	// Enables 0xf1 events, independent of OpEnable.
	c.Send(cpacket.Command{Op: cpacket.OpEnableMisc})

	for i := 0; i < 7; i++ {
		c.Send(cpacket.Command{Op: cpacket.OpNextFrame})
		c.Send(cpacket.Command{Op: cpacket.OpDisplayImage, Data: []byte{0x3f, 0x3f}})
	}
}
