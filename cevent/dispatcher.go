package cevent

import (
	"sync"

	"github.com/spindlebot/cozmo/cpacket"
)

// Kind identifies a subscribable event. The low byte range mirrors
// the packet kind space; session lifecycle events live above it.
type Kind uint16

const (
	// KindRobotFound fires when the device has completed the
	// session handshake far enough to identify itself.
	KindRobotFound Kind = 0x100 + iota

	// KindRobotReady fires once the post-handshake initialization
	// burst has been queued and the device is usable.
	KindRobotReady

	// KindTick fires on run-loop cycles that saw no packet.
	KindTick
)

// KindOf returns the event kind under which a packet is dispatched.
func KindOf(p cpacket.Packet) Kind {
	return Kind(p.Kind())
}

// Event is the value passed to handlers.
// Packet is nil for lifecycle events and ticks.
type Event struct {
	Kind   Kind
	Packet cpacket.Packet
}

// Handler is a subscriber callback. Handlers run inline on the
// dispatching goroutine and must not block.
type Handler func(Event)

type subscription struct {
	fn   Handler
	once bool
}

// Dispatcher is a synchronous pub/sub registry keyed by [Kind].
//
// Registration is safe from any goroutine. Dispatch invokes the
// kind's handlers in registration order; one-shot subscriptions
// are removed from the registry before their first invocation
// returns, never lazily.
type Dispatcher struct {
	mu   sync.Mutex
	subs map[Kind][]subscription
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subs: make(map[Kind][]subscription),
	}
}

// Register subscribes h to every future dispatch of kind.
func (d *Dispatcher) Register(kind Kind, h Handler) {
	d.register(kind, h, false)
}

// RegisterOnce subscribes h to the next dispatch of kind only.
func (d *Dispatcher) RegisterOnce(kind Kind, h Handler) {
	d.register(kind, h, true)
}

func (d *Dispatcher) register(kind Kind, h Handler, once bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs[kind] = append(d.subs[kind], subscription{fn: h, once: once})
}

// Dispatch invokes, in registration order, every handler
// subscribed to e's kind.
func (d *Dispatcher) Dispatch(e Event) {
	d.mu.Lock()
	subs := d.subs[e.Kind]
	if len(subs) > 0 {
		// Drop one-shot entries from the registry now, so a
		// re-dispatch from inside a handler cannot fire them twice.
		kept := subs[:0:0]
		for _, s := range subs {
			if !s.once {
				kept = append(kept, s)
			}
		}
		d.subs[e.Kind] = kept
	}
	d.mu.Unlock()

	for _, s := range subs {
		s.fn(e)
	}
}

// Reset drops every subscription.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.subs)
}
