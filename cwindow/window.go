package cwindow

import (
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/spindlebot/cozmo/cpacket"
)

// initialSeq is the first sequence number of a fresh session.
// Sequence zero is reserved on the wire to mean "not sequenced".
const initialSeq = 1

// ErrWindowFull is returned from [*SendWindow.Put] when the window
// already holds its full capacity of unacknowledged packets.
var ErrWindowFull = errors.New("send window full")

// seqSpace holds the wrapping-arithmetic parameters shared by
// both window kinds.
type seqSpace struct {
	max  uint32 // 2^seqBits
	half uint32
}

func newSeqSpace(seqBits uint8, capacity int) seqSpace {
	if seqBits == 0 || seqBits > 16 {
		panic(fmt.Errorf("seqBits must be in [1, 16], got %d", seqBits))
	}
	s := seqSpace{max: 1 << seqBits}
	s.half = s.max / 2
	if capacity <= 0 || uint32(capacity) > s.half {
		panic(fmt.Errorf(
			"window capacity must be in [1, %d], got %d", s.half, capacity,
		))
	}
	return s
}

// dist is the forward distance from a to b in the wrapping space.
func (s seqSpace) dist(a, b uint16) uint32 {
	return (uint32(b) + s.max - uint32(a)) % s.max
}

// behind reports whether b is behind a: the forward distance from
// a to b exceeds half the sequence space.
func (s seqSpace) behind(a, b uint16) bool {
	return s.dist(a, b) > s.half
}

func (s seqSpace) inc(v uint16) uint16 {
	return uint16((uint32(v) + 1) % s.max)
}

// ReceiveWindow buffers ordered packets that arrived ahead of the
// next expected sequence, and releases them strictly in order.
type ReceiveWindow struct {
	space    seqSpace
	capacity uint32

	expectedSeq uint16

	// have tracks buffered sequence numbers;
	// buf holds the packets themselves.
	have *bitset.BitSet
	buf  map[uint16]cpacket.Packet
}

// NewReceiveWindow returns a receive window over a sequence space
// of 2^seqBits values, buffering at most capacity packets.
func NewReceiveWindow(seqBits uint8, capacity int) *ReceiveWindow {
	space := newSeqSpace(seqBits, capacity)
	return &ReceiveWindow{
		space:       space,
		capacity:    uint32(capacity),
		expectedSeq: initialSeq,
		have:        bitset.New(uint(space.max)),
		buf:         make(map[uint16]cpacket.Packet),
	}
}

// IsOutOfOrder reports whether seq falls outside the admission
// range [expectedSeq, expectedSeq+capacity): either behind the
// expected sequence (already delivered, or too old) or too far
// ahead to buffer.
func (w *ReceiveWindow) IsOutOfOrder(seq uint16) bool {
	d := w.space.dist(w.expectedSeq, seq)
	return d > w.space.half || d >= w.capacity
}

// Exists reports whether seq is already buffered.
func (w *ReceiveWindow) Exists(seq uint16) bool {
	return w.have.Test(uint(seq))
}

// Put buffers the packet under seq.
// The caller must have already rejected the packet via
// [*ReceiveWindow.IsOutOfOrder] and [*ReceiveWindow.Exists].
func (w *ReceiveWindow) Put(seq uint16, pkt cpacket.Packet) {
	w.have.Set(uint(seq))
	w.buf[seq] = pkt
}

// IsExpected reports whether seq is exactly the next sequence due
// for delivery, meaning a drain via [*ReceiveWindow.Get] will make
// progress.
func (w *ReceiveWindow) IsExpected(seq uint16) bool {
	return seq == w.expectedSeq
}

// Get pops the packet at the expected sequence and advances the
// window. It returns false once the next expected sequence is not
// buffered, signalling the end of the in-order run.
func (w *ReceiveWindow) Get() (cpacket.Packet, bool) {
	pkt, ok := w.buf[w.expectedSeq]
	if !ok {
		return nil, false
	}
	delete(w.buf, w.expectedSeq)
	w.have.Clear(uint(w.expectedSeq))
	w.expectedSeq = w.space.inc(w.expectedSeq)
	return pkt, true
}

// ExpectedSeq returns the next sequence due for delivery.
func (w *ReceiveWindow) ExpectedSeq() uint16 {
	return w.expectedSeq
}

// Reset discards all buffered packets and rewinds the window to
// the initial protocol sequence.
func (w *ReceiveWindow) Reset() {
	w.have.ClearAll()
	clear(w.buf)
	w.expectedSeq = initialSeq
}

// SendWindow assigns outbound sequence numbers and retains packets
// until the peer acknowledges them.
type SendWindow struct {
	space    seqSpace
	capacity int

	// expectedSeq is the lowest unacknowledged sequence;
	// nextSeq is the sequence the next Put will assign.
	expectedSeq uint16
	nextSeq     uint16

	buf map[uint16]cpacket.Packet
}

// NewSendWindow returns a send window over a sequence space of
// 2^seqBits values, holding at most capacity unacknowledged packets.
func NewSendWindow(seqBits uint8, capacity int) *SendWindow {
	return &SendWindow{
		space:       newSeqSpace(seqBits, capacity),
		capacity:    capacity,
		expectedSeq: initialSeq,
		nextSeq:     initialSeq,
		buf:         make(map[uint16]cpacket.Packet),
	}
}

// Put assigns the next sequence number to pkt, buffers it, and
// returns the assigned sequence. It fails with [ErrWindowFull] when
// the window is at capacity; backpressure is the caller's problem.
func (w *SendWindow) Put(pkt cpacket.Packet) (uint16, error) {
	if w.IsFull() {
		return 0, ErrWindowFull
	}
	seq := w.nextSeq
	w.buf[seq] = pkt
	w.nextSeq = w.space.inc(w.nextSeq)
	return seq, nil
}

// IsOutOfOrder reports whether an acknowledgement for seq is stale:
// behind the lowest unacknowledged sequence.
func (w *SendWindow) IsOutOfOrder(seq uint16) bool {
	return w.space.behind(w.expectedSeq, seq)
}

// Ack removes every buffered packet with sequence up to and
// including seq, mod-aware, advancing the lower window edge.
// Stale acknowledgements are ignored.
func (w *SendWindow) Ack(seq uint16) {
	if w.IsOutOfOrder(seq) {
		return
	}
	for w.expectedSeq != w.nextSeq {
		if w.space.behind(w.expectedSeq, seq) {
			// The window edge has moved past seq.
			break
		}
		delete(w.buf, w.expectedSeq)
		w.expectedSeq = w.space.inc(w.expectedSeq)
	}
}

// Oldest returns the lowest unacknowledged sequence and its packet,
// or false if the window is empty. It is the retransmission
// candidate.
func (w *SendWindow) Oldest() (uint16, cpacket.Packet, bool) {
	pkt, ok := w.buf[w.expectedSeq]
	if !ok {
		return 0, nil, false
	}
	return w.expectedSeq, pkt, true
}

// IsEmpty reports whether every assigned sequence has been
// acknowledged.
func (w *SendWindow) IsEmpty() bool { return len(w.buf) == 0 }

// IsFull reports whether the window is at capacity.
func (w *SendWindow) IsFull() bool { return len(w.buf) >= w.capacity }

// ExpectedSeq returns the lowest unacknowledged sequence.
func (w *SendWindow) ExpectedSeq() uint16 { return w.expectedSeq }

// Reset discards all unacknowledged packets and rewinds sequence
// assignment to the initial protocol sequence.
func (w *SendWindow) Reset() {
	clear(w.buf)
	w.expectedSeq = initialSeq
	w.nextSeq = initialSeq
}
