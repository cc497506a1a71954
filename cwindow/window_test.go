package cwindow_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spindlebot/cozmo/cpacket"
	"github.com/spindlebot/cozmo/cwindow"
)

func pkt(n byte) cpacket.Packet {
	return cpacket.Command{Op: n, Data: []byte{n}}
}

func TestReceiveWindow_deliversInOrderRegardlessOfInsertion(t *testing.T) {
	t.Parallel()

	w := cwindow.NewReceiveWindow(16, 8)

	// Sequences 1..6 in a scrambled arrival order.
	for _, seq := range []uint16{4, 1, 6, 3, 2, 5} {
		require.False(t, w.IsOutOfOrder(seq))
		require.False(t, w.Exists(seq))
		w.Put(seq, pkt(byte(seq)))
	}

	var got []uint16
	for {
		p, ok := w.Get()
		if !ok {
			break
		}
		got = append(got, uint16(p.(cpacket.Command).Op))
	}
	require.Equal(t, []uint16{1, 2, 3, 4, 5, 6}, got)

	// Nothing further until the next expected sequence shows up.
	_, ok := w.Get()
	require.False(t, ok)
	require.Equal(t, uint16(7), w.ExpectedSeq())
}

func TestReceiveWindow_stallsOnGap(t *testing.T) {
	t.Parallel()

	w := cwindow.NewReceiveWindow(16, 8)

	w.Put(1, pkt(1))
	w.Put(3, pkt(3))

	_, ok := w.Get()
	require.True(t, ok)
	_, ok = w.Get()
	require.False(t, ok, "sequence 2 is missing; 3 must not be delivered")

	w.Put(2, pkt(2))
	p, ok := w.Get()
	require.True(t, ok)
	require.Equal(t, byte(2), p.(cpacket.Command).Op)
	p, ok = w.Get()
	require.True(t, ok)
	require.Equal(t, byte(3), p.(cpacket.Command).Op)
}

func TestReceiveWindow_duplicateDetection(t *testing.T) {
	t.Parallel()

	w := cwindow.NewReceiveWindow(16, 8)

	require.False(t, w.Exists(2))
	w.Put(2, pkt(2))
	require.True(t, w.Exists(2), "second arrival of seq 2 must be droppable as a duplicate")

	// Once delivered, the same sequence is rejected as out of
	// order, not re-buffered.
	w.Put(1, pkt(1))
	for {
		if _, ok := w.Get(); !ok {
			break
		}
	}
	require.False(t, w.Exists(2))
	require.True(t, w.IsOutOfOrder(2))
}

func TestReceiveWindow_wraparound(t *testing.T) {
	t.Parallel()

	w := cwindow.NewReceiveWindow(16, 256)

	// Walk the window edge to the top of the sequence space.
	for i := 1; i < 0x10000-1; i++ {
		seq := uint16(i)
		w.Put(seq, pkt(byte(seq)))
		_, ok := w.Get()
		require.True(t, ok)
	}
	require.Equal(t, uint16(0xffff), w.ExpectedSeq())

	// Sequences just past the wrap point are ahead, not stale.
	require.False(t, w.IsOutOfOrder(0xffff))
	require.False(t, w.IsOutOfOrder(0))
	require.False(t, w.IsOutOfOrder(2))

	// Behind the edge, or beyond the capacity, is rejected.
	// With the edge at 0xffff and capacity 256, the admission
	// range wraps to [0xffff, 0xfe].
	require.True(t, w.IsOutOfOrder(0xfffd))
	require.False(t, w.IsOutOfOrder(0xfe))
	require.True(t, w.IsOutOfOrder(0xff))

	w.Put(0, pkt(0))
	w.Put(2, pkt(2))
	w.Put(0xffff, pkt(0xff))

	var got []byte
	for {
		p, ok := w.Get()
		if !ok {
			break
		}
		got = append(got, p.(cpacket.Command).Op)
	}
	require.Equal(t, []byte{0xff, 0}, got, "delivery stops at the missing seq 1")

	w.Put(1, pkt(1))
	for {
		p, ok := w.Get()
		if !ok {
			break
		}
		got = append(got, p.(cpacket.Command).Op)
	}
	require.Equal(t, []byte{0xff, 0, 1, 2}, got)
}

func TestReceiveWindow_reset(t *testing.T) {
	t.Parallel()

	w := cwindow.NewReceiveWindow(16, 8)
	w.Put(1, pkt(1))
	w.Put(2, pkt(2))
	_, ok := w.Get()
	require.True(t, ok)

	w.Reset()

	require.Equal(t, uint16(1), w.ExpectedSeq())
	require.False(t, w.Exists(2))
	_, ok = w.Get()
	require.False(t, ok)
}

func TestSendWindow_cumulativeAck(t *testing.T) {
	t.Parallel()

	w := cwindow.NewSendWindow(16, 8)

	for i := byte(1); i <= 5; i++ {
		seq, err := w.Put(pkt(i))
		require.NoError(t, err)
		require.Equal(t, uint16(i), seq)
	}

	// Acking 3 removes 1..3 in one step and leaves 4..5.
	w.Ack(3)
	require.False(t, w.IsEmpty())
	seq, p, ok := w.Oldest()
	require.True(t, ok)
	require.Equal(t, uint16(4), seq)
	require.Equal(t, byte(4), p.(cpacket.Command).Op)

	// A stale ack is ignored.
	require.True(t, w.IsOutOfOrder(2))
	w.Ack(2)
	seq, _, ok = w.Oldest()
	require.True(t, ok)
	require.Equal(t, uint16(4), seq)

	w.Ack(5)
	require.True(t, w.IsEmpty())
}

func TestSendWindow_fullRejectsPut(t *testing.T) {
	t.Parallel()

	w := cwindow.NewSendWindow(16, 4)

	for i := byte(1); i <= 4; i++ {
		_, err := w.Put(pkt(i))
		require.NoError(t, err)
	}
	require.True(t, w.IsFull())

	_, err := w.Put(pkt(5))
	require.ErrorIs(t, err, cwindow.ErrWindowFull)

	// An ack opens a slot again.
	w.Ack(1)
	require.False(t, w.IsFull())
	seq, err := w.Put(pkt(5))
	require.NoError(t, err)
	require.Equal(t, uint16(5), seq)
}

func TestSendWindow_ackAcrossWraparound(t *testing.T) {
	t.Parallel()

	// A small sequence space makes the wrap cheap to reach.
	w := cwindow.NewSendWindow(4, 4)

	// Advance assignment to sequence 14.
	for i := 0; i < 13; i++ {
		seq, err := w.Put(pkt(byte(i)))
		require.NoError(t, err)
		w.Ack(seq)
	}

	var seqs []uint16
	for i := byte(0); i < 4; i++ {
		seq, err := w.Put(pkt(i))
		require.NoError(t, err)
		seqs = append(seqs, seq)
	}
	require.Equal(t, []uint16{14, 15, 0, 1}, seqs)

	w.Ack(0)
	seq, _, ok := w.Oldest()
	require.True(t, ok)
	require.Equal(t, uint16(1), seq)

	w.Ack(1)
	require.True(t, w.IsEmpty())
}

func TestSendWindow_reset(t *testing.T) {
	t.Parallel()

	w := cwindow.NewSendWindow(16, 4)
	_, err := w.Put(pkt(1))
	require.NoError(t, err)

	w.Reset()

	require.True(t, w.IsEmpty())
	require.Equal(t, uint16(1), w.ExpectedSeq())
	seq, err := w.Put(pkt(2))
	require.NoError(t, err)
	require.Equal(t, uint16(1), seq)
}
