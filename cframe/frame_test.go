package cframe_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spindlebot/cozmo/cframe"
	"github.com/spindlebot/cozmo/cpacket"
)

func TestFrame_roundTrip(t *testing.T) {
	t.Parallel()

	orig := cframe.Frame{
		Type:     cframe.TypeEngine,
		FirstSeq: 41,
		Seq:      43,
		Ack:      17,
		Packets: []cpacket.Packet{
			cpacket.Connect{},
			cpacket.Ping{TimeSentMS: 123.5, Counter: 9, Last: 2},
			cpacket.Command{Op: cpacket.OpEnable, Data: []byte{0xaa, 0xbb}},
			cpacket.Event{Data: []byte{0xf0, 0x01}},
			cpacket.FirmwareSignature{Signature: []byte(`{"version":2381}`)},
			cpacket.Unknown{RawKind: 0x66, Payload: []byte{1, 2, 3}},
		},
	}

	raw, err := orig.Encode()
	require.NoError(t, err)

	got, err := cframe.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, orig, got)
}

func TestFrame_roundTripNoPackets(t *testing.T) {
	t.Parallel()

	orig := cframe.Frame{Type: cframe.TypeReset, FirstSeq: 1, Seq: 1}

	raw, err := orig.Encode()
	require.NoError(t, err)

	got, err := cframe.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, orig, got)
}

func TestFrame_unknownKindPreserved(t *testing.T) {
	t.Parallel()

	orig := cframe.Frame{
		Type:     cframe.TypeEngine,
		FirstSeq: 1,
		Seq:      1,
		Packets: []cpacket.Packet{
			cpacket.Unknown{RawKind: 0xee, Payload: []byte{9, 8, 7}},
		},
	}

	raw, err := orig.Encode()
	require.NoError(t, err)

	got, err := cframe.Decode(raw)
	require.NoError(t, err)

	u, ok := got.Packets[0].(cpacket.Unknown)
	require.True(t, ok)
	require.Equal(t, byte(0xee), u.RawKind)
	require.Equal(t, []byte{9, 8, 7}, u.Payload)
	require.False(t, u.OOB())
}

func TestDecode_shortBuffer(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 5, 13} {
		_, err := cframe.Decode(make([]byte, n))

		var malformed cframe.MalformedFrameError
		require.ErrorAs(t, err, &malformed, "buffer length %d", n)
	}
}

func TestDecode_badMagic(t *testing.T) {
	t.Parallel()

	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = 0xff
	}

	_, err := cframe.Decode(raw)

	var malformed cframe.MalformedFrameError
	require.ErrorAs(t, err, &malformed)
}

func TestDecode_truncatedPacket(t *testing.T) {
	t.Parallel()

	frame := cframe.Frame{
		Type:     cframe.TypeEngine,
		FirstSeq: 1,
		Seq:      1,
		Packets: []cpacket.Packet{
			cpacket.Command{Op: 1, Data: []byte{1, 2, 3, 4, 5, 6}},
		},
	}
	raw, err := frame.Encode()
	require.NoError(t, err)

	// Cut into the packet payload, leaving the declared length
	// pointing past the end of the buffer.
	_, err = cframe.Decode(raw[:len(raw)-3])

	var malformed cframe.MalformedFrameError
	require.ErrorAs(t, err, &malformed)

	// And a dangling packet header with no payload at all.
	_, err = cframe.Decode(raw[:len(raw)-8])
	require.ErrorAs(t, err, &malformed)
}

func TestEncode_rejectsOversizeFrame(t *testing.T) {
	t.Parallel()

	frame := cframe.Frame{
		Type:     cframe.TypeEngine,
		FirstSeq: 1,
		Seq:      1,
		Packets: []cpacket.Packet{
			cpacket.Event{Data: make([]byte, cframe.MTU)},
		},
	}

	_, err := frame.Encode()

	var tooLarge cframe.FrameTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	require.Greater(t, tooLarge.Size, cframe.MTU)
}
