package cframe

import (
	"encoding/binary"
	"fmt"

	"github.com/spindlebot/cozmo/cpacket"
)

// Type is the frame type carried in the datagram header.
type Type uint8

const (
	TypeReset      Type = 0x01
	TypeDisconnect Type = 0x03
	TypeEngine     Type = 0x07
	TypePing       Type = 0x0b
)

func (t Type) String() string {
	switch t {
	case TypeReset:
		return "reset"
	case TypeDisconnect:
		return "disconnect"
	case TypeEngine:
		return "engine"
	case TypePing:
		return "ping"
	default:
		return fmt.Sprintf("invalid(0x%02x)", uint8(t))
	}
}

// frameMagic prefixes every datagram the device sends or accepts.
const frameMagic = "COZ\x03RE\x01"

// headerSize is the fixed frame header:
// magic, type byte, and three little-endian uint16 sequencing fields.
const headerSize = len(frameMagic) + 1 + 2 + 2 + 2

// MTU is the largest encoded frame the transport will emit.
// Frames that would exceed it fail to encode rather than fragment.
const MTU = 1400

// Frame is the payload of one UDP datagram.
//
// For engine frames, ordered packets inside the frame take
// consecutive sequence numbers starting at FirstSeq, ending at Seq.
// Sequence zero means "not sequenced" and is used by reset and
// ping frames.
type Frame struct {
	Type     Type
	FirstSeq uint16
	Seq      uint16
	Ack      uint16
	Packets  []cpacket.Packet
}

// Encode serializes the frame into a fresh byte slice.
//
// It fails with [FrameTooLargeError] if the encoded size would
// exceed [MTU]; oversize frames are never truncated or split here.
func (f Frame) Encode() ([]byte, error) {
	buf := make([]byte, 0, headerSize)
	buf = append(buf, frameMagic...)
	buf = append(buf, byte(f.Type))
	buf = binary.LittleEndian.AppendUint16(buf, f.FirstSeq)
	buf = binary.LittleEndian.AppendUint16(buf, f.Seq)
	buf = binary.LittleEndian.AppendUint16(buf, f.Ack)

	for _, pkt := range f.Packets {
		payload, err := pkt.MarshalPayload()
		if err != nil {
			return nil, fmt.Errorf(
				"failed to marshal %s packet payload: %w", pkt.Kind(), err,
			)
		}
		if len(payload) > 0xffff {
			return nil, fmt.Errorf(
				"%s packet payload of %d bytes exceeds length prefix",
				pkt.Kind(), len(payload),
			)
		}

		buf = append(buf, byte(pkt.Kind()))
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(payload)))
		buf = append(buf, payload...)
	}

	if len(buf) > MTU {
		return nil, FrameTooLargeError{Size: len(buf)}
	}
	return buf, nil
}

// Decode parses one datagram into a frame.
//
// Packets in the returned frame may retain references into b,
// so b must not be reused while the frame is live.
// Structural problems fail with [MalformedFrameError];
// Decode never panics on garbage input.
func Decode(b []byte) (Frame, error) {
	var f Frame

	if len(b) < headerSize {
		return f, MalformedFrameError{
			Reason: fmt.Sprintf("datagram of %d bytes shorter than %d-byte header", len(b), headerSize),
		}
	}
	if string(b[:len(frameMagic)]) != frameMagic {
		return f, MalformedFrameError{Reason: "bad frame magic"}
	}

	rest := b[len(frameMagic):]
	f.Type = Type(rest[0])
	f.FirstSeq = binary.LittleEndian.Uint16(rest[1:])
	f.Seq = binary.LittleEndian.Uint16(rest[3:])
	f.Ack = binary.LittleEndian.Uint16(rest[5:])

	rest = rest[7:]
	for len(rest) > 0 {
		if len(rest) < 3 {
			return f, MalformedFrameError{
				Reason: fmt.Sprintf("%d trailing bytes after last packet", len(rest)),
			}
		}
		kind := rest[0]
		plen := int(binary.LittleEndian.Uint16(rest[1:]))
		if len(rest)-3 < plen {
			return f, MalformedFrameError{
				Reason: fmt.Sprintf(
					"packet 0x%02x declares %d payload bytes but only %d remain",
					kind, plen, len(rest)-3,
				),
			}
		}

		f.Packets = append(f.Packets, cpacket.Decode(kind, rest[3:3+plen]))
		rest = rest[3+plen:]
	}

	return f, nil
}
