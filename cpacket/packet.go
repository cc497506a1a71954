package cpacket

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Kind is the numeric identifier of a packet variant on the wire.
type Kind uint8

const (
	KindConnect           Kind = 0x02
	KindDisconnect        Kind = 0x03
	KindCommand           Kind = 0x04
	KindEvent             Kind = 0x05
	KindFirmwareSignature Kind = 0x09
	KindPing              Kind = 0x0b
)

func (k Kind) String() string {
	switch k {
	case KindConnect:
		return "connect"
	case KindDisconnect:
		return "disconnect"
	case KindCommand:
		return "command"
	case KindEvent:
		return "event"
	case KindFirmwareSignature:
		return "firmware_signature"
	case KindPing:
		return "ping"
	default:
		return fmt.Sprintf("unknown(0x%02x)", uint8(k))
	}
}

// Packet is a single protocol message carried inside a frame.
//
// A packet never carries its own sequence number;
// for ordered traffic the sequence lives in the enclosing frame.
type Packet interface {
	// Kind reports the numeric packet kind used on the wire.
	Kind() Kind

	// OOB reports whether the packet is out-of-band:
	// exempt from sequencing, acknowledgement, and window buffering.
	OOB() bool

	// MarshalPayload returns the kind-specific payload bytes,
	// excluding the kind byte and length prefix,
	// which belong to the frame layer.
	MarshalPayload() ([]byte, error)
}

// Incoming is a packet as delivered by the receive loop,
// annotated with the sequencing state of the frame that carried it.
type Incoming struct {
	Pkt Packet

	// Seq is the sequence number assigned to the packet
	// by its enclosing engine frame. Zero for out-of-band packets.
	Seq uint16

	// Ack is the cumulative acknowledgement carried by the frame.
	Ack uint16
}

// Connect is the device's acceptance of a new session.
type Connect struct{}

func (Connect) Kind() Kind { return KindConnect }
func (Connect) OOB() bool  { return false }

func (Connect) MarshalPayload() ([]byte, error) { return nil, nil }

// Disconnect asks the device to close the session.
type Disconnect struct{}

func (Disconnect) Kind() Kind { return KindDisconnect }
func (Disconnect) OOB() bool  { return false }

func (Disconnect) MarshalPayload() ([]byte, error) { return nil, nil }

// pingPayloadSize is the fixed encoded size of a [Ping] payload.
const pingPayloadSize = 8 + 4 + 4

// Ping is the keepalive packet.
// Both sides emit it; it is out-of-band in both directions.
type Ping struct {
	TimeSentMS float64
	Counter    uint32
	Last       uint32
}

func (Ping) Kind() Kind { return KindPing }
func (Ping) OOB() bool  { return true }

func (p Ping) MarshalPayload() ([]byte, error) {
	buf := make([]byte, pingPayloadSize)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(p.TimeSentMS))
	binary.LittleEndian.PutUint32(buf[8:], p.Counter)
	binary.LittleEndian.PutUint32(buf[12:], p.Last)
	return buf, nil
}

// Command is a generic engine command:
// a one-byte opcode followed by opcode-specific arguments.
//
// The catalogue of opcodes is large and mostly undocumented;
// the transport only needs the handful used during session bootstrap.
type Command struct {
	Op   byte
	Data []byte
}

// Opcodes used by the session initialization burst.
const (
	OpEnable       byte = 0x25
	OpEnableEvents byte = 0x4b
	OpEnableMisc   byte = 0x9f
	OpNextFrame    byte = 0x8f
	OpDisplayImage byte = 0x97
)

func (Command) Kind() Kind { return KindCommand }
func (Command) OOB() bool  { return false }

func (c Command) MarshalPayload() ([]byte, error) {
	buf := make([]byte, 1+len(c.Data))
	buf[0] = c.Op
	copy(buf[1:], c.Data)
	return buf, nil
}

// Event is an asynchronous notification from the device.
// Events are out-of-band: they are delivered as soon as received,
// never waiting on missing ordered traffic.
type Event struct {
	Data []byte
}

func (Event) Kind() Kind { return KindEvent }
func (Event) OOB() bool  { return true }

func (e Event) MarshalPayload() ([]byte, error) { return e.Data, nil }

// FirmwareSignature carries the device's firmware description,
// a JSON object, sent once early in the session.
type FirmwareSignature struct {
	Signature []byte
}

func (FirmwareSignature) Kind() Kind { return KindFirmwareSignature }
func (FirmwareSignature) OOB() bool  { return false }

func (f FirmwareSignature) MarshalPayload() ([]byte, error) { return f.Signature, nil }

// Unknown preserves a packet whose kind the decoder does not recognize,
// or whose payload failed kind-specific validation.
// Unknown packets participate in ordering like any other engine traffic.
type Unknown struct {
	RawKind byte
	Payload []byte
}

func (u Unknown) Kind() Kind { return Kind(u.RawKind) }
func (Unknown) OOB() bool    { return false }

func (u Unknown) MarshalPayload() ([]byte, error) { return u.Payload, nil }
