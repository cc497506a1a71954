package cpacket

import (
	"encoding/binary"
	"math"
)

// decoders maps a packet kind to its payload decoder.
// A decoder returns false when the payload fails kind-specific
// validation, in which case [Decode] falls back to [Unknown].
var decoders = map[Kind]func(payload []byte) (Packet, bool){
	KindConnect: func([]byte) (Packet, bool) {
		return Connect{}, true
	},
	KindDisconnect: func([]byte) (Packet, bool) {
		return Disconnect{}, true
	},
	KindPing: func(payload []byte) (Packet, bool) {
		if len(payload) != pingPayloadSize {
			return nil, false
		}
		return Ping{
			TimeSentMS: math.Float64frombits(binary.LittleEndian.Uint64(payload)),
			Counter:    binary.LittleEndian.Uint32(payload[8:]),
			Last:       binary.LittleEndian.Uint32(payload[12:]),
		}, true
	},
	KindCommand: func(payload []byte) (Packet, bool) {
		if len(payload) < 1 {
			return nil, false
		}
		return Command{Op: payload[0], Data: payload[1:]}, true
	},
	KindEvent: func(payload []byte) (Packet, bool) {
		return Event{Data: payload}, true
	},
	KindFirmwareSignature: func(payload []byte) (Packet, bool) {
		return FirmwareSignature{Signature: payload}, true
	},
}

// Decode interprets a raw kind byte and payload as a packet.
//
// Decode is total: unrecognized kinds and payloads that fail
// validation come back as [Unknown], preserving the raw bytes.
// The returned packet may retain references into payload.
func Decode(rawKind byte, payload []byte) Packet {
	if dec, ok := decoders[Kind(rawKind)]; ok {
		if pkt, ok := dec(payload); ok {
			return pkt
		}
	}
	return Unknown{RawKind: rawKind, Payload: payload}
}
