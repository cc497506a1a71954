// Package cozmo implements a reverse-engineered client for the
// Cozmo robot's UDP control protocol.
//
// The robot speaks a proprietary reliable-datagram scheme: each
// datagram is a frame carrying sequencing fields and zero or more
// packets, with TCP-like ordering, deduplication, and cumulative
// acknowledgement reimplemented on top of UDP by sliding windows
// on both sides. This package provides the transport core: the
// [Client] session state machine, its receive and send loops, and
// the handshake and keepalive traffic that holds a session open.
//
// Concrete command and telemetry encodings beyond what the
// handshake needs are out of scope; applications exchange packets
// through [Client.Send] and subscriptions on the event dispatcher.
package cozmo
