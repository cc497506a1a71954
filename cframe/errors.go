package cframe

import "fmt"

// MalformedFrameError is returned from [Decode] when a datagram
// is structurally invalid: shorter than the fixed header, wrong
// magic, or containing a packet whose declared length runs past
// the end of the buffer.
type MalformedFrameError struct {
	Reason string
}

func (e MalformedFrameError) Error() string {
	return "malformed frame: " + e.Reason
}

// FrameTooLargeError is returned from [Frame.Encode] when the
// encoded frame would not fit in a single datagram.
type FrameTooLargeError struct {
	Size int
}

func (e FrameTooLargeError) Error() string {
	return fmt.Sprintf("encoded frame of %d bytes exceeds the %d-byte MTU", e.Size, MTU)
}
