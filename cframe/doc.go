// Package cframe implements the datagram frame codec.
//
// One UDP datagram carries exactly one frame: a fixed header
// (magic, frame type, sequencing fields) followed by zero or more
// length-delimited packets. Decoding is total over arbitrary input;
// structurally invalid datagrams fail with [MalformedFrameError]
// and are meant to be dropped by the caller.
package cframe
