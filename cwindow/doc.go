// Package cwindow implements the sliding-window bookkeeping
// underneath the reliable transport: sequence assignment and
// cumulative acknowledgement on the send side, reordering and
// deduplication on the receive side.
//
// Sequence numbers live in a wrapping space of 2^seqBits values,
// and every ordering comparison uses signed mod-space distance so
// the windows behave correctly across the wraparound boundary.
// Windows are not safe for concurrent use; each one is owned by a
// single loop, which serializes access.
package cwindow
