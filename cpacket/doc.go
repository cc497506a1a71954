// Package cpacket contains the protocol messages carried inside frames.
//
// Every packet is a tagged variant identified by a numeric kind byte.
// Kinds the decoder does not recognize are preserved as [Unknown]
// values rather than rejected, so the transport keeps working against
// firmware revisions that speak a newer protocol dialect.
package cpacket
