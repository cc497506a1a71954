// Package cevent contains the synchronous publish-subscribe
// registry the client uses to hand incoming packets and session
// lifecycle events to application code.
//
// Dispatch is deliberately synchronous and in registration order:
// handlers run inline on the dispatching goroutine, so a slow
// handler stalls the client run loop. That is the accepted price
// for a trivially predictable delivery order.
package cevent
