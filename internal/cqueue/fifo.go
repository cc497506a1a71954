// Package cqueue provides the unbounded FIFO queue feeding the
// send loop. The queue never blocks a producer, which is what lets
// the client's Send stay non-blocking regardless of send-window state.
package cqueue

import (
	"sync"

	"github.com/eapache/queue"
)

// FIFO is an unbounded first-in-first-out queue,
// safe for concurrent use by any number of producers and consumers.
type FIFO[T any] struct {
	mu sync.Mutex
	q  *queue.Queue

	// ready holds one token while the queue is non-empty,
	// so consumers can select on it alongside their other waits.
	ready chan struct{}
}

// New returns an empty queue.
func New[T any]() *FIFO[T] {
	return &FIFO[T]{
		q:     queue.New(),
		ready: make(chan struct{}, 1),
	}
}

// Push appends v to the tail. It never blocks.
func (f *FIFO[T]) Push(v T) {
	f.mu.Lock()
	f.q.Add(v)
	f.mu.Unlock()

	f.signal()
}

// Pop removes and returns the head, or false if the queue is empty.
func (f *FIFO[T]) Pop() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var zero T
	if f.q.Length() == 0 {
		return zero, false
	}
	v := f.q.Remove().(T)
	if f.q.Length() > 0 {
		f.signal()
	}
	return v, true
}

// Ready returns a channel that is receivable while the queue may
// be non-empty. A receive from it is a hint, not a guarantee;
// consumers must still tolerate Pop returning false.
func (f *FIFO[T]) Ready() <-chan struct{} {
	return f.ready
}

// Len returns the current queue length.
func (f *FIFO[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.q.Length()
}

func (f *FIFO[T]) signal() {
	select {
	case f.ready <- struct{}{}:
	default:
	}
}
