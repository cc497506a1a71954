// Package ctest contains test helpers shared across packages.
package ctest

import (
	"testing"
	"time"
)

// waitDuration bounds how long the Soon helpers wait before
// failing the test.
const waitDuration = 5 * time.Second

// ReceiveSoon receives a value from ch,
// failing the test if nothing arrives within a generous timeout.
func ReceiveSoon[T any](t *testing.T, ch <-chan T) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(waitDuration):
		t.Fatalf("timed out waiting %s to receive", waitDuration)
		panic("unreachable")
	}
}

// NotSending asserts that ch has no value immediately available.
func NotSending[T any](t *testing.T, ch <-chan T) {
	t.Helper()

	select {
	case v := <-ch:
		t.Fatalf("expected channel to be empty, received %v", v)
	default:
	}
}
