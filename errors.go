package cozmo

import (
	"fmt"
	"time"
)

// ReadyTimeoutError is returned from [*Client.WaitForReady] if the
// device does not reach the ready state within the caller's deadline.
type ReadyTimeoutError struct {
	Timeout time.Duration
}

func (e ReadyTimeoutError) Error() string {
	return fmt.Sprintf("robot not ready within %s", e.Timeout)
}
