// Package eventbus carries in-process events between the warm-up job and the
// preview pipeline.
package eventbus

import (
	"errors"

	evbus "github.com/asaskevich/EventBus"
)

var (
	ErrBusFull    = errors.New("event bus queue full")
	ErrBusStopped = errors.New("event bus stopped")
)

// New returns a synchronous bus.
func New() evbus.Bus {
	return evbus.New()
}
