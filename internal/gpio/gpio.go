// Package gpio drives the relay and alarm output pins.
// The real implementation uses the Linux GPIO character device; the fake
// records writes for tests.
package gpio

import (
	"errors"
	"sync"
)

// Output is a single logical on/off pin.
type Output interface {
	Set(on bool) error
	Close() error
}

// ErrClosed is returned by Set after the output has been released.
var ErrClosed = errors.New("gpio: output closed")

// Default pins (BCM numbering).
const (
	PinRelay = 19
	PinAlarm = 21
)

// DefaultChip is the GPIO character device on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// Nop is an output with nothing attached.
type Nop struct{}

func (Nop) Set(bool) error { return nil }
func (Nop) Close() error   { return nil }

// CloseOnce wraps o so that only the first Close reaches it. The actuator and
// the process teardown can then both release the same pin.
func CloseOnce(o Output) Output {
	return &onceOutput{Output: o}
}

type onceOutput struct {
	Output
	once sync.Once
	err  error
}

func (o *onceOutput) Close() error {
	o.once.Do(func() { o.err = o.Output.Close() })
	return o.err
}

// rawValue maps a logical state to the line level.
func rawValue(on, activeLow bool) int {
	if on != activeLow {
		return 1
	}
	return 0
}
