//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealOutput drives one line on a GPIO chip.
type RealOutput struct {
	chip      *gpiocdev.Chip
	line      *gpiocdev.Line
	pin       int
	activeLow bool
}

// NewRealOutput requests pin as an output, initially off.
func NewRealOutput(chipName string, pin int, activeLow bool) (*RealOutput, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(rawValue(false, activeLow)))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request output pin %d: %w", pin, err)
	}

	return &RealOutput{chip: chip, line: line, pin: pin, activeLow: activeLow}, nil
}

// Set drives the pin to the logical state.
func (r *RealOutput) Set(on bool) error {
	if r.line == nil {
		return fmt.Errorf("set pin %d: %w", r.pin, ErrClosed)
	}
	if err := r.line.SetValue(rawValue(on, r.activeLow)); err != nil {
		return fmt.Errorf("set pin %d: %w", r.pin, err)
	}
	return nil
}

// Close drives the pin off, then releases the line back to input so the relay
// stays de-energised across restarts. Later calls do nothing.
func (r *RealOutput) Close() error {
	var errs []error

	if r.line != nil {
		if err := r.line.SetValue(rawValue(false, r.activeLow)); err != nil {
			errs = append(errs, fmt.Errorf("drive pin %d off: %w", r.pin, err))
		}
		if err := r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", r.pin, err))
		}
		if err := r.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", r.pin, err))
		}
		r.line = nil
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
