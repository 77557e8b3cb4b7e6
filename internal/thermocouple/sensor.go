// Package thermocouple reads the kiln and housing probes and masks transient
// read failures behind a per-channel grace count.
package thermocouple

import (
	"context"
	"errors"
	"fmt"

	"kiln_controller/internal/models"
)

// Channel selects one of the two thermocouple interfaces.
type Channel int

const (
	ChannelA Channel = iota // kiln probe
	ChannelB                // housing probe
)

// NumChannels is the number of thermocouple interfaces on the board.
const NumChannels = 2

func (c Channel) String() string {
	switch c {
	case ChannelA:
		return "A"
	case ChannelB:
		return "B"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// Reading is one probe sample plus the chip's internal (cold-junction) temperature.
type Reading struct {
	ProbeC    float64
	InternalC float64
}

// Sensor performs a single bus transaction for a channel.
// Implementations should honour ctx cancellation.
type Sensor interface {
	Read(ctx context.Context, ch Channel) (Reading, error)
}

// FaultKind classifies a failed read.
type FaultKind int

const (
	FaultDisconnected FaultKind = iota + 1
	FaultInternal
	FaultProbe
)

func (k FaultKind) String() string {
	switch k {
	case FaultDisconnected:
		return "disconnected"
	case FaultInternal:
		return "internal"
	case FaultProbe:
		return "probe"
	default:
		return "unknown"
	}
}

// Sentinel errors returned by sensors.
var (
	ErrDisconnected = errors.New("thermocouple: probe not connected")
	ErrInternal     = errors.New("thermocouple: internal reference read failed")
	ErrProbe        = errors.New("thermocouple: probe read failed")
)

// Classify maps a sensor error to its fault kind. Unknown errors, including
// deadline overruns, count as probe faults.
func Classify(err error) FaultKind {
	switch {
	case errors.Is(err, ErrDisconnected):
		return FaultDisconnected
	case errors.Is(err, ErrInternal):
		return FaultInternal
	default:
		return FaultProbe
	}
}

// Fault is a surfaced (grace-exhausted) channel failure.
type Fault struct {
	Channel Channel
	Kind    FaultKind
	Count   int
	Err     error
}

func (f Fault) Error() string {
	return fmt.Sprintf("channel %s %s fault after %d reads: %v", f.Channel, f.Kind, f.Count, f.Err)
}

func (f Fault) Unwrap() error { return f.Err }

// Code maps the fault to the run error taxonomy.
func (f Fault) Code() models.ErrorCode {
	base := models.ErrChannelADisconnected
	if f.Channel == ChannelB {
		base = models.ErrChannelBDisconnected
	}
	switch f.Kind {
	case FaultInternal:
		return base + 1
	case FaultProbe:
		return base + 2
	default:
		return base
	}
}
