// Package pid implements a windowed PID controller whose output is a relay
// duty fraction in [0,1].
package pid

import (
	"errors"
	"time"
)

// Mode selects what the proportional term acts on.
type Mode int

const (
	OnError       Mode = iota // P acts on setpoint - input
	OnMeasurement             // P acts on input changes; no kick on setpoint steps
)

func (m Mode) String() string {
	if m == OnMeasurement {
		return "on_measurement"
	}
	return "on_error"
}

// Config holds gains and timing. Gains are in duty fraction per °C
// (Ki per °C·s, Kd per °C/s).
type Config struct {
	Kp, Ki, Kd float64
	Window     time.Duration
	Divider    int // duty is recomputed every Window/Divider
	Mode       Mode
}

var (
	ErrBadWindow = errors.New("pid: window must be positive")
	ErrBadGains  = errors.New("pid: gains must not be negative")
)

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Window <= 0 {
		return ErrBadWindow
	}
	if c.Kp < 0 || c.Ki < 0 || c.Kd < 0 {
		return ErrBadGains
	}
	return nil
}

// SampleTime is how often Step recomputes the duty.
func (c Config) SampleTime() time.Duration {
	d := c.Divider
	if d < 1 {
		d = 1
	}
	return c.Window / time.Duration(d)
}

// Controller is a direct-acting PID. Not safe for concurrent use; the control
// loop owns it.
type Controller struct {
	cfg Config

	outputSum float64
	lastInput float64
	lastTime  time.Time
	output    float64
	started   bool

	setpoint float64
}

// New creates a controller.
func New(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Controller{cfg: cfg}, nil
}

// Config returns the active configuration.
func (c *Controller) Config() Config { return c.cfg }

// Configure replaces gains and window. Call only between runs.
func (c *Controller) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

// Reset prepares a bumpless start from the given measurement.
func (c *Controller) Reset(input float64) {
	c.outputSum = 0
	c.output = 0
	c.lastInput = input
	c.lastTime = time.Time{}
	c.started = false
	c.setpoint = 0
}

// Output is the last computed duty.
func (c *Controller) Output() float64 { return c.output }

// Setpoint is the setpoint used by the last computation.
func (c *Controller) Setpoint() float64 { return c.setpoint }

// Step returns the duty for this instant. The duty is recomputed at most once
// per SampleTime; in between the previous duty is returned.
func (c *Controller) Step(now time.Time, input, setpoint float64) float64 {
	st := c.cfg.SampleTime()
	if c.started && now.Sub(c.lastTime) < st {
		return c.output
	}

	dt := st.Seconds()
	if !c.started {
		c.started = true
		c.lastInput = input
	}

	err := setpoint - input
	dInput := input - c.lastInput

	c.outputSum += c.cfg.Ki * dt * err
	if c.cfg.Mode == OnMeasurement {
		c.outputSum -= c.cfg.Kp * dInput
	}
	c.outputSum = clamp(c.outputSum)

	out := 0.0
	if c.cfg.Mode == OnError {
		out = c.cfg.Kp * err
	}
	out += c.outputSum - c.cfg.Kd*dInput/dt

	c.output = clamp(out)
	c.lastInput = input
	c.lastTime = now
	c.setpoint = setpoint
	return c.output
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
