// Package actuator turns a duty fraction into relay on/off time and drives
// the alarm output after an abort.
package actuator

import (
	"errors"
	"fmt"
	"time"

	"kiln_controller/internal/gpio"
)

// Config sets the time-proportioning window and the alarm countdown.
type Config struct {
	Window       time.Duration
	AlarmTimeout time.Duration // 0 disables the alarm
}

var ErrBadWindow = errors.New("actuator: window must be positive")

// Status is the actuator view for the run snapshot.
type Status struct {
	Duty       float64
	RelayOn    bool
	AlarmOn    bool
	OnTime     time.Duration // relay on-time so far in the current window
	LastOnTime time.Duration // on-time of the previous complete window
}

// Actuator owns the relay and alarm pins. Not safe for concurrent use; the
// control loop owns it.
type Actuator struct {
	cfg   Config
	relay gpio.Output
	alarm gpio.Output

	aborted     bool
	duty        float64
	windowStart time.Time
	lastApply   time.Time
	relayOn     bool
	onTime      time.Duration
	lastOnTime  time.Duration

	alarmOn    bool
	alarmUntil time.Time
}

// New creates an actuator and drives both outputs off.
func New(cfg Config, relay, alarm gpio.Output) (*Actuator, error) {
	if cfg.Window <= 0 {
		return nil, ErrBadWindow
	}
	if relay == nil {
		relay = gpio.Nop{}
	}
	if alarm == nil {
		alarm = gpio.Nop{}
	}
	a := &Actuator{cfg: cfg, relay: relay, alarm: alarm}
	if err := relay.Set(false); err != nil {
		return nil, fmt.Errorf("relay off: %w", err)
	}
	if err := alarm.Set(false); err != nil {
		return nil, fmt.Errorf("alarm off: %w", err)
	}
	return a, nil
}

// Configure replaces the window and alarm timeout. Callers only do this
// between runs.
func (a *Actuator) Configure(cfg Config) error {
	if cfg.Window <= 0 {
		return ErrBadWindow
	}
	a.cfg = cfg
	a.windowStart = time.Time{}
	return nil
}

// Apply drives the relay for duty within the current window. The relay is on
// while the time since the window start is below duty*window. After Abort the
// duty stays 0 until Reset.
func (a *Actuator) Apply(now time.Time, duty float64) error {
	if a.aborted || duty < 0 {
		duty = 0
	}
	if duty > 1 {
		duty = 1
	}
	a.duty = duty

	a.accumulate(now)
	if a.windowStart.IsZero() || now.Before(a.windowStart) {
		a.startWindow(now)
	} else if since := now.Sub(a.windowStart); since >= a.cfg.Window {
		a.lastOnTime = a.onTime
		a.onTime = 0
		a.windowStart = a.windowStart.Add(since / a.cfg.Window * a.cfg.Window)
	}
	a.lastApply = now

	on := now.Sub(a.windowStart) < time.Duration(duty*float64(a.cfg.Window))
	var errs []error
	if err := a.setRelay(on); err != nil {
		errs = append(errs, err)
	}
	if a.alarmOn && !now.Before(a.alarmUntil) {
		if err := a.setAlarm(false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *Actuator) startWindow(now time.Time) {
	a.windowStart = now
	a.onTime = 0
}

// accumulate adds the relay on-time since the last Apply, bounded by the end
// of the current window.
func (a *Actuator) accumulate(now time.Time) {
	if !a.relayOn || a.lastApply.IsZero() || a.windowStart.IsZero() {
		return
	}
	end := now
	if wEnd := a.windowStart.Add(a.cfg.Window); end.After(wEnd) {
		end = wEnd
	}
	if end.After(a.lastApply) {
		a.onTime += end.Sub(a.lastApply)
	}
}

// Abort forces the relay off immediately and raises the alarm for the
// configured timeout.
func (a *Actuator) Abort(now time.Time) error {
	a.accumulate(now)
	a.lastApply = now
	a.aborted = true
	a.duty = 0

	var errs []error
	if err := a.setRelay(false); err != nil {
		errs = append(errs, err)
	}
	if a.cfg.AlarmTimeout > 0 {
		a.alarmUntil = now.Add(a.cfg.AlarmTimeout)
		if err := a.setAlarm(true); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Acknowledge silences the alarm before its timeout.
func (a *Actuator) Acknowledge() error {
	if !a.alarmOn {
		return nil
	}
	return a.setAlarm(false)
}

// Reset re-arms the actuator for a new run. The alarm is left alone.
func (a *Actuator) Reset() {
	a.aborted = false
	a.duty = 0
	a.windowStart = time.Time{}
	a.lastApply = time.Time{}
	a.onTime = 0
	a.lastOnTime = 0
}

// Status reports the current outputs.
func (a *Actuator) Status() Status {
	return Status{
		Duty:       a.duty,
		RelayOn:    a.relayOn,
		AlarmOn:    a.alarmOn,
		OnTime:     a.onTime,
		LastOnTime: a.lastOnTime,
	}
}

// Close drives both outputs off and releases them.
func (a *Actuator) Close() error {
	var errs []error
	if err := a.setRelay(false); err != nil {
		errs = append(errs, err)
	}
	if err := a.setAlarm(false); err != nil {
		errs = append(errs, err)
	}
	if err := a.relay.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close relay: %w", err))
	}
	if err := a.alarm.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close alarm: %w", err))
	}
	return errors.Join(errs...)
}

func (a *Actuator) setRelay(on bool) error {
	if err := a.relay.Set(on); err != nil {
		return fmt.Errorf("set relay: %w", err)
	}
	a.relayOn = on
	return nil
}

func (a *Actuator) setAlarm(on bool) error {
	if err := a.alarm.Set(on); err != nil {
		return fmt.Errorf("set alarm: %w", err)
	}
	a.alarmOn = on
	return nil
}
