// Package controller runs the single control loop that reads the probes,
// applies queued commands, checks safety, sequences the program and drives
// the relay, once per tick.
package controller

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"kiln_controller/internal/actuator"
	"kiln_controller/internal/engine"
	"kiln_controller/internal/logger"
	"kiln_controller/internal/metrics"
	"kiln_controller/internal/models"
	"kiln_controller/internal/mqtt"
	"kiln_controller/internal/pid"
	"kiln_controller/internal/safety"
	"kiln_controller/internal/thermocouple"
)

// StateSink persists the latest run snapshot.
type StateSink interface {
	Save(ctx context.Context, s models.RunSnapshot) error
}

// EventSink appends run events to the log.
type EventSink interface {
	Append(ctx context.Context, ev models.KilnEvent) error
}

// Deps are the components the loop drives. Engine, Reader, Monitor, PID and
// Actuator are required; the rest may be nil.
type Deps struct {
	Engine   *engine.Engine
	Reader   *thermocouple.Reader
	Monitor  *safety.Monitor
	PID      *pid.Controller
	Actuator *actuator.Actuator

	States StateSink
	Events EventSink

	// Publisher is drained by a separate goroutine so a slow broker never
	// stalls the tick. The controller closes it when Run returns.
	Publisher mqtt.Publisher
	Metrics   *metrics.Metrics
	Log       *logger.Logger

	// LogWindow is how often the snapshot is persisted and published when
	// nothing else happens.
	LogWindow time.Duration
}

// Controller owns the tick. Only Run (or Tick in tests) touches the
// components; other goroutines go through the engine's command queue,
// AcknowledgeAlarm and Status.
type Controller struct {
	d   Deps
	out *mqtt.AsyncPublisher

	ackAlarm    atomic.Bool
	prevDuty    float64
	lastPublish time.Time
	faulted     [thermocouple.NumChannels]bool
	startHeld   bool
}

// New validates deps and returns a controller.
func New(d Deps) (*Controller, error) {
	if d.Engine == nil || d.Reader == nil || d.Monitor == nil || d.PID == nil || d.Actuator == nil {
		return nil, fmt.Errorf("controller: missing core component")
	}
	if d.Publisher == nil {
		d.Publisher = mqtt.Nop{}
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.LogWindow <= 0 {
		d.LogWindow = 30 * time.Second
	}
	return &Controller{d: d, out: mqtt.NewAsync(d.Publisher, mqtt.DefaultQueueSize, d.Log)}, nil
}

// Engine exposes the command entry points.
func (c *Controller) Engine() *engine.Engine { return c.d.Engine }

// Status returns the snapshot recorded by the last tick.
func (c *Controller) Status() models.RunSnapshot { return c.d.Engine.Status() }

// AcknowledgeAlarm silences the alarm on the next tick.
func (c *Controller) AcknowledgeAlarm() { c.ackAlarm.Store(true) }

// Run ticks at the given interval until ctx is canceled, then drives the
// outputs off.
func (c *Controller) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	defer c.shutdown()

	c.d.Log.Infow("control_loop_started", "tick", tick.String())
	c.Tick(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			c.Tick(ctx, now)
		}
	}
}

func (c *Controller) shutdown() {
	if err := c.d.Actuator.Close(); err != nil {
		c.d.Log.Errorw("actuator_close_failed", "error", err)
	}
	if err := c.out.Close(); err != nil {
		c.d.Log.Errorw("publisher_close_failed", "error", err)
	}
	c.d.Log.Infow("control_loop_stopped")
}

// reading is the accepted sensor view for one tick.
type reading struct {
	kilnC        float64
	kilnKnown    bool // channel A has produced at least one good read
	internalC    float64
	housingC     float64
	housingKnown bool
	faults       []models.ErrorCode
}

// Tick runs one pass of the loop.
func (c *Controller) Tick(ctx context.Context, now time.Time) {
	began := time.Now()
	eng := c.d.Engine

	// 1. sensors
	r := c.read(ctx, now)

	// 2. commands queued since the last tick
	var ch engine.Changes
	if r.kilnKnown {
		ch = eng.ApplyCommands(now, r.kilnC)
	} else {
		ch = eng.ApplyCommandsUnread(now)
	}
	if ch.StartHeld && !c.startHeld {
		c.d.Log.Warnw("run_start_held", "reason", "no kiln reading yet")
	}
	c.startHeld = ch.StartHeld
	if ch.Started {
		c.d.Monitor.Reset()
		c.d.PID.Reset(r.kilnC)
		c.d.Actuator.Reset()
		c.prevDuty = 0
		c.d.Log.Infow("run_started", "run_id", eng.RunID(), "start_temp_c", r.kilnC)
	}
	if ch.Aborted {
		c.abortOutputs(now)
		c.d.Log.Warnw("run_aborted", "run_id", eng.RunID(), "error_code", eng.ErrorCode().String())
	}
	if ch.Cleaned {
		c.d.Reader.ResetCounters()
		c.d.Monitor.Reset()
		c.faulted = [thermocouple.NumChannels]bool{}
	}
	if c.ackAlarm.Swap(false) {
		if err := c.d.Actuator.Acknowledge(); err != nil {
			c.d.Log.Errorw("alarm_ack_failed", "error", err)
		}
	}

	// 3. safety precedes sequencing
	if eng.State().Heating() {
		code, bad := c.d.Monitor.Evaluate(safety.Input{
			Now:          now,
			KilnC:        r.kilnC,
			HousingC:     r.housingC,
			HousingKnown: r.housingKnown,
			Elapsed:      eng.Elapsed(),
			Duty:         c.prevDuty,
			Waiting:      eng.Waiting(),
			Faults:       r.faults,
		})
		if bad && eng.Fail(now, code) {
			c.abortOutputs(now)
			c.d.Log.Errorw("run_aborted",
				"run_id", eng.RunID(),
				"error_code", code.String(),
				"kiln_c", r.kilnC,
				"housing_c", r.housingC,
			)
		}
	}

	// 4. sequencing and PID
	duty := 0.0
	if eng.State().Heating() {
		sp := eng.Advance(now, r.kilnC)
		if eng.State().Heating() {
			duty = c.d.PID.Step(now, r.kilnC, sp)
		}
	}

	// 5. outputs
	if err := c.d.Actuator.Apply(now, duty); err != nil {
		c.d.Log.Errorw("actuator_apply_failed", "error", err, "duty", duty)
	}
	out := c.d.Actuator.Status()
	c.prevDuty = out.Duty

	// 6. snapshot and publish
	eng.Record(now, engine.Telemetry{
		KilnC:        r.kilnC,
		HousingC:     r.housingC,
		InternalC:    r.internalC,
		Duty:         out.Duty,
		RelayOn:      out.RelayOn,
		AlarmOn:      out.AlarmOn,
		SensorErrors: c.d.Reader.Counters(),
	})
	c.publish(ctx, now, eng.DrainEvents())

	if c.d.Metrics != nil {
		c.d.Metrics.ObserveTick(time.Since(began))
	}
}

func (c *Controller) abortOutputs(now time.Time) {
	if err := c.d.Actuator.Abort(now); err != nil {
		c.d.Log.Errorw("actuator_abort_failed", "error", err)
	}
	c.prevDuty = 0
}

// read samples every fitted channel. Housing temperature comes from channel B
// when fitted, otherwise from channel A's cold junction.
func (c *Controller) read(ctx context.Context, now time.Time) reading {
	var r reading
	for _, s := range c.d.Reader.ReadAll(ctx) {
		if s.Masked || s.Fault != nil {
			c.noteFailure(ctx, now, s)
		} else {
			c.faulted[s.Channel] = false
		}
		if s.Fault != nil {
			r.faults = append(r.faults, s.Fault.Code())
		}
		switch s.Channel {
		case thermocouple.ChannelA:
			r.kilnC = s.Reading.ProbeC
			r.kilnKnown = s.Valid
			r.internalC = s.Reading.InternalC
			if !c.d.Reader.Has(thermocouple.ChannelB) {
				r.housingC = s.Reading.InternalC
				r.housingKnown = s.Valid
			}
		case thermocouple.ChannelB:
			r.housingC = s.Reading.ProbeC
			r.housingKnown = s.Valid
		}
	}
	return r
}

func (c *Controller) noteFailure(ctx context.Context, now time.Time, s thermocouple.Sample) {
	kind := "masked"
	if s.Fault != nil {
		kind = s.Fault.Kind.String()
	}
	if c.d.Metrics != nil {
		c.d.Metrics.SensorFault(s.Channel.String(), kind)
	}
	if s.Fault == nil {
		c.d.Log.Debugw("sensor_read_masked", "channel", s.Channel.String())
		return
	}
	if c.faulted[s.Channel] {
		return
	}
	c.faulted[s.Channel] = true
	c.d.Log.Warnw("sensor_fault", "channel", s.Channel.String(), "kind", kind, "count", s.Fault.Count, "error", s.Fault.Err)
	c.emit(ctx, models.KilnEvent{
		EventID:     uuid.NewString(),
		RunID:       c.d.Engine.RunID(),
		OccurredAt:  now,
		Type:        models.EventSensorFault,
		Description: s.Fault.Error(),
		Metadata: map[string]any{
			"channel":    s.Channel.String(),
			"kind":       kind,
			"error_code": s.Fault.Code().String(),
		},
	})
}

func (c *Controller) publish(ctx context.Context, now time.Time, events []models.KilnEvent) {
	for _, ev := range events {
		c.d.Log.Infow("run_event", "type", ev.Type, "run_id", ev.RunID, "description", ev.Description)
		c.emit(ctx, ev)
	}

	snap := c.d.Engine.Status()
	if c.d.Metrics != nil {
		c.d.Metrics.ObserveSnapshot(snap)
	}
	if len(events) == 0 && !c.lastPublish.IsZero() && now.Sub(c.lastPublish) < c.d.LogWindow {
		return
	}
	c.lastPublish = now
	if c.d.States != nil {
		if err := c.d.States.Save(ctx, snap); err != nil {
			c.d.Log.Errorw("state_save_failed", "error", err)
		}
	}
	if err := c.out.PublishStatus(snap); err != nil {
		c.d.Log.Warnw("mqtt_status_dropped", "error", err)
	}
}

func (c *Controller) emit(ctx context.Context, ev models.KilnEvent) {
	if c.d.Events != nil {
		if err := c.d.Events.Append(ctx, ev); err != nil {
			c.d.Log.Errorw("event_append_failed", "type", ev.Type, "error", err)
		}
	}
	if err := c.out.PublishEvent(ev); err != nil {
		c.d.Log.Warnw("mqtt_event_dropped", "type", ev.Type, "error", err)
	}
	if c.d.Metrics != nil {
		c.d.Metrics.ObserveEvent(ev)
	}
}
