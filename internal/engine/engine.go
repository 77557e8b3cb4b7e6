// Package engine sequences a firing program through its ramp and dwell
// segments and owns the single run state.
//
// Commands (Load, Start, Pause, Resume, Abort, Cleanup) may be called from any
// goroutine; they are queued and applied by the control loop at the start of
// its next tick via ApplyCommands. Every other method belongs to the loop.
package engine

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"kiln_controller/internal/models"
)

// Config holds the run-wide engine settings.
type Config struct {
	MaxTempC   float64 // upper bound for segment targets at load time
	ThresholdC float64 // tolerance before dwell starts; <= 0 disables waiting
}

type commandKind int

const (
	cmdLoad commandKind = iota
	cmdStart
	cmdPause
	cmdResume
	cmdAbort
	cmdCleanup
)

type command struct {
	kind    commandKind
	program models.FiringProgram
	reason  string
}

type phase int

const (
	phaseRamp phase = iota
	phaseWait
	phaseDwell
)

// Changes reports which lifecycle transitions ApplyCommands performed.
type Changes struct {
	Loaded  bool
	Started bool
	Aborted bool
	Cleaned bool

	// StartHeld is set when a Start was kept queued for want of a reading.
	StartHeld bool
}

// Telemetry is the per-tick hardware view recorded into the snapshot.
type Telemetry struct {
	KilnC        float64
	HousingC     float64
	InternalC    float64
	Duty         float64
	RelayOn      bool
	AlarmOn      bool
	SensorErrors []int
}

// Engine is the program state machine.
type Engine struct {
	cfg Config

	mu       sync.Mutex
	pending  []command
	snapshot models.RunSnapshot

	// owned by the control loop
	state      models.RunState
	resumeTo   models.RunState
	program    *models.FiringProgram
	runID      string
	errorCode  models.ErrorCode
	startedAt  time.Time
	startTemp  float64
	lastTick   time.Time
	elapsed    time.Duration
	segIndex   int
	segStartC  float64
	phase      phase
	rampDone   time.Duration
	dwellDone  time.Duration
	setpoint   float64
	projectEnd time.Time
	events     []models.KilnEvent
}

// New creates an idle engine.
func New(cfg Config) *Engine {
	e := &Engine{cfg: cfg, segIndex: -1}
	e.snapshot = models.RunSnapshot{ID: 1, State: models.StateNone.String(), SegmentIndex: -1}
	return e
}

// Config returns the engine settings.
func (e *Engine) Config() Config { return e.cfg }

// Load validates p and queues it for the Ready transition. The engine keeps
// its own copy; later changes to p do not reach the run.
func (e *Engine) Load(p models.FiringProgram) error {
	if err := Validate(p, e.cfg.MaxTempC); err != nil {
		return err
	}
	e.enqueue(command{kind: cmdLoad, program: p.Clone()})
	return nil
}

func (e *Engine) Start()              { e.enqueue(command{kind: cmdStart}) }
func (e *Engine) Pause()              { e.enqueue(command{kind: cmdPause}) }
func (e *Engine) Resume()             { e.enqueue(command{kind: cmdResume}) }
func (e *Engine) Abort(reason string) { e.enqueue(command{kind: cmdAbort, reason: reason}) }
func (e *Engine) Cleanup()            { e.enqueue(command{kind: cmdCleanup}) }

func (e *Engine) enqueue(c command) {
	e.mu.Lock()
	e.pending = append(e.pending, c)
	e.mu.Unlock()
}

// ApplyCommands applies queued commands in arrival order. Commands that do not
// fit the current state are dropped.
func (e *Engine) ApplyCommands(now time.Time, kilnC float64) Changes {
	return e.apply(now, kilnC, true)
}

// ApplyCommandsUnread is ApplyCommands for a tick with no trusted kiln
// temperature. A Start stays queued for the next tick instead of beginning the
// run at an unknown temperature; a later Abort in the same batch drops it.
func (e *Engine) ApplyCommandsUnread(now time.Time) Changes {
	return e.apply(now, 0, false)
}

func (e *Engine) apply(now time.Time, kilnC float64, known bool) Changes {
	e.mu.Lock()
	queue := e.pending
	e.pending = nil
	e.mu.Unlock()

	var ch Changes
	for _, c := range queue {
		switch c.kind {
		case cmdLoad:
			if e.state != models.StateNone && e.state != models.StateReady {
				continue
			}
			prog := c.program
			e.program = &prog
			e.state = models.StateReady
			e.emit(now, models.EventLoaded, fmt.Sprintf("program %s loaded", prog.Name), map[string]any{
				"program":  prog.Name,
				"segments": len(prog.Segments),
			})
			ch.Loaded = true
		case cmdStart:
			if e.state != models.StateReady {
				continue
			}
			if !known {
				ch.StartHeld = true
				continue
			}
			e.begin(now, kilnC)
			ch.Started = true
		case cmdPause:
			if e.state != models.StateRunning && e.state != models.StateThreshold {
				continue
			}
			e.resumeTo = e.state
			e.state = models.StatePaused
			e.emit(now, models.EventPaused, "run paused", nil)
		case cmdResume:
			if e.state != models.StatePaused {
				continue
			}
			e.state = e.resumeTo
			e.lastTick = now
			e.emit(now, models.EventResumed, "run resumed", nil)
		case cmdAbort:
			ch.StartHeld = false
			reason := c.reason
			if reason == "" {
				reason = "aborted by user"
			}
			if e.abort(now, models.ErrUserAbort, reason) {
				ch.Aborted = true
			}
		case cmdCleanup:
			if !e.state.Terminal() {
				continue
			}
			e.emit(now, models.EventCleaned, "run cleaned up", nil)
			e.clear()
			ch.Cleaned = true
		}
	}
	if ch.StartHeld {
		e.mu.Lock()
		e.pending = append([]command{{kind: cmdStart}}, e.pending...)
		e.mu.Unlock()
	}
	return ch
}

func (e *Engine) begin(now time.Time, kilnC float64) {
	e.runID = uuid.NewString()
	e.state = models.StateRunning
	e.errorCode = models.ErrNone
	e.startedAt = now
	e.startTemp = kilnC
	e.lastTick = now
	e.elapsed = 0
	e.segIndex = -1
	e.segStartC = kilnC
	e.phase = phaseRamp
	e.rampDone = 0
	e.dwellDone = 0
	e.setpoint = kilnC
	e.projectEnd = now.Add(e.program.TotalDuration())
	e.emit(now, models.EventStarted, fmt.Sprintf("program %s started at %.1f°C", e.program.Name, kilnC), map[string]any{
		"program":      e.program.Name,
		"start_temp_c": kilnC,
	})
}

func (e *Engine) clear() {
	e.state = models.StateNone
	e.program = nil
	e.runID = ""
	e.errorCode = models.ErrNone
	e.startedAt = time.Time{}
	e.startTemp = 0
	e.lastTick = time.Time{}
	e.elapsed = 0
	e.segIndex = -1
	e.segStartC = 0
	e.phase = phaseRamp
	e.rampDone = 0
	e.dwellDone = 0
	e.setpoint = 0
	e.projectEnd = time.Time{}
}

// Fail aborts an active run with code. It reports whether the run was aborted
// by this call; a run that already ended or aborted keeps its first code.
func (e *Engine) Fail(now time.Time, code models.ErrorCode) bool {
	return e.abort(now, code, code.String())
}

func (e *Engine) abort(now time.Time, code models.ErrorCode, reason string) bool {
	if !e.state.Heating() {
		return false
	}
	e.state = models.StateAborted
	if e.errorCode == models.ErrNone {
		e.errorCode = code
	}
	e.emit(now, models.EventAborted, reason, map[string]any{
		"error_code": e.errorCode.String(),
		"segment":    e.segIndex,
	})
	return true
}

// Advance moves the run forward to now and returns the setpoint. While paused
// the setpoint and all timers are frozen. At most one segment boundary is
// crossed per call.
func (e *Engine) Advance(now time.Time, kilnC float64) float64 {
	if !e.state.Heating() {
		return e.setpoint
	}
	if e.state == models.StatePaused {
		e.lastTick = now
		return e.setpoint
	}

	dt := now.Sub(e.lastTick)
	if dt < 0 {
		dt = 0
	}
	e.lastTick = now
	e.elapsed += dt

	if e.segIndex < 0 {
		e.enterSegment(now, 0, e.startTemp)
	}
	e.step(now, dt, kilnC)
	e.projectEnd = now.Add(e.remaining())
	return e.setpoint
}

func (e *Engine) enterSegment(now time.Time, idx int, fromC float64) {
	e.segIndex = idx
	e.segStartC = fromC
	e.phase = phaseRamp
	e.rampDone = 0
	e.dwellDone = 0
	seg := e.program.Segments[idx]
	e.emit(now, models.EventSegmentAdvanced, fmt.Sprintf("segment %d: %.1f°C", idx, seg.TargetC), map[string]any{
		"segment":  idx,
		"target_c": seg.TargetC,
		"from_c":   fromC,
	})
}

func (e *Engine) step(now time.Time, dt time.Duration, kilnC float64) {
	carry := dt
	advanced := false
	for {
		seg := e.program.Segments[e.segIndex]
		switch e.phase {
		case phaseRamp:
			e.rampDone += carry
			if seg.Ramp > 0 && e.rampDone < seg.Ramp {
				frac := float64(e.rampDone) / float64(seg.Ramp)
				e.setpoint = e.segStartC + (seg.TargetC-e.segStartC)*frac
				return
			}
			carry = e.rampDone - seg.Ramp
			e.rampDone = seg.Ramp
			e.setpoint = seg.TargetC
			e.phase = phaseWait

		case phaseWait:
			if e.cfg.ThresholdC > 0 && math.Abs(kilnC-seg.TargetC) > e.cfg.ThresholdC {
				if e.state != models.StateThreshold {
					e.state = models.StateThreshold
					e.emit(now, models.EventThresholdWait, fmt.Sprintf("waiting for %.1f°C", seg.TargetC), map[string]any{
						"segment":  e.segIndex,
						"target_c": seg.TargetC,
						"kiln_c":   kilnC,
					})
				}
				return
			}
			if e.state == models.StateThreshold {
				e.state = models.StateRunning
				carry = 0
			}
			e.phase = phaseDwell

		case phaseDwell:
			e.dwellDone += carry
			carry = 0
			if e.dwellDone < seg.Dwell {
				return
			}
			if e.segIndex == len(e.program.Segments)-1 {
				e.dwellDone = seg.Dwell
				e.state = models.StateEnded
				e.emit(now, models.EventEnded, fmt.Sprintf("program %s finished", e.program.Name), map[string]any{
					"elapsed_sec": int(e.elapsed.Seconds()),
				})
				return
			}
			if advanced {
				e.dwellDone = seg.Dwell
				return
			}
			carry = e.dwellDone - seg.Dwell
			e.enterSegment(now, e.segIndex+1, seg.TargetC)
			advanced = true
		}
	}
}

// remaining is the best-effort time left: the unfinished part of the current
// segment plus every later segment.
func (e *Engine) remaining() time.Duration {
	if e.program == nil {
		return 0
	}
	if e.segIndex < 0 {
		return e.program.TotalDuration()
	}
	seg := e.program.Segments[e.segIndex]
	var d time.Duration
	switch e.phase {
	case phaseRamp:
		d = seg.Ramp - e.rampDone + seg.Dwell
	case phaseWait:
		d = seg.Dwell
	case phaseDwell:
		d = seg.Dwell - e.dwellDone
	}
	for _, s := range e.program.Segments[e.segIndex+1:] {
		d += s.Ramp + s.Dwell
	}
	if d < 0 {
		d = 0
	}
	return d
}

func (e *Engine) emit(now time.Time, typ, desc string, meta map[string]any) {
	ev := models.KilnEvent{
		EventID:     uuid.NewString(),
		RunID:       e.runID,
		OccurredAt:  now,
		Type:        typ,
		Description: desc,
	}
	if meta != nil {
		ev.Metadata = meta
	}
	e.events = append(e.events, ev)
}

// DrainEvents returns and clears the events produced since the last call.
func (e *Engine) DrainEvents() []models.KilnEvent {
	out := e.events
	e.events = nil
	return out
}

// State is the current run state.
func (e *Engine) State() models.RunState { return e.state }

// ErrorCode is the latched run error, if any.
func (e *Engine) ErrorCode() models.ErrorCode { return e.errorCode }

// SegmentIndex is -1 until the first ramp begins.
func (e *Engine) SegmentIndex() int { return e.segIndex }

// Setpoint is the last commanded setpoint.
func (e *Engine) Setpoint() float64 { return e.setpoint }

// Elapsed is the run time excluding pauses.
func (e *Engine) Elapsed() time.Duration { return e.elapsed }

// Waiting reports whether the run is holding for the segment target.
func (e *Engine) Waiting() bool { return e.state == models.StateThreshold }

// RunID identifies the current run; empty before start.
func (e *Engine) RunID() string { return e.runID }

// Record publishes this tick's snapshot for Status.
func (e *Engine) Record(now time.Time, t Telemetry) {
	s := models.RunSnapshot{
		ID:            1,
		RunID:         e.runID,
		State:         e.state.String(),
		SegmentIndex:  e.segIndex,
		KilnTempC:     t.KilnC,
		HousingTempC:  t.HousingC,
		InternalTempC: t.InternalC,
		SetpointC:     e.setpoint,
		StartTempC:    e.startTemp,
		Duty:          t.Duty,
		RelayOn:       t.RelayOn,
		AlarmOn:       t.AlarmOn,
		ElapsedSec:    int(e.elapsed.Seconds()),
		UpdatedAt:     now,
	}
	if e.errorCode != models.ErrNone {
		s.ErrorCode = e.errorCode.String()
	}
	if t.SensorErrors != nil {
		s.SensorErrors = append([]int(nil), t.SensorErrors...)
	}
	if e.program != nil {
		s.ProgramName = e.program.Name
		s.ProgramDesc = e.program.Description
		s.SegmentCount = len(e.program.Segments)
		if e.segIndex >= 0 {
			s.TargetTempC = e.program.Segments[e.segIndex].TargetC
		}
	}
	if !e.startedAt.IsZero() {
		started := e.startedAt
		s.StartedAt = &started
		end := e.projectEnd
		if e.state.Heating() {
			end = now.Add(e.remaining())
		}
		s.ProjectedEnd = &end
	}

	e.mu.Lock()
	e.snapshot = s
	e.mu.Unlock()
}

// Status returns the snapshot from the last Record. Safe from any goroutine.
func (e *Engine) Status() models.RunSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.snapshot
	if s.SensorErrors != nil {
		s.SensorErrors = append([]int(nil), s.SensorErrors...)
	}
	return s
}
