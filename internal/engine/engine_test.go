package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiln_controller/internal/models"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func program(segs ...models.Segment) models.FiringProgram {
	return models.FiringProgram{Name: "bisque_04", Description: "test firing", Segments: segs}
}

// tick mirrors one control-loop pass without hardware.
func tick(e *Engine, now time.Time, kilnC float64) float64 {
	e.ApplyCommands(now, kilnC)
	return e.Advance(now, kilnC)
}

func started(t *testing.T, cfg Config, p models.FiringProgram, kilnC float64) *Engine {
	t.Helper()
	e := New(cfg)
	require.NoError(t, e.Load(p))
	e.Start()
	tick(e, t0, kilnC)
	require.True(t, e.State().Heating())
	return e
}

func TestEngine_SingleSegmentScenario(t *testing.T) {
	e := started(t, Config{MaxTempC: 1300, ThresholdC: 5},
		program(models.Segment{TargetC: 100, Ramp: 10 * time.Minute, Dwell: 5 * time.Minute}), 20)

	kiln := 20.0
	for i := 1; i <= 15*60; i++ {
		now := t0.Add(time.Duration(i) * time.Second)
		sp := tick(e, now, kiln)
		kiln = sp

		switch i {
		case 5 * 60:
			assert.InDelta(t, 60, sp, 0.01)
			assert.Equal(t, models.StateRunning, e.State())
		case 10 * 60:
			assert.Equal(t, 100.0, sp)
			assert.Equal(t, phaseDwell, e.phase)
			assert.Equal(t, time.Duration(0), e.dwellDone)
		case 15*60 - 1:
			assert.Equal(t, models.StateRunning, e.State())
		}
	}
	assert.Equal(t, models.StateEnded, e.State())
	assert.Equal(t, 0, e.SegmentIndex())
}

func TestEngine_VisitsSegmentsInOrder(t *testing.T) {
	e := started(t, Config{MaxTempC: 1300}, program(
		models.Segment{TargetC: 100, Ramp: 2 * time.Second, Dwell: time.Second},
		models.Segment{TargetC: 600, Ramp: 3 * time.Second, Dwell: 2 * time.Second},
		models.Segment{TargetC: 200, Ramp: time.Second},
	), 20)

	last := e.SegmentIndex()
	for i := 1; i < 60 && e.State() != models.StateEnded; i++ {
		tick(e, t0.Add(time.Duration(i)*time.Second), e.Setpoint())
		assert.GreaterOrEqual(t, e.SegmentIndex(), last)
		last = e.SegmentIndex()
	}
	require.Equal(t, models.StateEnded, e.State())

	var visited []int
	for _, ev := range e.DrainEvents() {
		if ev.Type == models.EventSegmentAdvanced {
			visited = append(visited, ev.Metadata.(map[string]any)["segment"].(int))
		}
	}
	assert.Equal(t, []int{0, 1, 2}, visited)
}

func TestEngine_OneAdvancePerTick(t *testing.T) {
	e := started(t, Config{MaxTempC: 1300}, program(
		models.Segment{TargetC: 100},
		models.Segment{TargetC: 200},
		models.Segment{TargetC: 300},
	), 20)

	// the first tick enters segment 0 and may cross one boundary
	assert.Equal(t, 1, e.SegmentIndex())
	tick(e, t0.Add(time.Second), 200)
	assert.Equal(t, 2, e.SegmentIndex())
	assert.Equal(t, models.StateEnded, e.State())
}

func TestEngine_LaterSegmentsRampFromPreviousTarget(t *testing.T) {
	e := started(t, Config{MaxTempC: 1300}, program(
		models.Segment{TargetC: 100, Ramp: time.Second},
		models.Segment{TargetC: 300, Ramp: 100 * time.Second},
	), 20)

	tick(e, t0.Add(time.Second), 100) // segment 0 complete, enters 1
	require.Equal(t, 1, e.SegmentIndex())
	sp := tick(e, t0.Add(51*time.Second), 150)
	assert.InDelta(t, 200, sp, 0.01)
}

func TestEngine_PauseResumeWithoutTimeIsNoop(t *testing.T) {
	e := started(t, Config{MaxTempC: 1300}, program(
		models.Segment{TargetC: 500, Ramp: time.Hour, Dwell: time.Hour},
	), 20)

	now := t0.Add(10 * time.Minute)
	sp := tick(e, now, 100)
	seg, left := e.SegmentIndex(), e.remaining()

	e.Pause()
	e.Resume()
	got := tick(e, now, 100)

	assert.Equal(t, sp, got)
	assert.Equal(t, seg, e.SegmentIndex())
	assert.Equal(t, left, e.remaining())
	assert.Equal(t, models.StateRunning, e.State())
}

func TestEngine_PauseFreezesTimers(t *testing.T) {
	e := started(t, Config{MaxTempC: 1300}, program(
		models.Segment{TargetC: 620, Ramp: time.Hour},
	), 20)

	sp := tick(e, t0.Add(30*time.Minute), 300)
	assert.InDelta(t, 320, sp, 0.01)

	e.Pause()
	for i := 1; i <= 20; i++ {
		assert.Equal(t, sp, tick(e, t0.Add(30*time.Minute+time.Duration(i)*time.Minute), 300))
	}
	assert.Equal(t, models.StatePaused, e.State())
	assert.Equal(t, 30*time.Minute, e.Elapsed())

	e.Resume()
	tick(e, t0.Add(50*time.Minute), 300)
	sp = tick(e, t0.Add(65*time.Minute), 300)
	assert.InDelta(t, 470, sp, 0.01)
	assert.Equal(t, 45*time.Minute, e.Elapsed())
}

func TestEngine_ThresholdHoldsDwell(t *testing.T) {
	e := started(t, Config{MaxTempC: 1300, ThresholdC: 5}, program(
		models.Segment{TargetC: 100, Dwell: time.Minute},
	), 20)
	require.Equal(t, models.StateThreshold, e.State())

	for i := 1; i <= 10; i++ {
		tick(e, t0.Add(time.Duration(i)*time.Minute), 50)
	}
	assert.Equal(t, models.StateThreshold, e.State())
	assert.Equal(t, time.Duration(0), e.dwellDone)
	assert.Equal(t, 100.0, e.Setpoint())

	tick(e, t0.Add(11*time.Minute), 97)
	assert.Equal(t, models.StateRunning, e.State())
	tick(e, t0.Add(11*time.Minute+59*time.Second), 100)
	assert.Equal(t, models.StateRunning, e.State())
	tick(e, t0.Add(12*time.Minute), 100)
	assert.Equal(t, models.StateEnded, e.State())

	waits := 0
	for _, ev := range e.DrainEvents() {
		if ev.Type == models.EventThresholdWait {
			waits++
		}
	}
	assert.Equal(t, 1, waits)
}

func TestEngine_ThresholdDisabled(t *testing.T) {
	e := started(t, Config{MaxTempC: 1300}, program(
		models.Segment{TargetC: 100, Dwell: time.Minute},
	), 20)
	assert.Equal(t, models.StateRunning, e.State())
	tick(e, t0.Add(time.Minute), 20)
	assert.Equal(t, models.StateEnded, e.State())
}

func TestEngine_ErrorLatchesOnce(t *testing.T) {
	e := started(t, Config{MaxTempC: 1300}, program(
		models.Segment{TargetC: 500, Ramp: time.Hour},
	), 20)

	assert.True(t, e.Fail(t0.Add(time.Second), models.ErrOverTemp))
	assert.False(t, e.Fail(t0.Add(2*time.Second), models.ErrUnderTemp))

	e.Resume()
	e.Start()
	e.Abort("again")
	for i := 3; i < 10; i++ {
		tick(e, t0.Add(time.Duration(i)*time.Second), 20)
	}
	assert.Equal(t, models.StateAborted, e.State())
	assert.Equal(t, models.ErrOverTemp, e.ErrorCode())
}

func TestEngine_UserAbortWinsInSameTick(t *testing.T) {
	e := started(t, Config{MaxTempC: 1300}, program(
		models.Segment{TargetC: 500, Ramp: time.Hour},
	), 20)
	sp := tick(e, t0.Add(time.Minute), 25)

	e.Abort("")
	ch := e.ApplyCommands(t0.Add(2*time.Minute), 30)
	assert.True(t, ch.Aborted)
	assert.Equal(t, sp, e.Advance(t0.Add(2*time.Minute), 30))
	assert.Equal(t, models.ErrUserAbort, e.ErrorCode())
}

func TestEngine_InapplicableCommandsAreNoops(t *testing.T) {
	e := New(Config{MaxTempC: 1300})

	e.Pause()
	e.Resume()
	e.Start()
	e.Abort("nothing to abort")
	e.Cleanup()
	assert.Equal(t, Changes{}, e.ApplyCommands(t0, 20))
	assert.Equal(t, models.StateNone, e.State())
	assert.Empty(t, e.DrainEvents())

	require.NoError(t, e.Load(program(models.Segment{TargetC: 100, Ramp: time.Hour})))
	e.Pause()
	e.Cleanup()
	e.ApplyCommands(t0, 20)
	assert.Equal(t, models.StateReady, e.State())

	e.Start()
	e.Start()
	e.Resume()
	e.Cleanup()
	ch := e.ApplyCommands(t0, 20)
	assert.True(t, ch.Started)
	assert.Equal(t, models.StateRunning, e.State())
	assert.Equal(t, -1, e.SegmentIndex())
}

func TestEngine_CleanupFromTerminalStates(t *testing.T) {
	for _, abort := range []bool{false, true} {
		e := started(t, Config{MaxTempC: 1300}, program(models.Segment{TargetC: 100, Dwell: time.Second}), 100)
		if abort {
			e.Fail(t0, models.ErrHousingOverTemp)
		} else {
			tick(e, t0.Add(time.Second), 100)
		}
		require.True(t, e.State().Terminal())

		e.Cleanup()
		ch := e.ApplyCommands(t0.Add(time.Minute), 100)
		assert.True(t, ch.Cleaned)
		assert.Equal(t, models.StateNone, e.State())
		assert.Equal(t, -1, e.SegmentIndex())
		assert.Equal(t, models.ErrNone, e.ErrorCode())
		assert.Nil(t, e.program)

		e.Record(t0.Add(time.Minute), Telemetry{KilnC: 100})
		st := e.Status()
		assert.Equal(t, "unknown", st.State)
		assert.Empty(t, st.ProgramName)
		assert.Empty(t, st.ErrorCode)
	}
}

func TestEngine_RunCopyIsIndependent(t *testing.T) {
	p := program(models.Segment{TargetC: 100, Ramp: time.Hour})
	e := New(Config{MaxTempC: 1300})
	require.NoError(t, e.Load(p))
	p.Segments[0].TargetC = 1250
	e.ApplyCommands(t0, 20)

	assert.Equal(t, 100.0, e.program.Segments[0].TargetC)
}

func TestEngine_StatusETA(t *testing.T) {
	p := program(
		models.Segment{TargetC: 100, Ramp: 10 * time.Minute, Dwell: 5 * time.Minute},
		models.Segment{TargetC: 200, Ramp: 10 * time.Minute, Dwell: 5 * time.Minute},
	)
	e := started(t, Config{MaxTempC: 1300}, p, 20)
	e.Record(t0, Telemetry{KilnC: 20, SensorErrors: []int{0, 0}})

	st := e.Status()
	require.NotNil(t, st.ProjectedEnd)
	assert.Equal(t, t0.Add(30*time.Minute), *st.ProjectedEnd)
	assert.Equal(t, 2, st.SegmentCount)
	assert.Equal(t, "bisque_04", st.ProgramName)

	now := t0.Add(12 * time.Minute)
	tick(e, now, 100)
	e.Record(now, Telemetry{KilnC: 100})
	st = e.Status()
	assert.Equal(t, now.Add(18*time.Minute), *st.ProjectedEnd)
	assert.Equal(t, 100.0, st.TargetTempC)
}

func TestValidate(t *testing.T) {
	seg := models.Segment{TargetC: 100, Ramp: time.Minute}
	many := make([]models.Segment, MaxSegments+1)
	for i := range many {
		many[i] = seg
	}

	cases := []struct {
		name string
		p    models.FiringProgram
		code models.ErrorCode
	}{
		{"empty name", models.FiringProgram{Segments: []models.Segment{seg}}, models.ErrFileLoad},
		{"bad char", models.FiringProgram{Name: "glaze 6", Segments: []models.Segment{seg}}, models.ErrInvalidChar},
		{"long name", models.FiringProgram{Name: "abcdefghijklmnopqrstu", Segments: []models.Segment{seg}}, models.ErrInvalidChar},
		{"long description", models.FiringProgram{Name: "g", Description: string(make([]byte, 81)), Segments: []models.Segment{seg}}, models.ErrLineTooLong},
		{"no segments", models.FiringProgram{Name: "g"}, models.ErrFileLoad},
		{"too many segments", models.FiringProgram{Name: "g", Segments: many}, models.ErrFileLoad},
		{"over max", models.FiringProgram{Name: "g", Segments: []models.Segment{{TargetC: 1400}}}, models.ErrFileLoad},
		{"negative target", models.FiringProgram{Name: "g", Segments: []models.Segment{{TargetC: -1}}}, models.ErrFileLoad},
		{"negative dwell", models.FiringProgram{Name: "g", Segments: []models.Segment{{TargetC: 10, Dwell: -time.Second}}}, models.ErrFileLoad},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.p, 1300)
			var pe *ProgramError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tc.code, pe.Code)
		})
	}

	assert.NoError(t, Validate(models.FiringProgram{Name: "Cone_6.v2", Segments: many[:MaxSegments]}, 1300))
}

func TestEngine_LoadRejectsInvalid(t *testing.T) {
	e := New(Config{MaxTempC: 1000})
	err := e.Load(program(models.Segment{TargetC: 1100}))
	assert.Error(t, err)
	e.ApplyCommands(t0, 20)
	assert.Equal(t, models.StateNone, e.State())
}

func TestEngine_StartHeldWithoutReading(t *testing.T) {
	e := New(Config{MaxTempC: 1300})
	require.NoError(t, e.Load(program(models.Segment{TargetC: 600, Ramp: 6 * time.Hour})))
	e.Start()

	ch := e.ApplyCommandsUnread(t0)
	assert.True(t, ch.Loaded)
	assert.True(t, ch.StartHeld)
	assert.False(t, ch.Started)
	assert.Equal(t, models.StateReady, e.State())

	ch = e.ApplyCommandsUnread(t0.Add(time.Second))
	assert.True(t, ch.StartHeld)
	assert.Equal(t, models.StateReady, e.State())

	ch = e.ApplyCommands(t0.Add(2*time.Second), 23.5)
	assert.True(t, ch.Started)
	assert.False(t, ch.StartHeld)
	assert.Equal(t, models.StateRunning, e.State())
	assert.InDelta(t, 23.5, e.Setpoint(), 1e-9)

	var startTemp any
	for _, ev := range e.DrainEvents() {
		if ev.Type == models.EventStarted {
			startTemp = ev.Metadata.(map[string]any)["start_temp_c"]
		}
	}
	assert.Equal(t, 23.5, startTemp)
}

func TestEngine_AbortDropsHeldStart(t *testing.T) {
	e := New(Config{MaxTempC: 1300})
	require.NoError(t, e.Load(program(models.Segment{TargetC: 600, Ramp: 6 * time.Hour})))
	e.Start()
	e.Abort("operator changed their mind")

	ch := e.ApplyCommandsUnread(t0)
	assert.False(t, ch.StartHeld)

	ch = e.ApplyCommands(t0.Add(time.Second), 20)
	assert.False(t, ch.Started)
	assert.Equal(t, models.StateReady, e.State())
}
