package actuator

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiln_controller/internal/gpio"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func newActuator(t *testing.T, cfg Config) (*Actuator, *gpio.FakeOutput, *gpio.FakeOutput) {
	t.Helper()
	relay, alarm := gpio.NewFakeOutput(), gpio.NewFakeOutput()
	a, err := New(cfg, relay, alarm)
	require.NoError(t, err)
	return a, relay, alarm
}

func TestNew_RejectsBadWindow(t *testing.T) {
	_, err := New(Config{}, nil, nil)
	assert.ErrorIs(t, err, ErrBadWindow)
}

func TestApply_TimeProportioning(t *testing.T) {
	a, relay, _ := newActuator(t, Config{Window: 10 * time.Second})

	var pattern []bool
	for i := 0; i < 20; i++ {
		require.NoError(t, a.Apply(t0.Add(time.Duration(i)*time.Second), 0.3))
		pattern = append(pattern, relay.On())
	}

	on := []bool{true, true, true, false, false, false, false, false, false, false}
	assert.Equal(t, append(on, on...), pattern)
	assert.Equal(t, 3*time.Second, a.Status().LastOnTime)
}

func TestApply_ClampsDuty(t *testing.T) {
	a, relay, _ := newActuator(t, Config{Window: 10 * time.Second})

	require.NoError(t, a.Apply(t0, 1.7))
	assert.Equal(t, 1.0, a.Status().Duty)
	require.NoError(t, a.Apply(t0.Add(9*time.Second), 1.7))
	assert.True(t, relay.On())

	require.NoError(t, a.Apply(t0.Add(10*time.Second), -0.2))
	assert.Equal(t, 0.0, a.Status().Duty)
	assert.False(t, relay.On())
}

func TestApply_OnTimeNeverExceedsWindow(t *testing.T) {
	window := 5 * time.Second
	a, _, _ := newActuator(t, Config{Window: window})
	rng := rand.New(rand.NewSource(7))

	now := t0
	for i := 0; i < 2000; i++ {
		now = now.Add(time.Duration(rng.Intn(1500)) * time.Millisecond)
		require.NoError(t, a.Apply(now, rng.Float64()*1.2))
		st := a.Status()
		assert.LessOrEqual(t, st.OnTime, window)
		assert.LessOrEqual(t, st.LastOnTime, window)
	}
}

func TestApply_ResyncsOnWindowBoundary(t *testing.T) {
	a, relay, _ := newActuator(t, Config{Window: 10 * time.Second})

	require.NoError(t, a.Apply(t0, 0.5))
	// a late tick lands 2s into the third window
	require.NoError(t, a.Apply(t0.Add(22*time.Second), 0.5))
	assert.True(t, relay.On())
	require.NoError(t, a.Apply(t0.Add(25*time.Second), 0.5))
	assert.False(t, relay.On())
	require.NoError(t, a.Apply(t0.Add(30*time.Second), 0.5))
	assert.True(t, relay.On())
}

func TestAbort_RelayOffAndAlarmCountdown(t *testing.T) {
	a, relay, alarm := newActuator(t, Config{Window: 10 * time.Second, AlarmTimeout: time.Minute})

	require.NoError(t, a.Apply(t0, 1))
	require.True(t, relay.On())

	require.NoError(t, a.Abort(t0.Add(time.Second)))
	assert.False(t, relay.On())
	assert.True(t, alarm.On())

	require.NoError(t, a.Apply(t0.Add(2*time.Second), 1))
	assert.False(t, relay.On(), "duty stays zero after abort")
	assert.True(t, alarm.On())

	require.NoError(t, a.Apply(t0.Add(61*time.Second), 1))
	assert.False(t, alarm.On())
	assert.False(t, a.Status().AlarmOn)
}

func TestAcknowledge_ClearsAlarmEarly(t *testing.T) {
	a, _, alarm := newActuator(t, Config{Window: 10 * time.Second, AlarmTimeout: time.Hour})

	require.NoError(t, a.Abort(t0))
	require.True(t, alarm.On())
	require.NoError(t, a.Acknowledge())
	assert.False(t, alarm.On())
	require.NoError(t, a.Acknowledge())
}

func TestAbort_NoAlarmWhenDisabled(t *testing.T) {
	a, relay, alarm := newActuator(t, Config{Window: 10 * time.Second})

	require.NoError(t, a.Abort(t0))
	assert.False(t, relay.On())
	assert.False(t, alarm.On())
}

func TestReset_AllowsHeatingAgain(t *testing.T) {
	a, relay, _ := newActuator(t, Config{Window: 10 * time.Second})

	require.NoError(t, a.Abort(t0))
	a.Reset()
	require.NoError(t, a.Apply(t0.Add(time.Second), 1))
	assert.True(t, relay.On())
}

func TestApply_ReportsRelayError(t *testing.T) {
	a, relay, _ := newActuator(t, Config{Window: 10 * time.Second})
	relay.SetError = errors.New("bus fault")

	assert.Error(t, a.Apply(t0, 1))
}

func TestClose_DrivesOutputsOff(t *testing.T) {
	a, relay, alarm := newActuator(t, Config{Window: 10 * time.Second, AlarmTimeout: time.Minute})
	require.NoError(t, a.Apply(t0, 1))
	require.NoError(t, a.Abort(t0))

	require.NoError(t, a.Close())
	assert.True(t, relay.Closed)
	assert.True(t, alarm.Closed)
	assert.False(t, relay.On())
	assert.False(t, alarm.On())
}

func TestClose_SharedOutputsReleasedOnce(t *testing.T) {
	relay, alarm := gpio.NewFakeOutput(), gpio.NewFakeOutput()
	sharedRelay, sharedAlarm := gpio.CloseOnce(relay), gpio.CloseOnce(alarm)
	a, err := New(Config{Window: 10 * time.Second}, sharedRelay, sharedAlarm)
	require.NoError(t, err)
	require.NoError(t, a.Apply(t0, 1))

	require.NoError(t, a.Close())
	// process teardown releases the same pins again
	require.NoError(t, sharedRelay.Close())
	require.NoError(t, sharedAlarm.Close())

	assert.Equal(t, 1, relay.Closes)
	assert.Equal(t, 1, alarm.Closes)
	assert.False(t, relay.On())
}
