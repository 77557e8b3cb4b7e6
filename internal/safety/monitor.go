// Package safety decides whether a firing run must be aborted.
package safety

import (
	"time"

	"kiln_controller/internal/models"
)

// Limits are the configured safety bounds.
type Limits struct {
	MinTempC        float64
	MinTempGrace    time.Duration // under-temperature is ignored this long after run start
	MaxTempC        float64
	MaxHousingTempC float64

	RunawayTimeout         time.Duration // 0 disables runaway detection
	RunawayMinRiseC        float64       // required rise over one RunawayTimeout window
	NearMaxDuty            float64       // duty treated as "full power"
	RunawayDuringThreshold bool          // keep the runaway window open while waiting for target
}

// DefaultNearMaxDuty is used when Limits.NearMaxDuty is unset.
const DefaultNearMaxDuty = 0.95

// Input is one accepted temperature sample with run context.
type Input struct {
	Now          time.Time
	KilnC        float64
	HousingC     float64
	HousingKnown bool
	Elapsed      time.Duration // since run start
	Duty         float64       // duty commanded on the previous tick
	Waiting      bool          // engine is in the Threshold state
	Faults       []models.ErrorCode
}

// Monitor evaluates samples against Limits and latches the first failure.
type Monitor struct {
	limits Limits

	latched models.ErrorCode

	runawayArmed bool
	runawayStart time.Time
	runawayTemp  float64
}

// NewMonitor creates a monitor.
func NewMonitor(l Limits) *Monitor {
	if l.NearMaxDuty <= 0 || l.NearMaxDuty > 1 {
		l.NearMaxDuty = DefaultNearMaxDuty
	}
	return &Monitor{limits: l}
}

// Limits returns the active limits.
func (m *Monitor) Limits() Limits { return m.limits }

// Configure replaces the limits. Callers only do this between runs.
func (m *Monitor) Configure(l Limits) {
	if l.NearMaxDuty <= 0 || l.NearMaxDuty > 1 {
		l.NearMaxDuty = DefaultNearMaxDuty
	}
	m.limits = l
	m.disarmRunaway()
}

// Latched returns the latched error, if any.
func (m *Monitor) Latched() (models.ErrorCode, bool) {
	return m.latched, m.latched != models.ErrNone
}

// Evaluate checks in priority order: channel faults, over-temperature,
// under-temperature (after the grace period), housing over-temperature and
// thermal runaway. Once a code is latched it is returned unchanged and the
// monitor does nothing else until Reset.
func (m *Monitor) Evaluate(in Input) (models.ErrorCode, bool) {
	if m.latched != models.ErrNone {
		return m.latched, true
	}
	if code, ok := m.check(in); ok {
		m.latched = code
		m.disarmRunaway()
		return code, true
	}
	return models.ErrNone, false
}

func (m *Monitor) check(in Input) (models.ErrorCode, bool) {
	if len(in.Faults) > 0 {
		return in.Faults[0], true
	}
	l := m.limits
	if in.KilnC > l.MaxTempC {
		return models.ErrOverTemp, true
	}
	if in.Elapsed >= l.MinTempGrace && in.KilnC < l.MinTempC {
		return models.ErrUnderTemp, true
	}
	if in.HousingKnown && l.MaxHousingTempC > 0 && in.HousingC > l.MaxHousingTempC {
		return models.ErrHousingOverTemp, true
	}
	if m.runaway(in) {
		return models.ErrThermalRunaway, true
	}
	return models.ErrNone, false
}

// runaway tracks a window that opens when duty reaches NearMaxDuty. If the
// window lasts RunawayTimeout without the kiln rising RunawayMinRiseC it
// reports runaway; otherwise the window slides forward.
func (m *Monitor) runaway(in Input) bool {
	l := m.limits
	if l.RunawayTimeout <= 0 {
		return false
	}
	if in.Duty < l.NearMaxDuty || (in.Waiting && !l.RunawayDuringThreshold) {
		m.disarmRunaway()
		return false
	}
	if !m.runawayArmed {
		m.runawayArmed = true
		m.runawayStart = in.Now
		m.runawayTemp = in.KilnC
		return false
	}
	if in.Now.Sub(m.runawayStart) < l.RunawayTimeout {
		return false
	}
	if in.KilnC-m.runawayTemp < l.RunawayMinRiseC {
		return true
	}
	m.runawayStart = in.Now
	m.runawayTemp = in.KilnC
	return false
}

func (m *Monitor) disarmRunaway() {
	m.runawayArmed = false
	m.runawayStart = time.Time{}
	m.runawayTemp = 0
}

// Reset clears the latch and runaway tracking for a new run.
func (m *Monitor) Reset() {
	m.latched = models.ErrNone
	m.disarmRunaway()
}
