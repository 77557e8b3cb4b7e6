package config

import (
	"fmt"
	"time"

	"kiln_controller/internal/actuator"
	"kiln_controller/internal/engine"
	"kiln_controller/internal/pid"
	"kiln_controller/internal/prefs"
	"kiln_controller/internal/safety"
	"kiln_controller/internal/thermocouple"
)

// Defaults applied when a preference is absent.
const (
	DefaultPIDWindow       = 5 * time.Second
	DefaultKp              = 0.05
	DefaultKi              = 0.0002
	DefaultKd              = 0.5
	DefaultLogWindow       = 30 * time.Second
	DefaultMinTempC        = 10.0
	DefaultMinTempGrace    = 10 * time.Minute
	DefaultMaxTempC        = 1350.0
	DefaultMaxHousingTempC = 130.0
	DefaultRunawayMinRiseC = 5.0
	DefaultAlarmTimeout    = 5 * time.Minute
	DefaultGraceCount      = 5
)

// Control is the typed run configuration derived from the preference store.
type Control struct {
	PID       pid.Config
	Safety    safety.Limits
	Reader    thermocouple.ReaderConfig
	Actuator  actuator.Config
	Engine    engine.Config
	LogWindow time.Duration
	AuthUser  string
	AuthPass  string
}

func ms(n int64) time.Duration  { return time.Duration(n) * time.Millisecond }
func sec(n int64) time.Duration { return time.Duration(n) * time.Second }

// BuildControl converts the store into component configs.
func BuildControl(s prefs.Store) (Control, error) {
	mode := pid.OnError
	if s.IntOr(prefs.KeyPIDPOE, 1) == 0 {
		mode = pid.OnMeasurement
	}
	window := ms(s.IntOr(prefs.KeyPIDWindow, DefaultPIDWindow.Milliseconds()))

	c := Control{
		PID: pid.Config{
			Kp:      s.FloatOr(prefs.KeyPIDKp, DefaultKp),
			Ki:      s.FloatOr(prefs.KeyPIDKi, DefaultKi),
			Kd:      s.FloatOr(prefs.KeyPIDKd, DefaultKd),
			Window:  window,
			Divider: int(s.IntOr(prefs.KeyPIDWindowDivider, 1)),
			Mode:    mode,
		},
		Safety: safety.Limits{
			MinTempC:               s.FloatOr(prefs.KeyMinTemp, DefaultMinTempC),
			MinTempGrace:           sec(s.IntOr(prefs.KeyMinTempGrace, int64(DefaultMinTempGrace.Seconds()))),
			MaxTempC:               s.FloatOr(prefs.KeyMaxTemp, DefaultMaxTempC),
			MaxHousingTempC:        s.FloatOr(prefs.KeyMaxHousingTemp, DefaultMaxHousingTempC),
			RunawayTimeout:         sec(s.IntOr(prefs.KeyThermalRunaway, 0)),
			RunawayMinRiseC:        s.FloatOr(prefs.KeyThermalRunawayMinRise, DefaultRunawayMinRiseC),
			RunawayDuringThreshold: s.IntOr(prefs.KeyRunawayDuringThreshold, 0) != 0,
		},
		Reader: thermocouple.ReaderConfig{
			GraceCount: int(s.IntOr(prefs.KeyErrorGraceCount, DefaultGraceCount)),
			ReadBudget: ms(s.IntOr(prefs.KeyReadBudget, thermocouple.DefaultReadBudget.Milliseconds())),
		},
		Actuator: actuator.Config{
			Window:       window,
			AlarmTimeout: sec(s.IntOr(prefs.KeyAlarmTimeout, int64(DefaultAlarmTimeout.Seconds()))),
		},
		LogWindow: sec(s.IntOr(prefs.KeyLogWindow, int64(DefaultLogWindow.Seconds()))),
		AuthUser:  s.StringOr(prefs.KeyAuthUser, ""),
		AuthPass:  s.StringOr(prefs.KeyAuthPass, ""),
	}
	c.Engine = engine.Config{
		MaxTempC:   c.Safety.MaxTempC,
		ThresholdC: s.FloatOr(prefs.KeyPIDTempThreshold, -1),
	}

	if err := c.PID.Validate(); err != nil {
		return Control{}, err
	}
	if c.Safety.MinTempC >= c.Safety.MaxTempC {
		return Control{}, fmt.Errorf("MIN_Temperature %.1f must be below MAX_Temperature %.1f", c.Safety.MinTempC, c.Safety.MaxTempC)
	}
	if c.LogWindow <= 0 {
		return Control{}, fmt.Errorf("LOG_Window must be positive")
	}
	return c, nil
}
