package models

import "time"

// RunSnapshot is the read-only view of the run published once per tick.
type RunSnapshot struct {
	ID            int        `json:"id"`
	RunID         string     `json:"run_id,omitempty"`
	State         string     `json:"state"` // Ready | Running | Paused | Aborted | Ended | Waiting
	ProgramName   string     `json:"program_name,omitempty"`
	ProgramDesc   string     `json:"program_desc,omitempty"`
	SegmentIndex  int        `json:"segment_index"` // -1 before the first ramp
	SegmentCount  int        `json:"segment_count"`
	KilnTempC     float64    `json:"kiln_temp_c"`
	HousingTempC  float64    `json:"housing_temp_c"`
	InternalTempC float64    `json:"internal_temp_c"`
	SetpointC     float64    `json:"setpoint_c"`
	TargetTempC   float64    `json:"target_temp_c,omitempty"`
	StartTempC    float64    `json:"start_temp_c,omitempty"`
	Duty          float64    `json:"duty"`
	RelayOn       bool       `json:"relay_on"`
	AlarmOn       bool       `json:"alarm_on"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	ProjectedEnd  *time.Time `json:"projected_end,omitempty"`
	ElapsedSec    int        `json:"elapsed_sec"`
	ErrorCode     string     `json:"error_code,omitempty"`
	SensorErrors  []int      `json:"sensor_errors"` // consecutive read failures per channel
	UpdatedAt     time.Time  `json:"updated_at"`
}
