package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Segment is one ramp+dwell step of a firing program.
type Segment struct {
	TargetC float64       // °C
	Ramp    time.Duration // time to reach TargetC; 0 means as fast as possible
	Dwell   time.Duration // hold time at TargetC
}

// segmentJSON carries durations as Go duration strings ("1h30m").
type segmentJSON struct {
	TargetC float64 `json:"target_c"`
	Ramp    string  `json:"ramp"`
	Dwell   string  `json:"dwell"`
}

func (s Segment) MarshalJSON() ([]byte, error) {
	return json.Marshal(segmentJSON{TargetC: s.TargetC, Ramp: s.Ramp.String(), Dwell: s.Dwell.String()})
}

func (s *Segment) UnmarshalJSON(b []byte) error {
	var raw segmentJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	ramp, err := parseDuration(raw.Ramp)
	if err != nil {
		return fmt.Errorf("ramp: %w", err)
	}
	dwell, err := parseDuration(raw.Dwell)
	if err != nil {
		return fmt.Errorf("dwell: %w", err)
	}
	*s = Segment{TargetC: raw.TargetC, Ramp: ramp, Dwell: dwell}
	return nil
}

func parseDuration(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	return time.ParseDuration(v)
}

// FiringProgram is a named, ordered list of segments.
type FiringProgram struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Segments    []Segment `json:"segments"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// Clone returns a deep copy that shares no memory with p.
func (p FiringProgram) Clone() FiringProgram {
	out := p
	if p.Segments != nil {
		out.Segments = make([]Segment, len(p.Segments))
		copy(out.Segments, p.Segments)
	}
	return out
}

// TotalDuration is the sum of all ramp and dwell times.
func (p FiringProgram) TotalDuration() time.Duration {
	var d time.Duration
	for _, s := range p.Segments {
		d += s.Ramp + s.Dwell
	}
	return d
}
