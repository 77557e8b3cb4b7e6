package engine

import (
	"fmt"

	"kiln_controller/internal/models"
)

// Program limits enforced at load time.
const (
	MaxSegments       = 40
	MaxNameLen        = 20
	MaxDescriptionLen = 80
)

// ProgramError is a load-time validation failure. It never reaches a run.
type ProgramError struct {
	Code   models.ErrorCode
	Reason string
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func validName(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '.' || r == '_'
}

// Validate checks a program against the load-time limits. maxTempC <= 0 skips
// the target upper bound.
func Validate(p models.FiringProgram, maxTempC float64) error {
	if p.Name == "" {
		return &ProgramError{Code: models.ErrFileLoad, Reason: "program name is empty"}
	}
	if len(p.Name) > MaxNameLen {
		return &ProgramError{Code: models.ErrInvalidChar, Reason: fmt.Sprintf("program name longer than %d characters", MaxNameLen)}
	}
	for _, r := range p.Name {
		if !validName(r) {
			return &ProgramError{Code: models.ErrInvalidChar, Reason: fmt.Sprintf("program name contains %q", r)}
		}
	}
	if len(p.Description) > MaxDescriptionLen {
		return &ProgramError{Code: models.ErrLineTooLong, Reason: fmt.Sprintf("description longer than %d characters", MaxDescriptionLen)}
	}
	switch n := len(p.Segments); {
	case n == 0:
		return &ProgramError{Code: models.ErrFileLoad, Reason: "program has no segments"}
	case n > MaxSegments:
		return &ProgramError{Code: models.ErrFileLoad, Reason: fmt.Sprintf("program has %d segments, limit is %d", n, MaxSegments)}
	}
	for i, s := range p.Segments {
		if s.TargetC < 0 || (maxTempC > 0 && s.TargetC > maxTempC) {
			return &ProgramError{Code: models.ErrFileLoad, Reason: fmt.Sprintf("segment %d: target %.1f°C out of range", i, s.TargetC)}
		}
		if s.Ramp < 0 || s.Dwell < 0 {
			return &ProgramError{Code: models.ErrFileLoad, Reason: fmt.Sprintf("segment %d: negative duration", i)}
		}
	}
	return nil
}
