package models

// RunState is the lifecycle state of the single active firing run.
type RunState int

const (
	StateNone RunState = iota
	StateReady
	StateRunning
	StatePaused
	StateAborted
	StateEnded
	StateThreshold
)

var runStateNames = [...]string{"unknown", "Ready", "Running", "Paused", "Aborted", "Ended", "Waiting"}

func (s RunState) String() string {
	if s < 0 || int(s) >= len(runStateNames) {
		return "invalid"
	}
	return runStateNames[s]
}

// Heating reports whether the relay may be driven in this state.
func (s RunState) Heating() bool {
	return s == StateRunning || s == StatePaused || s == StateThreshold
}

// Terminal reports whether only cleanup can leave this state.
func (s RunState) Terminal() bool {
	return s == StateAborted || s == StateEnded
}

// AllRunStates lists every state in declaration order.
func AllRunStates() []RunState {
	return []RunState{StateNone, StateReady, StateRunning, StatePaused, StateAborted, StateEnded, StateThreshold}
}
