package models

import "time"

// Event types emitted by the program engine and the control loop.
const (
	EventLoaded          = "LOADED"
	EventStarted         = "STARTED"
	EventPaused          = "PAUSED"
	EventResumed         = "RESUMED"
	EventSegmentAdvanced = "SEGMENT_ADVANCED"
	EventThresholdWait   = "THRESHOLD_WAIT"
	EventEnded           = "ENDED"
	EventAborted         = "ABORTED"
	EventCleaned         = "CLEANED"
	EventSensorFault     = "SENSOR_FAULT"
	EventInterrupted     = "INTERRUPTED"
)

// KilnEvent is a single append-only log entry.
type KilnEvent struct {
	EventID     string    `json:"event_id"`
	RunID       string    `json:"run_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // STARTED | SEGMENT_ADVANCED | ENDED | ABORTED | ...
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
