// Package mqtt publishes run events and periodic status to a broker.
package mqtt

import (
	"encoding/json"
	"time"

	"kiln_controller/internal/models"
)

// Topics.
const (
	TopicEvents       = "kiln/events"
	TopicStatus       = "kiln/status"
	TopicAvailability = "kiln/availability"
)

// Publisher publishes kiln events and status snapshots.
type Publisher interface {
	// PublishEvent sends a run lifecycle event (QoS 1).
	// Returns error if publishing fails; the control loop only logs it.
	PublishEvent(ev models.KilnEvent) error

	// PublishStatus sends a retained status snapshot (QoS 0).
	PublishStatus(s models.RunSnapshot) error

	// Close disconnects from the broker.
	Close() error
}

// EventPayload is the JSON body on TopicEvents.
type EventPayload struct {
	Kiln EventBody `json:"kiln"`
}

type EventBody struct {
	Timestamp   string `json:"timestamp"`
	EventID     string `json:"event_id"`
	RunID       string `json:"run_id,omitempty"`
	Event       string `json:"event"`
	Description string `json:"description"`
	Metadata    any    `json:"metadata,omitempty"`
}

// FormatEventPayload creates the JSON payload for an event.
func FormatEventPayload(ev models.KilnEvent) ([]byte, error) {
	return json.Marshal(EventPayload{
		Kiln: EventBody{
			Timestamp:   ev.OccurredAt.UTC().Format(time.RFC3339),
			EventID:     ev.EventID,
			RunID:       ev.RunID,
			Event:       ev.Type,
			Description: ev.Description,
			Metadata:    ev.Metadata,
		},
	})
}

// StatusPayload is the JSON body on TopicStatus.
type StatusPayload struct {
	Timestamp string             `json:"timestamp"`
	Status    models.RunSnapshot `json:"status"`
}

// FormatStatusPayload creates the JSON payload for a status snapshot.
func FormatStatusPayload(s models.RunSnapshot) ([]byte, error) {
	return json.Marshal(StatusPayload{
		Timestamp: s.UpdatedAt.UTC().Format(time.RFC3339),
		Status:    s,
	})
}

// Nop discards everything; used when no broker is configured.
type Nop struct{}

func (Nop) PublishEvent(models.KilnEvent) error    { return nil }
func (Nop) PublishStatus(models.RunSnapshot) error { return nil }
func (Nop) Close() error                           { return nil }
