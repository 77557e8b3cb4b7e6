package service

import (
	"context"
	"fmt"
	"time"

	"kiln_controller/internal/models"
	"kiln_controller/internal/repository"
)

type MonitoringService struct {
	console   Console
	stateRepo repository.StateRepo
	eventRepo repository.EventRepo
}

func NewMonitoringService(console Console, stateRepo repository.StateRepo, eventRepo repository.EventRepo) *MonitoringService {
	return &MonitoringService{console: console, stateRepo: stateRepo, eventRepo: eventRepo}
}

// GetState returns the snapshot published by the last control tick.
func (s *MonitoringService) GetState(context.Context) (models.RunSnapshot, error) {
	st := s.console.Status()
	st.UpdatedAt = toUTC(st.UpdatedAt)
	return st, nil
}

// CheckInterrupted inspects the persisted snapshot from the previous process.
// If it shows a run that was still heating, an INTERRUPTED event is logged
// and the stale snapshot is returned. The run itself is not resumed.
func (s *MonitoringService) CheckInterrupted(ctx context.Context) (*models.RunSnapshot, error) {
	last, err := s.stateRepo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load last state: %w", err)
	}
	if !heating(last.State) {
		return nil, nil
	}

	err = s.eventRepo.Append(ctx, models.KilnEvent{
		RunID:       last.RunID,
		OccurredAt:  time.Now().UTC(),
		Type:        models.EventInterrupted,
		Description: fmt.Sprintf("run of %s interrupted by restart", last.ProgramName),
		Metadata: map[string]any{
			"program":       last.ProgramName,
			"segment_index": last.SegmentIndex,
			"kiln_temp_c":   last.KilnTempC,
			"last_seen":     toUTC(last.UpdatedAt),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("append interrupted event: %w", err)
	}
	return &last, nil
}

func heating(state string) bool {
	switch state {
	case models.StateRunning.String(), models.StatePaused.String(), models.StateThreshold.String():
		return true
	}
	return false
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
