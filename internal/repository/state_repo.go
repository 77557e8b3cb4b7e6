package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kiln_controller/internal/models"
)

type StateSQLite struct {
	db *sql.DB
}

func NewStateSQLite(db *sql.DB) *StateSQLite {
	return &StateSQLite{db: db}
}

const (
	runStateRowID = 1

	insertOrUpdateStateSQL = `
		INSERT INTO run_state (id, run_id, state, program_name, segment_index, kiln_c, setpoint_c, error_code, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			run_id=excluded.run_id,
			state=excluded.state,
			program_name=excluded.program_name,
			segment_index=excluded.segment_index,
			kiln_c=excluded.kiln_c,
			setpoint_c=excluded.setpoint_c,
			error_code=excluded.error_code,
			payload=excluded.payload,
			updated_at=excluded.updated_at
	`

	selectStateSQL = `
		SELECT id, payload, updated_at
		FROM run_state WHERE id=?
	`
)

// Save upserts the single run_state row. The indexed columns duplicate the
// fields most often queried by hand; payload holds the full snapshot.
func (r *StateSQLite) Save(ctx context.Context, s models.RunSnapshot) error {
	tsUTC := s.UpdatedAt
	if tsUTC.IsZero() {
		tsUTC = time.Now().UTC()
	} else {
		tsUTC = tsUTC.UTC()
	}
	s.UpdatedAt = tsUTC

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx, insertOrUpdateStateSQL,
		runStateRowID,
		s.RunID,
		s.State,
		s.ProgramName,
		s.SegmentIndex,
		s.KilnTempC,
		s.SetpointC,
		s.ErrorCode,
		string(payload),
		tsUTC,
	)
	if err != nil {
		return fmt.Errorf("save run state: %w", err)
	}
	return nil
}

// Load fetches the last saved snapshot. A missing row yields the zero value.
func (r *StateSQLite) Load(ctx context.Context) (models.RunSnapshot, error) {
	row := r.db.QueryRowContext(ctx, selectStateSQL, runStateRowID)

	var (
		id        int
		payload   string
		updatedAt time.Time
	)
	if err := row.Scan(&id, &payload, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.RunSnapshot{}, nil
		}
		return models.RunSnapshot{}, fmt.Errorf("load run state: %w", err)
	}

	var s models.RunSnapshot
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return models.RunSnapshot{}, fmt.Errorf("decode run state: %w", err)
	}
	s.ID = id
	s.UpdatedAt = updatedAt.UTC()
	return s, nil
}
