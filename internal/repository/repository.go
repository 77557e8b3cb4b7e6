package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"kiln_controller/internal/models"
)

// ErrProgramNotFound is returned when no stored program has the requested name.
var ErrProgramNotFound = errors.New("program not found")

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.Operator, error)
	GetByID(id int) (*models.Operator, error)
}

type StateRepo interface {
	Save(ctx context.Context, s models.RunSnapshot) error
	Load(ctx context.Context) (models.RunSnapshot, error)
}

// EventFilter narrows List. Zero fields are ignored.
type EventFilter struct {
	From  time.Time
	To    time.Time
	Type  string
	RunID string
	Limit int
}

type EventRepo interface {
	Append(ctx context.Context, e models.KilnEvent) error
	List(ctx context.Context, f EventFilter) ([]models.KilnEvent, error)
}

type ProgramRepo interface {
	List(ctx context.Context) ([]models.FiringProgram, error)
	Get(ctx context.Context, name string) (models.FiringProgram, error)
	Save(ctx context.Context, p models.FiringProgram) error
	Delete(ctx context.Context, name string) error
}

type Repository struct {
	StateRepo   StateRepo
	EventRepo   EventRepo
	ProgramRepo ProgramRepo
	Auth        Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		StateRepo:   NewStateSQLite(db),
		EventRepo:   NewEventSQLite(db),
		ProgramRepo: NewProgramSQLite(db),
		Auth:        NewOperatorRepository(db),
	}
}
