package service

import (
	"context"
	"time"

	"kiln_controller/internal/models"
	"kiln_controller/internal/repository"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
	Authenticate(accessToken string) (*models.Operator, error)
	EnsureOperator(username, password string) (bool, error)
}

// Kiln exposes the run commands. Commands are queued for the control loop;
// a nil error means the command was accepted, not that it has taken effect.
type Kiln interface {
	Load(ctx context.Context, name string) error
	LoadProgram(ctx context.Context, p models.FiringProgram) error
	Start(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Abort(ctx context.Context) error
	Cleanup(ctx context.Context) error
	AcknowledgeAlarm(ctx context.Context) error
}

// Monitoring exposes the live run snapshot.
type Monitoring interface {
	GetState(ctx context.Context) (models.RunSnapshot, error)
	CheckInterrupted(ctx context.Context) (*models.RunSnapshot, error)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.KilnEvent, error)
}

// Programs manages the stored firing programs.
type Programs interface {
	List(ctx context.Context) ([]models.FiringProgram, error)
	Get(ctx context.Context, name string) (models.FiringProgram, error)
	Save(ctx context.Context, p models.FiringProgram) error
	Delete(ctx context.Context, name string) error
}

// LogFilter supports history filtering by time range, type and run.
type LogFilter struct {
	From  time.Time // inclusive; zero means no lower bound
	To    time.Time // inclusive; zero means no upper bound
	Type  string    // "", "STARTED", "ABORTED", "SEGMENT_ADVANCED", ...
	RunID string
	Limit int
}

type Service struct {
	Kiln
	Monitoring
	EventLog
	Programs
	Authorization
}

// Deps are the runtime pieces the services sit on top of.
type Deps struct {
	Commands Commander
	Console  Console
	MaxTempC float64
	Auth     AuthConfig
}

func NewService(repos *repository.Repository, d Deps) *Service {
	programs := NewProgramService(repos.ProgramRepo, d.MaxTempC)
	return &Service{
		Kiln:          NewKilnService(d.Commands, d.Console, programs),
		Monitoring:    NewMonitoringService(d.Console, repos.StateRepo, repos.EventRepo),
		EventLog:      NewEventLogService(repos.EventRepo),
		Programs:      programs,
		Authorization: NewAuthService(repos.Auth, d.Auth),
	}
}
