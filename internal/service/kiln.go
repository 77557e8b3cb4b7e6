package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"kiln_controller/internal/models"
)

// ErrCommandNotApplicable is returned when the run state cannot accept a command.
var ErrCommandNotApplicable = errors.New("command not applicable in current state")

// Commander is the queued command surface of the program engine.
type Commander interface {
	Load(p models.FiringProgram) error
	Start()
	Pause()
	Resume()
	Abort(reason string)
	Cleanup()
}

// Console is the read side of the control loop.
type Console interface {
	Status() models.RunSnapshot
	AcknowledgeAlarm()
}

// states each command is accepted in, by display name
var applicable = map[string][]string{
	"load":    {models.StateNone.String(), models.StateReady.String()},
	"start":   {models.StateReady.String()},
	"pause":   {models.StateRunning.String(), models.StateThreshold.String()},
	"resume":  {models.StatePaused.String()},
	"abort":   {models.StateRunning.String(), models.StatePaused.String(), models.StateThreshold.String()},
	"cleanup": {models.StateAborted.String(), models.StateEnded.String()},
}

type KilnService struct {
	cmd      Commander
	console  Console
	programs Programs
}

func NewKilnService(cmd Commander, console Console, programs Programs) *KilnService {
	return &KilnService{cmd: cmd, console: console, programs: programs}
}

// check rejects a command early using the last published snapshot. The engine
// re-checks when the command is applied, so a race only turns it into a no-op.
func (s *KilnService) check(cmd string) error {
	state := s.console.Status().State
	if !slices.Contains(applicable[cmd], state) {
		return fmt.Errorf("%s while %s: %w", cmd, state, ErrCommandNotApplicable)
	}
	return nil
}

// Load fetches a stored program and queues it.
func (s *KilnService) Load(ctx context.Context, name string) error {
	p, err := s.programs.Get(ctx, name)
	if err != nil {
		return err
	}
	return s.LoadProgram(ctx, p)
}

// LoadProgram validates p and queues it.
func (s *KilnService) LoadProgram(_ context.Context, p models.FiringProgram) error {
	if err := s.check("load"); err != nil {
		return err
	}
	return s.cmd.Load(p)
}

func (s *KilnService) Start(context.Context) error {
	if err := s.check("start"); err != nil {
		return err
	}
	s.cmd.Start()
	return nil
}

func (s *KilnService) Pause(context.Context) error {
	if err := s.check("pause"); err != nil {
		return err
	}
	s.cmd.Pause()
	return nil
}

func (s *KilnService) Resume(context.Context) error {
	if err := s.check("resume"); err != nil {
		return err
	}
	s.cmd.Resume()
	return nil
}

func (s *KilnService) Abort(context.Context) error {
	if err := s.check("abort"); err != nil {
		return err
	}
	s.cmd.Abort("aborted by operator")
	return nil
}

func (s *KilnService) Cleanup(context.Context) error {
	if err := s.check("cleanup"); err != nil {
		return err
	}
	s.cmd.Cleanup()
	return nil
}

func (s *KilnService) AcknowledgeAlarm(context.Context) error {
	s.console.AcknowledgeAlarm()
	return nil
}
