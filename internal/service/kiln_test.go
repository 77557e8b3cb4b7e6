package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"kiln_controller/internal/engine"
	"kiln_controller/internal/models"
	"kiln_controller/internal/repository"
)

// commanderStub records queued commands.
type commanderStub struct {
	loaded  []models.FiringProgram
	loadErr error
	calls   []string
}

func (c *commanderStub) Load(p models.FiringProgram) error {
	if c.loadErr != nil {
		return c.loadErr
	}
	c.loaded = append(c.loaded, p)
	c.calls = append(c.calls, "load")
	return nil
}
func (c *commanderStub) Start()              { c.calls = append(c.calls, "start") }
func (c *commanderStub) Pause()              { c.calls = append(c.calls, "pause") }
func (c *commanderStub) Resume()             { c.calls = append(c.calls, "resume") }
func (c *commanderStub) Abort(reason string) { c.calls = append(c.calls, "abort") }
func (c *commanderStub) Cleanup()            { c.calls = append(c.calls, "cleanup") }

// programRepoStub is an in-memory repository.ProgramRepo.
type programRepoStub struct {
	programs map[string]models.FiringProgram
	saveErr  error
}

func newProgramRepoStub(ps ...models.FiringProgram) *programRepoStub {
	r := &programRepoStub{programs: map[string]models.FiringProgram{}}
	for _, p := range ps {
		r.programs[p.Name] = p
	}
	return r
}

func (r *programRepoStub) List(context.Context) ([]models.FiringProgram, error) {
	var out []models.FiringProgram
	for _, p := range r.programs {
		out = append(out, p)
	}
	return out, nil
}

func (r *programRepoStub) Get(_ context.Context, name string) (models.FiringProgram, error) {
	p, ok := r.programs[name]
	if !ok {
		return models.FiringProgram{}, repository.ErrProgramNotFound
	}
	return p, nil
}

func (r *programRepoStub) Save(_ context.Context, p models.FiringProgram) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.programs[p.Name] = p
	return nil
}

func (r *programRepoStub) Delete(_ context.Context, name string) error {
	if _, ok := r.programs[name]; !ok {
		return repository.ErrProgramNotFound
	}
	delete(r.programs, name)
	return nil
}

var bisque = models.FiringProgram{
	Name:     "bisque",
	Segments: []models.Segment{{TargetC: 600, Ramp: 2 * time.Hour}, {TargetC: 1000, Ramp: 3 * time.Hour}},
}

func newKiln(state string) (*KilnService, *commanderStub, *consoleStub) {
	cmd := &commanderStub{}
	console := &consoleStub{snap: models.RunSnapshot{State: state}}
	programs := NewProgramService(newProgramRepoStub(bisque), 1300)
	return NewKilnService(cmd, console, programs), cmd, console
}

func TestKilnService_CommandsGatedByState(t *testing.T) {
	t.Parallel()

	type op func(*KilnService) error
	ops := map[string]op{
		"start":   func(s *KilnService) error { return s.Start(context.Background()) },
		"pause":   func(s *KilnService) error { return s.Pause(context.Background()) },
		"resume":  func(s *KilnService) error { return s.Resume(context.Background()) },
		"abort":   func(s *KilnService) error { return s.Abort(context.Background()) },
		"cleanup": func(s *KilnService) error { return s.Cleanup(context.Background()) },
	}

	cases := []struct {
		state string
		ok    []string
	}{
		{state: "unknown"},
		{state: "Ready", ok: []string{"start"}},
		{state: "Running", ok: []string{"pause", "abort"}},
		{state: "Waiting", ok: []string{"pause", "abort"}},
		{state: "Paused", ok: []string{"resume", "abort"}},
		{state: "Aborted", ok: []string{"cleanup"}},
		{state: "Ended", ok: []string{"cleanup"}},
	}

	for _, tc := range cases {
		for name, fn := range ops {
			want := false
			for _, o := range tc.ok {
				if o == name {
					want = true
				}
			}

			svc, cmd, _ := newKiln(tc.state)
			err := fn(svc)
			if want && err != nil {
				t.Errorf("%s while %s: unexpected error %v", name, tc.state, err)
			}
			if !want && !errors.Is(err, ErrCommandNotApplicable) {
				t.Errorf("%s while %s: want ErrCommandNotApplicable, got %v", name, tc.state, err)
			}
			if queued := len(cmd.calls) == 1; queued != want {
				t.Errorf("%s while %s: queued=%v want %v", name, tc.state, queued, want)
			}
		}
	}
}

func TestKilnService_LoadFromStore(t *testing.T) {
	t.Parallel()

	svc, cmd, _ := newKiln("unknown")

	if err := svc.Load(context.Background(), "bisque"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cmd.loaded) != 1 || cmd.loaded[0].Name != "bisque" {
		t.Fatalf("unexpected loaded programs: %+v", cmd.loaded)
	}

	if err := svc.Load(context.Background(), "missing"); !errors.Is(err, repository.ErrProgramNotFound) {
		t.Fatalf("want ErrProgramNotFound, got %v", err)
	}
}

func TestKilnService_LoadRejectedWhileRunning(t *testing.T) {
	t.Parallel()

	svc, cmd, _ := newKiln("Running")
	if err := svc.LoadProgram(context.Background(), bisque); !errors.Is(err, ErrCommandNotApplicable) {
		t.Fatalf("want ErrCommandNotApplicable, got %v", err)
	}
	if len(cmd.loaded) != 0 {
		t.Fatal("program must not be queued")
	}
}

func TestKilnService_LoadPropagatesValidation(t *testing.T) {
	t.Parallel()

	svc, cmd, _ := newKiln("Ready")
	cmd.loadErr = &engine.ProgramError{Code: models.ErrInvalidChar, Reason: "bad name"}

	err := svc.LoadProgram(context.Background(), models.FiringProgram{Name: "a b"})
	var pe *engine.ProgramError
	if !errors.As(err, &pe) || pe.Code != models.ErrInvalidChar {
		t.Fatalf("want ProgramError, got %v", err)
	}
}

func TestKilnService_AcknowledgeAlarmAlwaysAccepted(t *testing.T) {
	t.Parallel()

	svc, _, console := newKiln("Ended")
	if err := svc.AcknowledgeAlarm(context.Background()); err != nil {
		t.Fatalf("AcknowledgeAlarm: %v", err)
	}
	if console.acks != 1 {
		t.Fatalf("want 1 ack, got %d", console.acks)
	}
}
