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

func TestProgramService_SaveValidates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		program  models.FiringProgram
		wantCode models.ErrorCode
	}{
		{
			name:    "valid",
			program: bisque,
		},
		{
			name:     "bad name",
			program:  models.FiringProgram{Name: "cone 6", Segments: bisque.Segments},
			wantCode: models.ErrInvalidChar,
		},
		{
			name:     "target over max",
			program:  models.FiringProgram{Name: "hot", Segments: []models.Segment{{TargetC: 1400}}},
			wantCode: models.ErrFileLoad,
		},
		{
			name:     "no segments",
			program:  models.FiringProgram{Name: "empty"},
			wantCode: models.ErrFileLoad,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			repo := newProgramRepoStub()
			svc := NewProgramService(repo, 1300)

			err := svc.Save(context.Background(), tc.program)
			if tc.wantCode == models.ErrNone {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				stored, ok := repo.programs[tc.program.Name]
				if !ok {
					t.Fatal("program not stored")
				}
				if stored.UpdatedAt.IsZero() {
					t.Error("UpdatedAt not stamped")
				}
				return
			}

			var pe *engine.ProgramError
			if !errors.As(err, &pe) || pe.Code != tc.wantCode {
				t.Fatalf("want code %s, got %v", tc.wantCode, err)
			}
			if len(repo.programs) != 0 {
				t.Fatal("invalid program must not be stored")
			}
		})
	}
}

func TestProgramService_GetAndDelete(t *testing.T) {
	t.Parallel()

	repo := newProgramRepoStub(bisque)
	svc := NewProgramService(repo, 1300)

	p, err := svc.Get(context.Background(), "bisque")
	if err != nil || p.Segments[1].Ramp != 3*time.Hour {
		t.Fatalf("Get: %+v, %v", p, err)
	}
	if err := svc.Delete(context.Background(), "bisque"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(context.Background(), "bisque"); !errors.Is(err, repository.ErrProgramNotFound) {
		t.Fatalf("want ErrProgramNotFound after delete, got %v", err)
	}
}
