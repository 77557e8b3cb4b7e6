package service

import (
	"context"
	"time"

	"kiln_controller/internal/engine"
	"kiln_controller/internal/models"
	"kiln_controller/internal/repository"
)

type ProgramService struct {
	repo     repository.ProgramRepo
	maxTempC float64
}

func NewProgramService(repo repository.ProgramRepo, maxTempC float64) *ProgramService {
	return &ProgramService{repo: repo, maxTempC: maxTempC}
}

func (s *ProgramService) List(ctx context.Context) ([]models.FiringProgram, error) {
	return s.repo.List(ctx)
}

func (s *ProgramService) Get(ctx context.Context, name string) (models.FiringProgram, error) {
	return s.repo.Get(ctx, name)
}

// Save stores p after the same checks the engine applies at load time, so a
// stored program is always loadable.
func (s *ProgramService) Save(ctx context.Context, p models.FiringProgram) error {
	if err := engine.Validate(p, s.maxTempC); err != nil {
		return err
	}
	p.UpdatedAt = time.Now().UTC()
	return s.repo.Save(ctx, p)
}

func (s *ProgramService) Delete(ctx context.Context, name string) error {
	return s.repo.Delete(ctx, name)
}
