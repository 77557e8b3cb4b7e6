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

type ProgramSQLite struct {
	db *sql.DB
}

func NewProgramSQLite(db *sql.DB) *ProgramSQLite { return &ProgramSQLite{db: db} }

var _ ProgramRepo = (*ProgramSQLite)(nil)

const (
	upsertProgramSQL = `
		INSERT INTO programs (name, description, segments, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			description=excluded.description,
			segments=excluded.segments,
			updated_at=excluded.updated_at
	`
	selectProgramSQL  = `SELECT name, description, segments, updated_at FROM programs WHERE name = ?`
	selectProgramsSQL  = `SELECT name, description, segments, updated_at FROM programs ORDER BY name ASC`
	deleteProgramSQL  = `DELETE FROM programs WHERE name = ?`
)

type scanner interface {
	Scan(dest ...any) error
}

func scanProgram(s scanner) (models.FiringProgram, error) {
	var (
		p        models.FiringProgram
		segments string
	)
	if err := s.Scan(&p.Name, &p.Description, &segments, &p.UpdatedAt); err != nil {
		return models.FiringProgram{}, err
	}
	if err := json.Unmarshal([]byte(segments), &p.Segments); err != nil {
		return models.FiringProgram{}, fmt.Errorf("decode segments of %q: %w", p.Name, err)
	}
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

// List returns every stored program ordered by name.
func (r *ProgramSQLite) List(ctx context.Context) ([]models.FiringProgram, error) {
	rows, err := r.db.QueryContext(ctx, selectProgramsSQL)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	defer rows.Close()

	var out []models.FiringProgram
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ProgramSQLite) Get(ctx context.Context, name string) (models.FiringProgram, error) {
	p, err := scanProgram(r.db.QueryRowContext(ctx, selectProgramSQL, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.FiringProgram{}, ErrProgramNotFound
		}
		return models.FiringProgram{}, fmt.Errorf("select program %q: %w", name, err)
	}
	return p, nil
}

// Save inserts p or replaces the program with the same name.
func (r *ProgramSQLite) Save(ctx context.Context, p models.FiringProgram) error {
	segments, err := json.Marshal(p.Segments)
	if err != nil {
		return fmt.Errorf("encode segments of %q: %w", p.Name, err)
	}
	ts := p.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	if _, err := r.db.ExecContext(ctx, upsertProgramSQL, p.Name, p.Description, string(segments), ts.UTC()); err != nil {
		return fmt.Errorf("save program %q: %w", p.Name, err)
	}
	return nil
}

func (r *ProgramSQLite) Delete(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, deleteProgramSQL, name)
	if err != nil {
		return fmt.Errorf("delete program %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete program %q: %w", name, err)
	}
	if n == 0 {
		return ErrProgramNotFound
	}
	return nil
}
