package repository

import (
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"kiln_controller/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func newProgramRepo(t *testing.T) (*ProgramSQLite, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sqlmock expectations: %v", err)
		}
		_ = db.Close()
	})
	return NewProgramSQLite(db), mock
}

var programCols = []string{"name", "description", "segments", "updated_at"}

func TestProgramSQLite_Save(t *testing.T) {
	repo, mock := newProgramRepo(t)

	at := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	p := models.FiringProgram{
		Name:        "cone6",
		Description: "glaze",
		Segments: []models.Segment{
			{TargetC: 600, Ramp: 2 * time.Hour},
			{TargetC: 1222, Ramp: 4 * time.Hour, Dwell: 10 * time.Minute},
		},
		UpdatedAt: at,
	}

	mock.ExpectExec(regexp.QuoteMeta(upsertProgramSQL)).
		WithArgs("cone6", "glaze",
			`[{"target_c":600,"ramp":"2h0m0s","dwell":"0s"},{"target_c":1222,"ramp":"4h0m0s","dwell":"10m0s"}]`,
			at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Save(ctx(t), p); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestProgramSQLite_Save_ExecError(t *testing.T) {
	repo, mock := newProgramRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(upsertProgramSQL)).
		WillReturnError(errors.New("disk full"))

	err := repo.Save(ctx(t), models.FiringProgram{Name: "x", Segments: []models.Segment{{TargetC: 100}}})
	if err == nil || !contains(err.Error(), "save program") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestProgramSQLite_Get(t *testing.T) {
	tests := []struct {
		name       string
		mockExpect func(sqlmock.Sqlmock)
		wantErr    error
		wantSegs   int
	}{
		{
			name: "found",
			mockExpect: func(m sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(programCols).
					AddRow("bisque", "", `[{"target_c":100,"ramp":"1h","dwell":"0s"},{"target_c":1000,"ramp":"5h","dwell":"0s"}]`, time.Now())
				m.ExpectQuery(regexp.QuoteMeta(selectProgramSQL)).WithArgs("bisque").WillReturnRows(rows)
			},
			wantSegs: 2,
		},
		{
			name: "missing",
			mockExpect: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(selectProgramSQL)).WithArgs("bisque").WillReturnError(sql.ErrNoRows)
			},
			wantErr: ErrProgramNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newProgramRepo(t)
			tt.mockExpect(mock)

			p, err := repo.Get(ctx(t), "bisque")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("want err %v, got %v", tt.wantErr, err)
			}
			if len(p.Segments) != tt.wantSegs {
				t.Fatalf("want %d segments, got %d", tt.wantSegs, len(p.Segments))
			}
			if tt.wantSegs > 0 && p.Segments[1].Ramp != 5*time.Hour {
				t.Fatalf("unexpected ramp %s", p.Segments[1].Ramp)
			}
		})
	}
}

func TestProgramSQLite_Get_CorruptSegments(t *testing.T) {
	repo, mock := newProgramRepo(t)

	rows := sqlmock.NewRows(programCols).AddRow("bad", "", `[{"ramp":"later"}]`, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta(selectProgramSQL)).WithArgs("bad").WillReturnRows(rows)

	if _, err := repo.Get(ctx(t), "bad"); err == nil || errors.Is(err, ErrProgramNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestProgramSQLite_List(t *testing.T) {
	repo, mock := newProgramRepo(t)

	rows := sqlmock.NewRows(programCols).
		AddRow("a", "first", `[{"target_c":100,"ramp":"1h","dwell":"0s"}]`, time.Now()).
		AddRow("b", "second", `[]`, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta(selectProgramsSQL)).WillReturnRows(rows)

	got, err := repo.List(ctx(t))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].Name != "a" || got[1].Description != "second" {
		t.Fatalf("unexpected programs: %+v", got)
	}
}

func TestProgramSQLite_Delete(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		repo, mock := newProgramRepo(t)
		mock.ExpectExec(regexp.QuoteMeta(deleteProgramSQL)).WithArgs("a").WillReturnResult(sqlmock.NewResult(0, 1))

		if err := repo.Delete(ctx(t), "a"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		repo, mock := newProgramRepo(t)
		mock.ExpectExec(regexp.QuoteMeta(deleteProgramSQL)).WithArgs("a").WillReturnResult(sqlmock.NewResult(0, 0))

		if err := repo.Delete(ctx(t), "a"); !errors.Is(err, ErrProgramNotFound) {
			t.Fatalf("want ErrProgramNotFound, got %v", err)
		}
	})
}
