package repository

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/CamiloRuizJ/rexeli/constants"
)

func newJobRepoWithMock(t *testing.T) (FineTuningJobRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	logger := slog.New(slog.DiscardHandler)
	return NewFineTuningJobRepository(db, logger), mock, func() { _ = db.Close() }
}

func jobRow(id string, status constants.FineTuningStatus) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "document_type", "status", "base_model", "training_file_id", "validation_file_id",
		"remote_job_id", "fine_tuned_model_id", "error_message", "infra_failure", "created_at", "updated_at",
	}).AddRow(
		id, "rent_roll", string(status), "gpt-4o-2024-08-06", "file-1", nil,
		"ftjob-remote", nil, "", false, now, now,
	)
}

func TestTransitionForward(t *testing.T) {
	repo, mock, done := newJobRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT (.+) FROM finetuning_jobs WHERE id").
		WithArgs("job-1").
		WillReturnRows(jobRow("job-1", constants.FineTuningUploading))
	mock.ExpectExec("UPDATE finetuning_jobs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	job, err := repo.Transition(context.Background(), "job-1", constants.FineTuningRunning, func(j *FineTuningJob) {
		j.RemoteJobID = "ftjob-new"
	})
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if job.Status != constants.FineTuningRunning {
		t.Fatalf("Status = %s, want running", job.Status)
	}
	if job.RemoteJobID != "ftjob-new" {
		t.Fatalf("RemoteJobID = %s, update callback not applied", job.RemoteJobID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTransitionSameStatusIsNoOp(t *testing.T) {
	repo, mock, done := newJobRepoWithMock(t)
	defer done()

	// No UPDATE expected: repeated polling of an unchanged remote status
	// must not touch the row.
	mock.ExpectQuery("SELECT (.+) FROM finetuning_jobs WHERE id").
		WithArgs("job-1").
		WillReturnRows(jobRow("job-1", constants.FineTuningRunning))

	job, err := repo.Transition(context.Background(), "job-1", constants.FineTuningRunning, nil)
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if job.Status != constants.FineTuningRunning {
		t.Fatalf("Status = %s", job.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTransitionBackwardRejected(t *testing.T) {
	repo, mock, done := newJobRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT (.+) FROM finetuning_jobs WHERE id").
		WithArgs("job-1").
		WillReturnRows(jobRow("job-1", constants.FineTuningSucceeded))

	_, err := repo.Transition(context.Background(), "job-1", constants.FineTuningRunning, nil)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("error = %v, want ErrInvalidTransition", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListNonTerminalFiltersByStatus(t *testing.T) {
	repo, mock, done := newJobRepoWithMock(t)
	defer done()

	mock.ExpectQuery(`SELECT (.+) FROM finetuning_jobs WHERE status NOT IN`).
		WithArgs("succeeded", "failed", "cancelled").
		WillReturnRows(jobRow("job-1", constants.FineTuningRunning))

	jobs, err := repo.ListNonTerminal(context.Background())
	if err != nil {
		t.Fatalf("ListNonTerminal() error = %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != "job-1" {
		t.Fatalf("jobs = %v, want the single running job", jobs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateDefaultsToPending(t *testing.T) {
	repo, mock, done := newJobRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO finetuning_jobs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &FineTuningJob{DocumentType: constants.RentRoll, BaseModel: "gpt-4o-2024-08-06"}
	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if job.Status != constants.FineTuningPending {
		t.Fatalf("Status = %s, want pending", job.Status)
	}
	if job.ID == "" {
		t.Fatal("Create must assign an id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
