package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/CamiloRuizJ/rexeli/constants"
	"github.com/CamiloRuizJ/rexeli/internal/common"
)

// ErrInvalidTransition rejects a status move the job state machine does
// not permit.
var ErrInvalidTransition = errors.New("invalid fine-tuning status transition")

// FineTuningJob is the local record of one remote training run.
type FineTuningJob struct {
	ID               string
	DocumentType     constants.DocumentType
	Status           constants.FineTuningStatus
	BaseModel        string
	TrainingFileID   string
	ValidationFileID string
	RemoteJobID      string
	FineTunedModelID string
	ErrorMessage     string
	// InfraFailure marks failures traced to the provider's moderation or
	// eval infrastructure rather than the training data.
	InfraFailure bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type FineTuningJobRepository interface {
	Create(ctx context.Context, job *FineTuningJob) error
	GetByID(ctx context.Context, id string) (*FineTuningJob, error)
	Transition(ctx context.Context, id string, next constants.FineTuningStatus, update func(*FineTuningJob)) (*FineTuningJob, error)
	ListByType(ctx context.Context, dt constants.DocumentType) ([]*FineTuningJob, error)
	ListNonTerminal(ctx context.Context) ([]*FineTuningJob, error)
}

type fineTuningJobRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewFineTuningJobRepository(db *sql.DB, logger *slog.Logger) FineTuningJobRepository {
	return &fineTuningJobRepo{db: db, log: logger}
}

const fineTuningJobColumns = `id, document_type, status, base_model, training_file_id, validation_file_id,
remote_job_id, fine_tuned_model_id, error_message, infra_failure, created_at, updated_at`

func (r *fineTuningJobRepo) Create(ctx context.Context, job *FineTuningJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = constants.FineTuningPending
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO finetuning_jobs (
	id, document_type, status, base_model, training_file_id, validation_file_id,
	remote_job_id, fine_tuned_model_id, error_message, infra_failure, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`,
		job.ID, string(job.DocumentType), string(job.Status), job.BaseModel,
		nullableString(job.TrainingFileID), nullableString(job.ValidationFileID),
		nullableString(job.RemoteJobID), nullableString(job.FineTunedModelID),
		job.ErrorMessage, job.InfraFailure, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert finetuning job: %w", err)
	}
	r.log.Info("finetuning_job.created", "job_id", job.ID, "type", string(job.DocumentType), "base_model", job.BaseModel)
	return nil
}

func (r *fineTuningJobRepo) GetByID(ctx context.Context, id string) (*FineTuningJob, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+fineTuningJobColumns+` FROM finetuning_jobs WHERE id = $1`, id)
	job, err := scanFineTuningJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("finetuning job %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("get finetuning job: %w", err)
	}
	return job, nil
}

// Transition advances a job through the forward-only state machine,
// applying update to the in-memory record before persisting. A no-op
// transition to the current terminal status is allowed so polling stays
// idempotent.
func (r *fineTuningJobRepo) Transition(ctx context.Context, id string, next constants.FineTuningStatus, update func(*FineTuningJob)) (*FineTuningJob, error) {
	job, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if job.Status == next {
		return job, nil
	}
	if !job.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, next)
	}

	job.Status = next
	if update != nil {
		update(job)
	}
	job.UpdatedAt = time.Now().UTC()

	_, err = r.db.ExecContext(ctx, `
UPDATE finetuning_jobs
SET status = $2, training_file_id = $3, validation_file_id = $4, remote_job_id = $5,
    fine_tuned_model_id = $6, error_message = $7, infra_failure = $8, updated_at = $9
WHERE id = $1
`,
		job.ID, string(job.Status),
		nullableString(job.TrainingFileID), nullableString(job.ValidationFileID),
		nullableString(job.RemoteJobID), nullableString(job.FineTunedModelID),
		job.ErrorMessage, job.InfraFailure, job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update finetuning job: %w", err)
	}

	r.log.Info("finetuning_job.transition", "job_id", job.ID, "status", string(job.Status))
	return job, nil
}

func (r *fineTuningJobRepo) ListByType(ctx context.Context, dt constants.DocumentType) ([]*FineTuningJob, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+fineTuningJobColumns+`
FROM finetuning_jobs WHERE document_type = $1 ORDER BY created_at DESC
`, string(dt))
	if err != nil {
		return nil, fmt.Errorf("list finetuning jobs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []*FineTuningJob
	for rows.Next() {
		job, err := scanFineTuningJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan finetuning job: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate finetuning jobs: %w", err)
	}
	return out, nil
}

// ListNonTerminal returns every job still in flight, oldest first, for
// the poll loop.
func (r *fineTuningJobRepo) ListNonTerminal(ctx context.Context) ([]*FineTuningJob, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+fineTuningJobColumns+`
FROM finetuning_jobs WHERE status NOT IN ($1, $2, $3) ORDER BY created_at
`,
		string(constants.FineTuningSucceeded),
		string(constants.FineTuningFailed),
		string(constants.FineTuningCancelled),
	)
	if err != nil {
		return nil, fmt.Errorf("list non-terminal finetuning jobs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []*FineTuningJob
	for rows.Next() {
		job, err := scanFineTuningJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan finetuning job: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate finetuning jobs: %w", err)
	}
	return out, nil
}

func scanFineTuningJob(row rowScanner) (*FineTuningJob, error) {
	var job FineTuningJob
	var docType, status string
	var trainFile, valFile, remoteID, modelID sql.NullString

	err := row.Scan(
		&job.ID, &docType, &status, &job.BaseModel, &trainFile, &valFile,
		&remoteID, &modelID, &job.ErrorMessage, &job.InfraFailure,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.DocumentType = constants.DocumentType(docType)
	job.Status = constants.FineTuningStatus(status)
	job.TrainingFileID = trainFile.String
	job.ValidationFileID = valFile.String
	job.RemoteJobID = remoteID.String
	job.FineTunedModelID = modelID.String
	return &job, nil
}
