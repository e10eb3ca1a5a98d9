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

// ModelVersion records a deployable fine-tuned model for a document type.
// At most one version per type is active at a time; Activate enforces this
// transactionally.
type ModelVersion struct {
	ID                string
	DocumentType      constants.DocumentType
	ModelID           string
	DeploymentStatus  constants.DeploymentStatus
	TrafficPercentage float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type ModelVersionRepository interface {
	Create(ctx context.Context, mv *ModelVersion) error
	Activate(ctx context.Context, id string) error
	ActiveForType(ctx context.Context, dt constants.DocumentType) (*ModelVersion, error)
}

type modelVersionRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewModelVersionRepository(db *sql.DB, logger *slog.Logger) ModelVersionRepository {
	return &modelVersionRepo{db: db, log: logger}
}

func (r *modelVersionRepo) Create(ctx context.Context, mv *ModelVersion) error {
	if mv.ID == "" {
		mv.ID = uuid.New().String()
	}
	if mv.DeploymentStatus == "" {
		mv.DeploymentStatus = constants.DeploymentInactive
	}
	now := time.Now().UTC()
	mv.CreatedAt = now
	mv.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO model_versions (
	id, document_type, model_id, deployment_status, traffic_percentage, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		mv.ID, string(mv.DocumentType), mv.ModelID, string(mv.DeploymentStatus),
		mv.TrafficPercentage, mv.CreatedAt, mv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert model version: %w", err)
	}
	r.log.Info("model_version.created", "id", mv.ID, "type", string(mv.DocumentType), "model_id", mv.ModelID)
	return nil
}

// Activate flips a version to active and archives the prior active version
// for the same document type as one atomic step, so the at-most-one-active
// invariant holds even under concurrent deploys.
func (r *modelVersionRepo) Activate(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activate tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var docType string
	err = tx.QueryRowContext(ctx,
		`SELECT document_type FROM model_versions WHERE id = $1`, id).Scan(&docType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("model version %s: %w", id, common.ErrNotFound)
		}
		return fmt.Errorf("load model version: %w", err)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
UPDATE model_versions
SET deployment_status = $2, traffic_percentage = 0, updated_at = $3
WHERE document_type = $1 AND deployment_status = $4
`, docType, string(constants.DeploymentArchived), now, string(constants.DeploymentActive)); err != nil {
		return fmt.Errorf("archive prior active: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE model_versions
SET deployment_status = $2, traffic_percentage = 100, updated_at = $3
WHERE id = $1
`, id, string(constants.DeploymentActive), now); err != nil {
		return fmt.Errorf("activate model version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit activate tx: %w", err)
	}
	r.log.Info("model_version.activated", "id", id, "type", docType)
	return nil
}

func (r *modelVersionRepo) ActiveForType(ctx context.Context, dt constants.DocumentType) (*ModelVersion, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, document_type, model_id, deployment_status, traffic_percentage, created_at, updated_at
FROM model_versions
WHERE document_type = $1 AND deployment_status = $2
`, string(dt), string(constants.DeploymentActive))

	var mv ModelVersion
	var docType, status string
	err := row.Scan(&mv.ID, &docType, &mv.ModelID, &status, &mv.TrafficPercentage, &mv.CreatedAt, &mv.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("active model for %s: %w", dt, common.ErrNotFound)
		}
		return nil, fmt.Errorf("get active model version: %w", err)
	}
	mv.DocumentType = constants.DocumentType(docType)
	mv.DeploymentStatus = constants.DeploymentStatus(status)
	return &mv, nil
}
