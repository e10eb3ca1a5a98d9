package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/CamiloRuizJ/rexeli/constants"
	"github.com/CamiloRuizJ/rexeli/internal/common"
)

// TrainingDocument is the verification-pipeline record. Rows are never
// auto-deleted; rejection only changes status.
type TrainingDocument struct {
	ID                   string
	FilePath             string
	FileName             string
	DocumentType         constants.DocumentType
	RawExtraction        json.RawMessage
	VerifiedExtraction   json.RawMessage
	ExtractionConfidence float64
	ProcessingStatus     constants.ProcessingStatus
	VerificationStatus   constants.VerificationStatus
	VerificationNotes    string
	DatasetSplit         constants.DatasetSplit
	QualityScore         float64
	IsVerified           bool
	IncludeInTraining    bool
	ErrorMessage         string
	Version              int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Verification carries a reviewer's edits for one document.
type Verification struct {
	VerifiedExtraction json.RawMessage
	Status             constants.VerificationStatus
	Notes              string
	QualityScore       float64
	// ExpectedVersion guards against concurrent reviewers; the update
	// fails with ErrVersionConflict when the row has moved on.
	ExpectedVersion int64
}

type TrainingDocumentRepository interface {
	Create(ctx context.Context, doc *TrainingDocument) error
	GetByID(ctx context.Context, id string) (*TrainingDocument, error)
	FinishExtraction(ctx context.Context, id string, raw json.RawMessage, confidence float64) error
	FinishExtractionFailure(ctx context.Context, id string, message string) error
	SaveVerification(ctx context.Context, id string, v Verification) error
	ListVerified(ctx context.Context, dt constants.DocumentType) ([]*TrainingDocument, error)
	ListForTraining(ctx context.Context, dt constants.DocumentType, split constants.DatasetSplit) ([]*TrainingDocument, error)
	CountVerified(ctx context.Context, dt constants.DocumentType) (int64, error)
	AssignSplits(ctx context.Context, dt constants.DocumentType, validationFraction float64) error
}

type trainingDocumentRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewTrainingDocumentRepository(db *sql.DB, logger *slog.Logger) TrainingDocumentRepository {
	return &trainingDocumentRepo{db: db, log: logger}
}

const trainingDocumentColumns = `id, file_path, file_name, document_type, raw_extraction, verified_extraction,
extraction_confidence, processing_status, verification_status, verification_notes, dataset_split,
quality_score, is_verified, include_in_training, error_message, version, created_at, updated_at`

func (r *trainingDocumentRepo) Create(ctx context.Context, doc *TrainingDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.ProcessingStatus == "" {
		doc.ProcessingStatus = constants.ProcessingPending
	}
	if doc.VerificationStatus == "" {
		doc.VerificationStatus = constants.VerificationUnverified
	}
	doc.Version = 1

	_, err := r.db.ExecContext(ctx, `
INSERT INTO training_documents (
	id, file_path, file_name, document_type, raw_extraction, verified_extraction,
	extraction_confidence, processing_status, verification_status, verification_notes, dataset_split,
	quality_score, is_verified, include_in_training, error_message, version, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
`,
		doc.ID, doc.FilePath, doc.FileName, string(doc.DocumentType),
		nullableJSON(doc.RawExtraction), nullableJSON(doc.VerifiedExtraction),
		doc.ExtractionConfidence, string(doc.ProcessingStatus), string(doc.VerificationStatus),
		doc.VerificationNotes, nullableString(string(doc.DatasetSplit)),
		doc.QualityScore, doc.IsVerified, doc.IncludeInTraining, doc.ErrorMessage,
		doc.Version, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		r.log.Error("training_document.create_failed", "id", doc.ID, "error", err)
		return fmt.Errorf("insert training document: %w", err)
	}
	r.log.Info("training_document.created", "id", doc.ID, "type", string(doc.DocumentType))
	return nil
}

func (r *trainingDocumentRepo) GetByID(ctx context.Context, id string) (*TrainingDocument, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+trainingDocumentColumns+` FROM training_documents WHERE id = $1`, id)
	doc, err := scanTrainingDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("training document %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("get training document: %w", err)
	}
	return doc, nil
}

func (r *trainingDocumentRepo) FinishExtraction(ctx context.Context, id string, raw json.RawMessage, confidence float64) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE training_documents
SET raw_extraction = $2, extraction_confidence = $3, processing_status = $4,
    version = version + 1, updated_at = $5
WHERE id = $1
`, id, nullableJSON(raw), confidence, string(constants.ProcessingCompleted), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("finish extraction: %w", err)
	}
	return requireRow(res, "training document "+id)
}

func (r *trainingDocumentRepo) FinishExtractionFailure(ctx context.Context, id string, message string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE training_documents
SET processing_status = $2, error_message = $3, version = version + 1, updated_at = $4
WHERE id = $1
`, id, string(constants.ProcessingFailed), message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("finish extraction failure: %w", err)
	}
	return requireRow(res, "training document "+id)
}

// SaveVerification applies a reviewer's corrections under optimistic
// concurrency: the write succeeds only when the stored version still
// matches the one the reviewer loaded.
func (r *trainingDocumentRepo) SaveVerification(ctx context.Context, id string, v Verification) error {
	isVerified := v.Status == constants.VerificationVerified
	res, err := r.db.ExecContext(ctx, `
UPDATE training_documents
SET verified_extraction = $3, verification_status = $4, verification_notes = $5,
    quality_score = $6, is_verified = $7, version = version + 1, updated_at = $8
WHERE id = $1 AND version = $2
`, id, v.ExpectedVersion, nullableJSON(v.VerifiedExtraction), string(v.Status),
		v.Notes, v.QualityScore, isVerified, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save verification: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save verification rows: %w", err)
	}
	if n == 0 {
		// Either the row is gone or another reviewer got there first.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		r.log.Warn("training_document.version_conflict", "id", id, "expected_version", v.ExpectedVersion)
		return fmt.Errorf("training document %s: %w", id, common.ErrVersionConflict)
	}
	r.log.Info("training_document.verified", "id", id, "status", string(v.Status), "quality_score", v.QualityScore)
	return nil
}

func (r *trainingDocumentRepo) ListVerified(ctx context.Context, dt constants.DocumentType) ([]*TrainingDocument, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+trainingDocumentColumns+`
FROM training_documents
WHERE document_type = $1 AND verification_status = $2
ORDER BY created_at
`, string(dt), string(constants.VerificationVerified))
	if err != nil {
		return nil, fmt.Errorf("list verified: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	return collectTrainingDocuments(rows)
}

func (r *trainingDocumentRepo) ListForTraining(ctx context.Context, dt constants.DocumentType, split constants.DatasetSplit) ([]*TrainingDocument, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+trainingDocumentColumns+`
FROM training_documents
WHERE document_type = $1 AND verification_status = $2
  AND include_in_training = TRUE AND dataset_split = $3
ORDER BY created_at
`, string(dt), string(constants.VerificationVerified), string(split))
	if err != nil {
		return nil, fmt.Errorf("list for training: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	return collectTrainingDocuments(rows)
}

func (r *trainingDocumentRepo) CountVerified(ctx context.Context, dt constants.DocumentType) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM training_documents
WHERE document_type = $1 AND verification_status = $2
`, string(dt), string(constants.VerificationVerified)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count verified: %w", err)
	}
	return n, nil
}

// AssignSplits randomly partitions verified documents without a split into
// train/validation (80/20 by default).
func (r *trainingDocumentRepo) AssignSplits(ctx context.Context, dt constants.DocumentType, validationFraction float64) error {
	if validationFraction <= 0 || validationFraction >= 1 {
		validationFraction = 0.2
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id FROM training_documents
WHERE document_type = $1 AND verification_status = $2 AND dataset_split IS NULL
`, string(dt), string(constants.VerificationVerified))
	if err != nil {
		return fmt.Errorf("list unsplit: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("iterate ids: %w", err)
	}
	_ = rows.Close()

	now := time.Now().UTC()
	for _, id := range ids {
		split := constants.SplitTrain
		if rand.Float64() < validationFraction {
			split = constants.SplitValidation
		}
		if _, err := r.db.ExecContext(ctx, `
UPDATE training_documents SET dataset_split = $2, updated_at = $3 WHERE id = $1
`, id, string(split), now); err != nil {
			return fmt.Errorf("assign split: %w", err)
		}
	}
	r.log.Info("training_document.splits_assigned", "type", string(dt), "count", len(ids))
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrainingDocument(row rowScanner) (*TrainingDocument, error) {
	var doc TrainingDocument
	var docType, procStatus, verStatus string
	var rawX, verX, split, notes, errMsg sql.NullString

	err := row.Scan(
		&doc.ID, &doc.FilePath, &doc.FileName, &docType, &rawX, &verX,
		&doc.ExtractionConfidence, &procStatus, &verStatus, &notes, &split,
		&doc.QualityScore, &doc.IsVerified, &doc.IncludeInTraining, &errMsg,
		&doc.Version, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.DocumentType = constants.DocumentType(docType)
	doc.ProcessingStatus = constants.ProcessingStatus(procStatus)
	doc.VerificationStatus = constants.VerificationStatus(verStatus)
	doc.DatasetSplit = constants.DatasetSplit(split.String)
	doc.VerificationNotes = notes.String
	doc.ErrorMessage = errMsg.String
	if rawX.Valid {
		doc.RawExtraction = json.RawMessage(rawX.String)
	}
	if verX.Valid {
		doc.VerifiedExtraction = json.RawMessage(verX.String)
	}
	return &doc, nil
}

func collectTrainingDocuments(rows *sql.Rows) ([]*TrainingDocument, error) {
	var out []*TrainingDocument
	for rows.Next() {
		doc, err := scanTrainingDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan training document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate training documents: %w", err)
	}
	return out, nil
}

func requireRow(res sql.Result, label string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", label, common.ErrNotFound)
	}
	return nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
