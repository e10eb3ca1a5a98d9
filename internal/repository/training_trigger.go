package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CamiloRuizJ/rexeli/constants"
)

// TrainingTrigger configures automatic fine-tuning per document type: fire
// once every TriggerInterval newly verified documents, but only after the
// verified corpus reaches MinCorpusSize.
type TrainingTrigger struct {
	DocumentType     constants.DocumentType
	Enabled          bool
	TriggerInterval  int64
	MinCorpusSize    int64
	LastTriggerCount int64
	NextTriggerAt    int64
	UpdatedAt        time.Time
}

// ShouldFire reports whether the current verified count has crossed the
// next trigger threshold.
func (t *TrainingTrigger) ShouldFire(verifiedCount int64) bool {
	return t.Enabled && verifiedCount >= t.MinCorpusSize && verifiedCount >= t.NextTriggerAt
}

type TrainingTriggerRepository interface {
	GetOrCreate(ctx context.Context, dt constants.DocumentType, interval, minCorpus int64) (*TrainingTrigger, error)
	ListEnabled(ctx context.Context) ([]*TrainingTrigger, error)
	MarkTriggered(ctx context.Context, dt constants.DocumentType, verifiedCount int64) error
	SetEnabled(ctx context.Context, dt constants.DocumentType, enabled bool) error
}

type trainingTriggerRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewTrainingTriggerRepository(db *sql.DB, logger *slog.Logger) TrainingTriggerRepository {
	return &trainingTriggerRepo{db: db, log: logger}
}

func (r *trainingTriggerRepo) GetOrCreate(ctx context.Context, dt constants.DocumentType, interval, minCorpus int64) (*TrainingTrigger, error) {
	t, err := r.get(ctx, dt)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get training trigger: %w", err)
	}

	t = &TrainingTrigger{
		DocumentType:     dt,
		Enabled:          true,
		TriggerInterval:  interval,
		MinCorpusSize:    minCorpus,
		LastTriggerCount: 0,
		NextTriggerAt:    minCorpus,
		UpdatedAt:        time.Now().UTC(),
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO training_triggers (
	document_type, enabled, trigger_interval, min_corpus_size,
	last_trigger_count, next_trigger_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		string(t.DocumentType), t.Enabled, t.TriggerInterval, t.MinCorpusSize,
		t.LastTriggerCount, t.NextTriggerAt, t.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert training trigger: %w", err)
	}
	r.log.Info("training_trigger.created", "type", string(dt), "interval", interval, "min_corpus", minCorpus)
	return t, nil
}

func (r *trainingTriggerRepo) get(ctx context.Context, dt constants.DocumentType) (*TrainingTrigger, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT document_type, enabled, trigger_interval, min_corpus_size,
	last_trigger_count, next_trigger_at, updated_at
FROM training_triggers
WHERE document_type = $1
`, string(dt))
	return scanTrainingTrigger(row)
}

func (r *trainingTriggerRepo) ListEnabled(ctx context.Context) ([]*TrainingTrigger, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT document_type, enabled, trigger_interval, min_corpus_size,
	last_trigger_count, next_trigger_at, updated_at
FROM training_triggers
WHERE enabled = TRUE
ORDER BY document_type
`)
	if err != nil {
		return nil, fmt.Errorf("list enabled triggers: %w", err)
	}
	defer rows.Close()

	var triggers []*TrainingTrigger
	for rows.Next() {
		t, err := scanTrainingTrigger(rows)
		if err != nil {
			return nil, err
		}
		triggers = append(triggers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate triggers: %w", err)
	}
	return triggers, nil
}

// MarkTriggered advances the threshold so the next job fires only after
// another full interval of verifications.
func (r *trainingTriggerRepo) MarkTriggered(ctx context.Context, dt constants.DocumentType, verifiedCount int64) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE training_triggers
SET last_trigger_count = $2,
	next_trigger_at = $2 + trigger_interval,
	updated_at = $3
WHERE document_type = $1
`, string(dt), verifiedCount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark trigger fired: %w", err)
	}
	if err := requireRow(res, "training trigger "+string(dt)); err != nil {
		return err
	}
	r.log.Info("training_trigger.fired", "type", string(dt), "verified_count", verifiedCount)
	return nil
}

func (r *trainingTriggerRepo) SetEnabled(ctx context.Context, dt constants.DocumentType, enabled bool) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE training_triggers SET enabled = $2, updated_at = $3 WHERE document_type = $1
`, string(dt), enabled, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set trigger enabled: %w", err)
	}
	return requireRow(res, "training trigger "+string(dt))
}

func scanTrainingTrigger(row rowScanner) (*TrainingTrigger, error) {
	var t TrainingTrigger
	var docType string
	err := row.Scan(&docType, &t.Enabled, &t.TriggerInterval, &t.MinCorpusSize,
		&t.LastTriggerCount, &t.NextTriggerAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.DocumentType = constants.DocumentType(docType)
	return &t, nil
}
