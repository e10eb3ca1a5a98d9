// Package repository implements the relational record-store capability for
// training documents, fine-tuning jobs, model versions, and triggers.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
}

// Open connects to Postgres (pgx) or, for local development, SQLite,
// selected by the DSN scheme.
func Open(cfg Config, logger *slog.Logger) (*sql.DB, error) {
	driver := "pgx"
	dsn := cfg.DSN
	if strings.HasPrefix(dsn, "sqlite:") {
		driver = "sqlite"
		dsn = strings.TrimPrefix(dsn, "sqlite:")
	}

	logger.Info("repository.open", "driver", driver)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables on startup. Idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	const query = `
CREATE TABLE IF NOT EXISTS training_documents (
	id TEXT PRIMARY KEY,
	file_path TEXT NOT NULL,
	file_name TEXT NOT NULL,
	document_type TEXT NOT NULL,
	raw_extraction TEXT,
	verified_extraction TEXT,
	extraction_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	processing_status TEXT NOT NULL,
	verification_status TEXT NOT NULL,
	verification_notes TEXT,
	dataset_split TEXT,
	quality_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	is_verified BOOLEAN NOT NULL DEFAULT FALSE,
	include_in_training BOOLEAN NOT NULL DEFAULT TRUE,
	error_message TEXT,
	version BIGINT NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_training_documents_type
	ON training_documents(document_type);
CREATE INDEX IF NOT EXISTS idx_training_documents_verification
	ON training_documents(verification_status);

CREATE TABLE IF NOT EXISTS finetuning_jobs (
	id TEXT PRIMARY KEY,
	document_type TEXT NOT NULL,
	status TEXT NOT NULL,
	base_model TEXT NOT NULL,
	training_file_id TEXT,
	validation_file_id TEXT,
	remote_job_id TEXT,
	fine_tuned_model_id TEXT,
	error_message TEXT,
	infra_failure BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_finetuning_jobs_type
	ON finetuning_jobs(document_type);

CREATE TABLE IF NOT EXISTS model_versions (
	id TEXT PRIMARY KEY,
	document_type TEXT NOT NULL,
	model_id TEXT NOT NULL,
	deployment_status TEXT NOT NULL,
	traffic_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_model_versions_type
	ON model_versions(document_type);

CREATE TABLE IF NOT EXISTS training_triggers (
	document_type TEXT PRIMARY KEY,
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	trigger_interval BIGINT NOT NULL,
	min_corpus_size BIGINT NOT NULL,
	last_trigger_count BIGINT NOT NULL DEFAULT 0,
	next_trigger_at BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	return nil
}
