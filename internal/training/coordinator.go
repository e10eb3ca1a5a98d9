package training

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/CamiloRuizJ/rexeli/constants"
	"github.com/CamiloRuizJ/rexeli/internal/export"
	"github.com/CamiloRuizJ/rexeli/internal/feedback"
	"github.com/CamiloRuizJ/rexeli/internal/llm"
	"github.com/CamiloRuizJ/rexeli/internal/prompts"
	"github.com/CamiloRuizJ/rexeli/internal/repository"
	"github.com/CamiloRuizJ/rexeli/internal/storage"
)

// ErrCorpusTooSmall rejects a job start when the verified corpus has not
// reached the configured minimum.
var ErrCorpusTooSmall = errors.New("verified corpus below minimum size for fine-tuning")

// Options configures a fine-tuning run.
type Options struct {
	BaseModel     string
	MinCorpusSize int64
	// ValidationFraction of verified documents held out when splits are
	// (re)assigned. Zero means keep existing assignments.
	ValidationFraction float64
	// AutoDeploy activates the resulting model version as soon as the
	// remote job succeeds.
	AutoDeploy bool
}

// Coordinator drives the fine-tuning lifecycle: export verified data,
// upload, create the remote job, poll, and register the resulting model.
type Coordinator struct {
	docs     repository.TrainingDocumentRepository
	jobs     repository.FineTuningJobRepository
	models   repository.ModelVersionRepository
	triggers repository.TrainingTriggerRepository
	trainer  llm.Trainer
	store    storage.Store
	log      *slog.Logger
}

func NewCoordinator(
	docs repository.TrainingDocumentRepository,
	jobs repository.FineTuningJobRepository,
	models repository.ModelVersionRepository,
	triggers repository.TrainingTriggerRepository,
	trainer llm.Trainer,
	store storage.Store,
	logger *slog.Logger,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		docs:     docs,
		jobs:     jobs,
		models:   models,
		triggers: triggers,
		trainer:  trainer,
		store:    store,
		log:      logger,
	}
}

// ExportTrainingData serializes the train and validation splits for a
// document type into JSONL, persists both artifacts to storage, and
// returns the encoded bytes. The system prompt embedded in every example
// is the base extraction prompt enhanced with aggregated reviewer
// learnings, so each generation of the model trains against the lessons
// of the previous one.
func (c *Coordinator) ExportTrainingData(ctx context.Context, dt constants.DocumentType) (train, validation []byte, err error) {
	systemPrompt, err := c.enhancedPrompt(ctx, dt)
	if err != nil {
		return nil, nil, err
	}

	trainDocs, err := c.docs.ListForTraining(ctx, dt, constants.SplitTrain)
	if err != nil {
		return nil, nil, fmt.Errorf("list train split: %w", err)
	}
	validationDocs, err := c.docs.ListForTraining(ctx, dt, constants.SplitValidation)
	if err != nil {
		return nil, nil, fmt.Errorf("list validation split: %w", err)
	}

	train, trainN, err := export.EncodeTrainingJSONL(systemPrompt, trainDocs)
	if err != nil {
		return nil, nil, err
	}
	validation, validationN, err := export.EncodeTrainingJSONL(systemPrompt, validationDocs)
	if err != nil {
		return nil, nil, err
	}

	stamp := time.Now().UTC().Format("20060102T150405")
	trainKey := fmt.Sprintf("training/%s/%s-train.jsonl", dt, stamp)
	if err := c.store.Save(ctx, trainKey, bytes.NewReader(train)); err != nil {
		return nil, nil, fmt.Errorf("persist train jsonl: %w", err)
	}
	if validationN > 0 {
		validationKey := fmt.Sprintf("training/%s/%s-validation.jsonl", dt, stamp)
		if err := c.store.Save(ctx, validationKey, bytes.NewReader(validation)); err != nil {
			return nil, nil, fmt.Errorf("persist validation jsonl: %w", err)
		}
	}

	c.log.Info("training.export.ok",
		"document_type", string(dt),
		"train_examples", trainN,
		"validation_examples", validationN,
	)
	return train, validation, nil
}

// StartFineTuningJob runs the pending->uploading->running leg of the state
// machine: gate on corpus size, export and upload JSONL, create the
// remote job. The local record is created first so a crash mid-upload
// leaves an inspectable pending row rather than nothing.
func (c *Coordinator) StartFineTuningJob(ctx context.Context, dt constants.DocumentType, opts Options) (*repository.FineTuningJob, error) {
	count, err := c.docs.CountVerified(ctx, dt)
	if err != nil {
		return nil, fmt.Errorf("count verified: %w", err)
	}
	if count < opts.MinCorpusSize {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrCorpusTooSmall, count, opts.MinCorpusSize)
	}

	if opts.ValidationFraction > 0 {
		if err := c.docs.AssignSplits(ctx, dt, opts.ValidationFraction); err != nil {
			return nil, fmt.Errorf("assign splits: %w", err)
		}
	}

	job := &repository.FineTuningJob{
		DocumentType: dt,
		Status:       constants.FineTuningPending,
		BaseModel:    opts.BaseModel,
	}
	if err := c.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	train, validation, err := c.ExportTrainingData(ctx, dt)
	if err != nil {
		return nil, c.failJob(ctx, job.ID, err)
	}

	job, err = c.jobs.Transition(ctx, job.ID, constants.FineTuningUploading, nil)
	if err != nil {
		return nil, err
	}

	trainFile, err := c.trainer.UploadTrainingFile(ctx, fmt.Sprintf("%s-train.jsonl", dt), train)
	if err != nil {
		return nil, c.failJob(ctx, job.ID, fmt.Errorf("upload train file: %w", err))
	}
	var validationFileID string
	if len(validation) > 0 {
		validationFile, err := c.trainer.UploadTrainingFile(ctx, fmt.Sprintf("%s-validation.jsonl", dt), validation)
		if err != nil {
			return nil, c.failJob(ctx, job.ID, fmt.Errorf("upload validation file: %w", err))
		}
		validationFileID = validationFile.ID
	}

	remote, err := c.trainer.CreateJob(ctx, opts.BaseModel, trainFile.ID, validationFileID, string(dt))
	if err != nil {
		return nil, c.failJob(ctx, job.ID, fmt.Errorf("create remote job: %w", err))
	}

	job, err = c.jobs.Transition(ctx, job.ID, constants.FineTuningRunning, func(j *repository.FineTuningJob) {
		j.TrainingFileID = trainFile.ID
		j.ValidationFileID = validationFileID
		j.RemoteJobID = remote.ID
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("training.job.started",
		"job_id", job.ID,
		"remote_job_id", remote.ID,
		"document_type", string(dt),
		"base_model", opts.BaseModel,
		"corpus_size", count,
	)
	return job, nil
}

// UpdateFineTuningJobStatus polls the remote job and advances the local
// record. Polling is idempotent: a remote status equal to the stored one
// is a no-op, and terminal states are never moved again.
func (c *Coordinator) UpdateFineTuningJobStatus(ctx context.Context, jobID string) (*repository.FineTuningJob, error) {
	job, err := c.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() || job.RemoteJobID == "" {
		return job, nil
	}

	remote, err := c.trainer.RetrieveJob(ctx, job.RemoteJobID)
	if err != nil {
		return nil, fmt.Errorf("retrieve remote job: %w", err)
	}

	next := mapRemoteStatus(remote.Status)
	if next == job.Status || !job.Status.CanTransitionTo(next) {
		return job, nil
	}

	job, err = c.jobs.Transition(ctx, job.ID, next, func(j *repository.FineTuningJob) {
		j.FineTunedModelID = remote.FineTunedModel
		j.ErrorMessage = remote.Error
		if next == constants.FineTuningFailed {
			j.InfraFailure = isInfraFailure(remote.Error)
		}
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("training.job.status",
		"job_id", job.ID,
		"status", string(job.Status),
		"infra_failure", job.InfraFailure,
	)
	return job, nil
}

// CancelJob cancels the remote run and marks the local record cancelled.
func (c *Coordinator) CancelJob(ctx context.Context, jobID string) (*repository.FineTuningJob, error) {
	job, err := c.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return job, nil
	}

	if job.RemoteJobID != "" {
		if _, err := c.trainer.CancelJob(ctx, job.RemoteJobID); err != nil {
			return nil, fmt.Errorf("cancel remote job: %w", err)
		}
	}
	return c.jobs.Transition(ctx, job.ID, constants.FineTuningCancelled, nil)
}

// DeployFineTunedModel registers the model produced by a succeeded job as
// a model version, optionally activating it immediately.
func (c *Coordinator) DeployFineTunedModel(ctx context.Context, jobID string, activate bool) (*repository.ModelVersion, error) {
	job, err := c.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != constants.FineTuningSucceeded {
		return nil, fmt.Errorf("job %s is %s, not succeeded: %w", jobID, job.Status, repository.ErrInvalidTransition)
	}
	if job.FineTunedModelID == "" {
		return nil, fmt.Errorf("job %s has no fine-tuned model id", jobID)
	}

	mv := &repository.ModelVersion{
		DocumentType:     job.DocumentType,
		ModelID:          job.FineTunedModelID,
		DeploymentStatus: constants.DeploymentInactive,
	}
	if err := c.models.Create(ctx, mv); err != nil {
		return nil, err
	}
	if activate {
		if err := c.models.Activate(ctx, mv.ID); err != nil {
			return nil, err
		}
		mv.DeploymentStatus = constants.DeploymentActive
		mv.TrafficPercentage = 100
	}

	c.log.Info("training.model.deployed",
		"model_version_id", mv.ID,
		"model_id", mv.ModelID,
		"document_type", string(mv.DocumentType),
		"active", activate,
	)
	return mv, nil
}

func (c *Coordinator) enhancedPrompt(ctx context.Context, dt constants.DocumentType) (string, error) {
	base, ok := prompts.Extraction(dt)
	if !ok {
		return "", fmt.Errorf("no extraction prompt for document type %q", dt)
	}
	docs, err := c.docs.ListVerified(ctx, dt)
	if err != nil {
		return "", fmt.Errorf("list verified: %w", err)
	}

	learnings := feedback.AggregateLearnings(dt, BuildCorpus(docs))
	return feedback.BuildEnhancedSystemPrompt(base, learnings), nil
}

// BuildCorpus converts stored documents into the in-memory examples the
// feedback analyzer consumes. Documents whose payloads are missing or do
// not decode are skipped.
func BuildCorpus(docs []*repository.TrainingDocument) []feedback.VerifiedExample {
	examples := make([]feedback.VerifiedExample, 0, len(docs))
	for _, d := range docs {
		if len(d.RawExtraction) == 0 || len(d.VerifiedExtraction) == 0 {
			continue
		}
		raw, errRaw := decodePayload(d.RawExtraction)
		verified, errVerified := decodePayload(d.VerifiedExtraction)
		if errRaw != nil || errVerified != nil {
			continue
		}
		examples = append(examples, feedback.VerifiedExample{
			DocumentID: d.ID,
			Raw:        raw,
			Verified:   verified,
			Notes:      d.VerificationNotes,
		})
	}
	return examples
}

func decodePayload(raw []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *Coordinator) failJob(ctx context.Context, jobID string, cause error) error {
	_, tErr := c.jobs.Transition(ctx, jobID, constants.FineTuningFailed, func(j *repository.FineTuningJob) {
		j.ErrorMessage = cause.Error()
	})
	if tErr != nil {
		c.log.Error("training.job.fail_record", "job_id", jobID, "error", tErr)
	}
	return cause
}

// mapRemoteStatus folds the provider's job states onto the local machine.
func mapRemoteStatus(remote string) constants.FineTuningStatus {
	switch strings.ToLower(remote) {
	case "validating_files", "queued", "pending":
		return constants.FineTuningUploading
	case "running", "fine_tuning":
		return constants.FineTuningRunning
	case "succeeded":
		return constants.FineTuningSucceeded
	case "failed":
		return constants.FineTuningFailed
	case "cancelled", "canceled":
		return constants.FineTuningCancelled
	default:
		return constants.FineTuningRunning
	}
}

// isInfraFailure flags failures caused by the provider's moderation or
// eval systems. These are operationally distinct from data-quality
// failures: the training set does not need rework.
func isInfraFailure(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "moderation") || strings.Contains(m, "eval")
}
