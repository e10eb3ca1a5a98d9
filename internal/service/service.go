package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/CamiloRuizJ/rexeli/constants"
	"github.com/CamiloRuizJ/rexeli/internal/classify"
	"github.com/CamiloRuizJ/rexeli/internal/common"
	"github.com/CamiloRuizJ/rexeli/internal/export"
	"github.com/CamiloRuizJ/rexeli/internal/extract"
	"github.com/CamiloRuizJ/rexeli/internal/feedback"
	"github.com/CamiloRuizJ/rexeli/internal/llm"
	"github.com/CamiloRuizJ/rexeli/internal/normalize"
	"github.com/CamiloRuizJ/rexeli/internal/prompts"
	"github.com/CamiloRuizJ/rexeli/internal/repository"
	"github.com/CamiloRuizJ/rexeli/internal/storage"
	"github.com/CamiloRuizJ/rexeli/internal/training"
)

// Service is the library boundary: the small function set the surrounding
// application calls. It composes classification, extraction,
// normalization, the verification store, feedback analysis, and the
// fine-tuning coordinator.
type Service struct {
	classifier  *classify.Service
	extractor   *extract.Service
	exporter    *export.Service
	coordinator *training.Coordinator
	docs        repository.TrainingDocumentRepository
	models      repository.ModelVersionRepository
	store       storage.Store
	batchLimit  int
	log         *slog.Logger
}

func New(
	invoker llm.Invoker,
	coordinator *training.Coordinator,
	docs repository.TrainingDocumentRepository,
	models repository.ModelVersionRepository,
	store storage.Store,
	batchConcurrency int,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if batchConcurrency < 1 {
		batchConcurrency = 1
	}

	extractor := extract.NewService(invoker, logger)
	// Route each type through its active fine-tuned model when one is
	// deployed; the invoker's default model otherwise.
	extractor.ModelForType = func(ctx context.Context, dt constants.DocumentType) string {
		mv, err := models.ActiveForType(ctx, dt)
		if err != nil {
			return ""
		}
		return mv.ModelID
	}

	return &Service{
		classifier:  classify.NewService(invoker, logger),
		extractor:   extractor,
		exporter:    export.NewService(docs, logger),
		coordinator: coordinator,
		docs:        docs,
		models:      models,
		store:       store,
		batchLimit:  batchConcurrency,
		log:         logger,
	}
}

// ClassifyDocument identifies the document type from page images.
func (s *Service) ClassifyDocument(ctx context.Context, images []llm.Image) (classify.Classification, error) {
	return s.classifier.Classify(ctx, images)
}

// ExtractDocumentData runs the full single-document pipeline: persist the
// source bytes, extract via the model, normalize the payload, and record
// the outcome on the document row. The row survives extraction failures
// with status failed and the error message attached.
func (s *Service) ExtractDocumentData(ctx context.Context, in extract.Input, dt constants.DocumentType) (*repository.TrainingDocument, error) {
	key := fmt.Sprintf("documents/%s/%s", dt, in.Filename)
	if len(in.Data) > 0 {
		if err := s.store.Save(ctx, key, bytes.NewReader(in.Data)); err != nil {
			return nil, fmt.Errorf("persist source document: %w", err)
		}
	}

	doc := &repository.TrainingDocument{
		FilePath:         key,
		FileName:         in.Filename,
		DocumentType:     dt,
		ProcessingStatus: constants.ProcessingInProgress,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}

	extracted, err := s.extractor.Extract(ctx, in, dt)
	if err != nil {
		if fErr := s.docs.FinishExtractionFailure(ctx, doc.ID, err.Error()); fErr != nil {
			s.log.Error("service.extract.fail_record", "doc_id", doc.ID, "error", fErr)
		}
		return nil, err
	}

	normalized, err := s.TransformExtractedData(extracted)
	if err != nil {
		if fErr := s.docs.FinishExtractionFailure(ctx, doc.ID, err.Error()); fErr != nil {
			s.log.Error("service.extract.fail_record", "doc_id", doc.ID, "error", fErr)
		}
		return nil, err
	}

	if err := s.docs.FinishExtraction(ctx, doc.ID, normalized.Data, normalized.Metadata.Confidence); err != nil {
		return nil, err
	}
	return s.docs.GetByID(ctx, doc.ID)
}

// TransformExtractedData applies the per-type normalization rules to an
// extraction payload. The input is not modified.
func (s *Service) TransformExtractedData(extracted extract.ExtractedData) (extract.ExtractedData, error) {
	var payload map[string]any
	if err := json.Unmarshal(extracted.Data, &payload); err != nil {
		return extract.ExtractedData{}, fmt.Errorf("decode extraction payload: %w", err)
	}

	normalized := normalize.Normalize(extracted.DocumentType, payload)

	data, err := json.Marshal(normalized)
	if err != nil {
		return extract.ExtractedData{}, fmt.Errorf("encode normalized payload: %w", err)
	}
	out := extracted
	out.Data = data
	return out, nil
}

// VerifyDocument records a reviewer's verdict. A stale ExpectedVersion
// fails with common.ErrVersionConflict instead of silently overwriting a
// concurrent reviewer's work.
func (s *Service) VerifyDocument(ctx context.Context, docID string, v repository.Verification) error {
	return s.docs.SaveVerification(ctx, docID, v)
}

// AnalyzeExtractionDifferences diffs a raw extraction against its
// human-verified counterpart and groups the corrections into error
// patterns.
func (s *Service) AnalyzeExtractionDifferences(raw, verified map[string]any) ([]feedback.Difference, []feedback.ErrorPattern) {
	return feedback.AnalyzeDifferences(raw, verified)
}

// AggregateDocumentTypeLearnings folds every verified document of a type
// into patterns, improvement suggestions, and note-mined guidance.
func (s *Service) AggregateDocumentTypeLearnings(ctx context.Context, dt constants.DocumentType) (feedback.Learnings, error) {
	docs, err := s.docs.ListVerified(ctx, dt)
	if err != nil {
		return feedback.Learnings{}, fmt.Errorf("list verified: %w", err)
	}
	return feedback.AggregateLearnings(dt, training.BuildCorpus(docs)), nil
}

// BuildEnhancedSystemPrompt augments a base prompt with the accumulated
// learnings for a document type. An empty basePrompt uses the catalog's
// extraction prompt for the type.
func (s *Service) BuildEnhancedSystemPrompt(ctx context.Context, dt constants.DocumentType, basePrompt string) (string, error) {
	if basePrompt == "" {
		p, ok := prompts.Extraction(dt)
		if !ok {
			return "", fmt.Errorf("no extraction prompt for document type %q", dt)
		}
		basePrompt = p
	}
	learnings, err := s.AggregateDocumentTypeLearnings(ctx, dt)
	if err != nil {
		return "", err
	}
	return feedback.BuildEnhancedSystemPrompt(basePrompt, learnings), nil
}

// StartFineTuningJob begins a fine-tuning run for a document type.
func (s *Service) StartFineTuningJob(ctx context.Context, dt constants.DocumentType, opts training.Options) (*repository.FineTuningJob, error) {
	return s.coordinator.StartFineTuningJob(ctx, dt, opts)
}

// UpdateFineTuningJobStatus polls the remote training service and advances
// the local job record.
func (s *Service) UpdateFineTuningJobStatus(ctx context.Context, jobID string) (*repository.FineTuningJob, error) {
	return s.coordinator.UpdateFineTuningJobStatus(ctx, jobID)
}

// CancelFineTuningJob cancels a non-terminal job.
func (s *Service) CancelFineTuningJob(ctx context.Context, jobID string) (*repository.FineTuningJob, error) {
	return s.coordinator.CancelJob(ctx, jobID)
}

// DeployFineTunedModel registers (and optionally activates) the model
// produced by a succeeded job.
func (s *Service) DeployFineTunedModel(ctx context.Context, jobID string, activate bool) (*repository.ModelVersion, error) {
	return s.coordinator.DeployFineTunedModel(ctx, jobID, activate)
}

// ExportVerifiedWorkbook returns an XLSX summary of the verified corpus
// for a document type.
func (s *Service) ExportVerifiedWorkbook(ctx context.Context, dt constants.DocumentType) ([]byte, error) {
	return s.exporter.ExportVerifiedXLSX(ctx, dt)
}

// Healthy reports basic liveness for the composed dependencies.
func (s *Service) Healthy(ctx context.Context) common.Result {
	if _, err := s.docs.CountVerified(ctx, constants.RentRoll); err != nil {
		return common.Failure(err)
	}
	return common.OK()
}
