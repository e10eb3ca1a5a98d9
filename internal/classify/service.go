// Package classify invokes the vision model with the classification prompt
// and validates the returned category/confidence/reasoning triple.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/CamiloRuizJ/rexeli/constants"
	"github.com/CamiloRuizJ/rexeli/internal/llm"
	"github.com/CamiloRuizJ/rexeli/internal/prompts"
)

// ErrInvalidClassificationResponse reports a parsed response missing one of
// the required keys. A contract violation by the model, not recoverable;
// never retried.
var ErrInvalidClassificationResponse = errors.New("invalid classification response")

// Classification is the model's verdict for one document.
type Classification struct {
	Type       constants.DocumentType `json:"type"`
	Confidence float64                `json:"confidence"`
	Reasoning  string                 `json:"reasoning"`
}

type Service struct {
	invoker llm.Invoker
	log     *slog.Logger
}

func NewService(invoker llm.Invoker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{invoker: invoker, log: logger}
}

// Classify submits the page images (in input order) with the fixed
// classification prompt and validates the triple. Stateless; no side
// effects beyond the remote call.
func (s *Service) Classify(ctx context.Context, images []llm.Image) (Classification, error) {
	rid := uuid.New().String()
	start := time.Now()

	if len(images) == 0 {
		return Classification{}, fmt.Errorf("%w: no pages provided", ErrInvalidClassificationResponse)
	}

	s.log.Info("classify.start", "req_id", rid, "pages", len(images))

	resp, err := s.invoker.Invoke(ctx, llm.Request{
		Prompt: prompts.Classification,
		Images: images,
	})
	if err != nil {
		return Classification{}, fmt.Errorf("classify document: %w", err)
	}

	parsed, err := llm.ParseJSON(resp.Content)
	if err != nil {
		return Classification{}, fmt.Errorf("classify document: %w", err)
	}

	payload, err := json.Marshal(parsed)
	if err != nil {
		return Classification{}, fmt.Errorf("encode classification payload: %w", err)
	}
	if err := llm.ValidateJSONAgainstSchema(llm.ClassificationSchema(nil), payload); err != nil {
		return Classification{}, fmt.Errorf("%w: %v", ErrInvalidClassificationResponse, err)
	}

	rawType, _ := parsed["type"].(string)
	confidence, _ := parsed["confidence"].(float64)
	reasoning, _ := parsed["reasoning"].(string)

	dt, ok := constants.CanonicalizeDocumentType(rawType)
	if !ok {
		return Classification{}, fmt.Errorf("%w: unknown document type %q", ErrInvalidClassificationResponse, rawType)
	}

	result := Classification{Type: dt, Confidence: confidence, Reasoning: reasoning}
	s.log.Info("classify.ok",
		"req_id", rid,
		"type", string(dt),
		"confidence", confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}
