// Package extract selects a processing strategy for an input document and
// invokes the vision model with the matching extraction prompt.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/CamiloRuizJ/rexeli/constants"
	"github.com/CamiloRuizJ/rexeli/internal/llm"
	"github.com/CamiloRuizJ/rexeli/internal/prompts"
)

var (
	// ErrDocumentTooLarge is the policy failure for PDFs past the native
	// page limit. Actionable: the caller must pre-rasterize client-side.
	ErrDocumentTooLarge = errors.New("document exceeds native PDF processing limit: convert the PDF to page images client-side and resubmit")

	// ErrUnsupportedFileType rejects inputs that are neither PDFs nor images.
	ErrUnsupportedFileType = errors.New("unsupported file type: only PDF and image documents are accepted")

	// ErrInvalidExtractionResponse reports a parsed response missing the
	// required documentType/data keys.
	ErrInvalidExtractionResponse = errors.New("invalid extraction response")
)

// Input is the one-of input shape. Pages, when set, marks a pre-rasterized
// multi-page bundle and takes precedence over Data.
type Input struct {
	Filename string
	MIMEType string
	Data     []byte
	Pages    []llm.Image
}

func (in Input) IsMultiPageBundle() bool {
	return len(in.Pages) > 0
}

// Metadata is the cross-type header of an extraction.
type Metadata struct {
	PropertyName    string  `json:"propertyName,omitempty"`
	PropertyAddress string  `json:"propertyAddress,omitempty"`
	TotalSquareFeet float64 `json:"totalSquareFeet,omitempty"`
	TotalUnits      float64 `json:"totalUnits,omitempty"`
	ExtractedDate   string  `json:"extractedDate,omitempty"`
	Confidence      float64 `json:"confidence,omitempty"`
}

// ExtractedData is the extraction envelope. Data stays raw and polymorphic
// here; the normalizer is the single boundary that converts it into the
// canonical per-type shape.
type ExtractedData struct {
	DocumentType constants.DocumentType `json:"documentType"`
	Metadata     Metadata               `json:"metadata"`
	Data         json.RawMessage        `json:"data"`
}

// Service runs one-shot extraction calls. ModelForType, when set, resolves
// a fine-tuned model id to use for a document type; empty means the
// configured default.
type Service struct {
	invoker      llm.Invoker
	log          *slog.Logger
	ModelForType func(context.Context, constants.DocumentType) string
	// PromptForType returns the (possibly feedback-augmented) extraction
	// prompt. Defaults to the static catalog.
	PromptForType func(constants.DocumentType) (string, bool)
}

func NewService(invoker llm.Invoker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		invoker:       invoker,
		log:           logger,
		PromptForType: prompts.Extraction,
	}
}

// Extract routes the input through a strategy based on its shape:
//
//   - pre-rasterized multi-page bundle -> all pages in one request, with
//     consolidation instructions appended when pages > 1
//   - PDF with estimated page count<=5 -> native PDF submission
//   - PDF past that limit -> ErrDocumentTooLarge, no model call
//   - single raster image -> one image
//   - anything else -> ErrUnsupportedFileType
func (s *Service) Extract(ctx context.Context, in Input, dt constants.DocumentType) (ExtractedData, error) {
	rid := uuid.New().String()
	start := time.Now()

	prompt, ok := s.PromptForType(dt)
	if !ok {
		return ExtractedData{}, fmt.Errorf("no extraction prompt for document type %q", dt)
	}

	req := llm.Request{}
	if s.ModelForType != nil {
		req.Model = s.ModelForType(ctx, dt)
	}

	switch {
	case in.IsMultiPageBundle():
		req.Images = in.Pages
		if len(in.Pages) > 1 {
			prompt = prompt + prompts.MultiPageInstructions(len(in.Pages))
		}
		s.log.Info("extract.strategy", "req_id", rid, "strategy", "multi_page_bundle", "pages", len(in.Pages), "type", string(dt))

	case constants.MapMIMEToFormat(in.MIMEType) == constants.PDF:
		pages := EstimatePageCount(in.Data)
		if pages > constants.MaxNativePDFPages {
			s.log.Warn("extract.too_large", "req_id", rid, "estimated_pages", pages, "bytes", len(in.Data))
			return ExtractedData{}, fmt.Errorf("%w (estimated %d pages, limit %d)", ErrDocumentTooLarge, pages, constants.MaxNativePDFPages)
		}
		req.Document = &llm.NativeDocument{Filename: in.Filename, Data: in.Data}
		s.log.Info("extract.strategy", "req_id", rid, "strategy", "native_pdf", "estimated_pages", pages, "type", string(dt))

	case constants.MapMIMEToFormat(in.MIMEType) == constants.IMAGE:
		req.Images = []llm.Image{{MIMEType: in.MIMEType, Data: in.Data}}
		s.log.Info("extract.strategy", "req_id", rid, "strategy", "single_image", "type", string(dt))

	default:
		return ExtractedData{}, fmt.Errorf("%w: %q", ErrUnsupportedFileType, in.MIMEType)
	}

	req.Prompt = prompt

	resp, err := s.invoker.Invoke(ctx, req)
	if err != nil {
		return ExtractedData{}, fmt.Errorf("extract %s: %w", dt, err)
	}

	parsed, err := llm.ParseJSON(resp.Content)
	if err != nil {
		return ExtractedData{}, fmt.Errorf("extract %s: %w", dt, err)
	}

	out, err := decodeEnvelope(parsed, dt)
	if err != nil {
		return ExtractedData{}, err
	}

	s.log.Info("extract.ok",
		"req_id", rid,
		"type", string(dt),
		"model", resp.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func decodeEnvelope(parsed map[string]any, want constants.DocumentType) (ExtractedData, error) {
	payload, err := json.Marshal(parsed)
	if err != nil {
		return ExtractedData{}, fmt.Errorf("encode extraction payload: %w", err)
	}
	if err := llm.ValidateJSONAgainstSchema(llm.ExtractionEnvelopeSchema(), payload); err != nil {
		return ExtractedData{}, fmt.Errorf("%w: %v", ErrInvalidExtractionResponse, err)
	}

	rawType, _ := parsed["documentType"].(string)
	data := parsed["data"]

	dt, ok := constants.CanonicalizeDocumentType(rawType)
	if !ok {
		// Trust the caller's classification over a mislabeled response.
		dt = want
	}

	dataBytes, err := json.Marshal(data)
	if err != nil {
		return ExtractedData{}, fmt.Errorf("%w: encode data payload: %v", ErrInvalidExtractionResponse, err)
	}

	var md Metadata
	if rawMD, ok := parsed["metadata"]; ok {
		if b, err := json.Marshal(rawMD); err == nil {
			_ = json.Unmarshal(b, &md)
		}
	}
	if c, ok := parsed["confidence"].(float64); ok && md.Confidence == 0 {
		md.Confidence = c
	}

	return ExtractedData{DocumentType: dt, Metadata: md, Data: dataBytes}, nil
}

// EstimatePageCount reads the page tree when the PDF parses, and falls back
// to the size-per-page heuristic when it does not.
func EstimatePageCount(data []byte) int {
	if r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data))); err == nil {
		if n := r.NumPage(); n > 0 {
			return n
		}
	}
	pages := len(data) / constants.EstimatedBytesPerPage
	if pages < 1 {
		pages = 1
	}
	return pages
}
