package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/CamiloRuizJ/rexeli/constants"
	"github.com/CamiloRuizJ/rexeli/internal/extract"
	"github.com/CamiloRuizJ/rexeli/internal/llm"
	"github.com/CamiloRuizJ/rexeli/internal/repository"
)

type stubInvoker struct {
	mu       sync.Mutex
	byPrompt func(req llm.Request) (string, error)
	calls    int
}

func (s *stubInvoker) Invoke(_ context.Context, req llm.Request) (llm.Response, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	content, err := s.byPrompt(req)
	if err != nil {
		return llm.Response{}, err
	}
	return llm.Response{Content: content, Model: "gpt-4o"}, nil
}

type memDocs struct {
	mu   sync.Mutex
	byID map[string]*repository.TrainingDocument
	seq  int
}

func newMemDocs() *memDocs {
	return &memDocs{byID: map[string]*repository.TrainingDocument{}}
}

func (m *memDocs) Create(_ context.Context, doc *repository.TrainingDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	doc.ID = fmt.Sprintf("doc-%d", m.seq)
	doc.Version = 1
	cp := *doc
	m.byID[doc.ID] = &cp
	return nil
}

func (m *memDocs) GetByID(_ context.Context, id string) (*repository.TrainingDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.byID[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *doc
	return &cp, nil
}

func (m *memDocs) FinishExtraction(_ context.Context, id string, raw json.RawMessage, confidence float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.byID[id]
	if !ok {
		return errors.New("not found")
	}
	doc.RawExtraction = raw
	doc.ExtractionConfidence = confidence
	doc.ProcessingStatus = constants.ProcessingCompleted
	return nil
}

func (m *memDocs) FinishExtractionFailure(_ context.Context, id string, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.byID[id]
	if !ok {
		return errors.New("not found")
	}
	doc.ProcessingStatus = constants.ProcessingFailed
	doc.ErrorMessage = message
	return nil
}

func (m *memDocs) SaveVerification(context.Context, string, repository.Verification) error {
	return nil
}
func (m *memDocs) ListVerified(context.Context, constants.DocumentType) ([]*repository.TrainingDocument, error) {
	return nil, nil
}
func (m *memDocs) ListForTraining(context.Context, constants.DocumentType, constants.DatasetSplit) ([]*repository.TrainingDocument, error) {
	return nil, nil
}
func (m *memDocs) CountVerified(context.Context, constants.DocumentType) (int64, error) {
	return 0, nil
}
func (m *memDocs) AssignSplits(context.Context, constants.DocumentType, float64) error {
	return nil
}

type noModels struct{}

func (noModels) Create(context.Context, *repository.ModelVersion) error { return nil }
func (noModels) Activate(context.Context, string) error                 { return nil }
func (noModels) ActiveForType(context.Context, constants.DocumentType) (*repository.ModelVersion, error) {
	return nil, errors.New("none active")
}

type discardStore struct{}

func (discardStore) Save(_ context.Context, _ string, data io.Reader) error {
	_, err := io.Copy(io.Discard, data)
	return err
}
func (discardStore) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not found")
}

func newTestService(inv llm.Invoker, docs repository.TrainingDocumentRepository, concurrency int) *Service {
	return New(inv, nil, docs, noModels{}, discardStore{}, concurrency, slog.New(slog.DiscardHandler))
}

func imageItem(name string) BatchItem {
	return BatchItem{
		Input: extract.Input{
			Filename: name,
			MIMEType: "image/png",
			Data:     []byte{0x89, 'P', 'N', 'G'},
		},
		DocumentType: constants.RentRoll,
	}
}

func TestProcessBatchKeepsOrderAndIsolatesFailures(t *testing.T) {
	inv := &stubInvoker{byPrompt: func(llm.Request) (string, error) {
		return `{"documentType":"rent_roll","confidence":0.9,"data":{"tenants":[],"summary":{}}}`, nil
	}}
	docs := newMemDocs()
	svc := newTestService(inv, docs, 2)

	items := []BatchItem{imageItem("a.png"), {
		Input:        extract.Input{Filename: "b.docx", MIMEType: "application/msword", Data: []byte{1}},
		DocumentType: constants.RentRoll,
	}, imageItem("c.png")}

	results, err := svc.ProcessBatch(context.Background(), items)
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	for i, r := range results {
		if r.Index != i {
			t.Fatalf("result %d carries index %d", i, r.Index)
		}
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Fatalf("healthy items failed: %v, %v", results[0].Err, results[2].Err)
	}
	if !errors.Is(results[1].Err, extract.ErrUnsupportedFileType) {
		t.Fatalf("results[1].Err = %v, want ErrUnsupportedFileType", results[1].Err)
	}
	if results[1].Document != nil {
		t.Fatal("failed item must not carry a document")
	}
	if results[0].Document.ProcessingStatus != constants.ProcessingCompleted {
		t.Fatalf("status = %s, want completed", results[0].Document.ProcessingStatus)
	}
}

func TestProcessBatchRecordsFailureOnDocumentRow(t *testing.T) {
	inv := &stubInvoker{byPrompt: func(llm.Request) (string, error) {
		return "no json here at all", nil
	}}
	docs := newMemDocs()
	svc := newTestService(inv, docs, 1)

	results, err := svc.ProcessBatch(context.Background(), []BatchItem{imageItem("a.png")})
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}
	if results[0].Err == nil {
		t.Fatal("unparseable response must surface on the item")
	}

	row, err := docs.GetByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if row.ProcessingStatus != constants.ProcessingFailed {
		t.Fatalf("status = %s, want failed", row.ProcessingStatus)
	}
	if row.ErrorMessage == "" {
		t.Fatal("failure message missing from the row")
	}
}

func TestExtractDocumentDataNormalizesPayload(t *testing.T) {
	inv := &stubInvoker{byPrompt: func(llm.Request) (string, error) {
		return `{"documentType":"broker_sales_comparables","confidence":0.85,"data":{"comparables":[{"pricePerSF":100},{"pricePerSF":300}]}}`, nil
	}}
	docs := newMemDocs()
	svc := newTestService(inv, docs, 1)

	doc, err := svc.ExtractDocumentData(context.Background(), extract.Input{
		Filename: "comps.png", MIMEType: "image/png", Data: []byte{1},
	}, constants.BrokerSalesComparables)
	if err != nil {
		t.Fatalf("ExtractDocumentData() error = %v", err)
	}
	if doc.ExtractionConfidence != 0.85 {
		t.Fatalf("confidence = %v, want 0.85", doc.ExtractionConfidence)
	}

	var payload map[string]any
	if err := json.Unmarshal(doc.RawExtraction, &payload); err != nil {
		t.Fatalf("decode stored payload: %v", err)
	}
	summary, ok := payload["summary"].(map[string]any)
	if !ok {
		t.Fatalf("summary missing after normalization: %v", payload)
	}
	if avg := summary["averagePricePerSF"]; avg != 200.0 {
		t.Fatalf("averagePricePerSF = %v, want 200", avg)
	}
}
