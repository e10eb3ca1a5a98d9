package extract

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/CamiloRuizJ/rexeli/constants"
	"github.com/CamiloRuizJ/rexeli/internal/llm"
)

type stubInvoker struct {
	content string
	err     error
	calls   int
	lastReq llm.Request
}

func (s *stubInvoker) Invoke(_ context.Context, req llm.Request) (llm.Response, error) {
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return llm.Response{}, s.err
	}
	return llm.Response{Content: s.content, Model: "gpt-4o"}, nil
}

const rentRollEnvelope = `{"documentType":"rent_roll","confidence":0.9,"data":{"tenants":[],"summary":{}}}`

// garbagePDF has no readable page tree, so page count falls back to the
// size heuristic.
func garbagePDF(bytesLen int) []byte {
	return bytes.Repeat([]byte{0xAB}, bytesLen)
}

func TestExtractNativePDFWithinPageLimit(t *testing.T) {
	inv := &stubInvoker{content: rentRollEnvelope}
	svc := NewService(inv, nil)

	in := Input{
		Filename: "rentroll.pdf",
		MIMEType: "application/pdf",
		Data:     garbagePDF(3 * constants.EstimatedBytesPerPage),
	}
	got, err := svc.Extract(context.Background(), in, constants.RentRoll)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.DocumentType != constants.RentRoll {
		t.Fatalf("DocumentType = %s", got.DocumentType)
	}
	if inv.calls != 1 {
		t.Fatalf("invocations = %d, want 1", inv.calls)
	}
	if inv.lastReq.Document == nil {
		t.Fatal("native PDF strategy must attach the document")
	}
	if len(inv.lastReq.Images) != 0 {
		t.Fatal("native PDF strategy must not attach images")
	}
}

func TestExtractOversizedPDFFailsBeforeModelCall(t *testing.T) {
	inv := &stubInvoker{content: rentRollEnvelope}
	svc := NewService(inv, nil)

	in := Input{
		Filename: "big.pdf",
		MIMEType: "application/pdf",
		Data:     garbagePDF(8 * constants.EstimatedBytesPerPage),
	}
	_, err := svc.Extract(context.Background(), in, constants.RentRoll)
	if !errors.Is(err, ErrDocumentTooLarge) {
		t.Fatalf("error = %v, want ErrDocumentTooLarge", err)
	}
	if !strings.Contains(err.Error(), "convert the PDF to page images") {
		t.Fatalf("error must carry the client-side remediation hint: %v", err)
	}
	if inv.calls != 0 {
		t.Fatalf("invocations = %d, want 0 (size check precedes any model call)", inv.calls)
	}
}

func TestExtractMultiPageBundle(t *testing.T) {
	inv := &stubInvoker{content: rentRollEnvelope}
	svc := NewService(inv, nil)

	pages := []llm.Image{
		{MIMEType: "image/png", Data: []byte{1}},
		{MIMEType: "image/png", Data: []byte{2}},
		{MIMEType: "image/png", Data: []byte{3}},
	}
	_, err := svc.Extract(context.Background(), Input{Filename: "scan", Pages: pages}, constants.RentRoll)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(inv.lastReq.Images) != 3 {
		t.Fatalf("request images = %d, want 3", len(inv.lastReq.Images))
	}
	if !strings.Contains(inv.lastReq.Prompt, "3") || !strings.Contains(strings.ToLower(inv.lastReq.Prompt), "consolidat") {
		t.Fatal("multi-page prompt must carry consolidation instructions with the page count")
	}
}

func TestExtractSinglePageBundleKeepsBasePrompt(t *testing.T) {
	inv := &stubInvoker{content: rentRollEnvelope}
	svc := NewService(inv, nil)

	pages := []llm.Image{{MIMEType: "image/png", Data: []byte{1}}}
	_, err := svc.Extract(context.Background(), Input{Filename: "scan", Pages: pages}, constants.RentRoll)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if strings.Contains(strings.ToLower(inv.lastReq.Prompt), "consolidat") {
		t.Fatal("single page must not get multi-page consolidation instructions")
	}
}

func TestExtractSingleImage(t *testing.T) {
	inv := &stubInvoker{content: rentRollEnvelope}
	svc := NewService(inv, nil)

	in := Input{Filename: "page.jpg", MIMEType: "image/jpeg", Data: []byte{0xFF, 0xD8}}
	_, err := svc.Extract(context.Background(), in, constants.RentRoll)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(inv.lastReq.Images) != 1 || inv.lastReq.Document != nil {
		t.Fatal("single image strategy must send exactly one image and no native document")
	}
}

func TestExtractUnsupportedFileType(t *testing.T) {
	inv := &stubInvoker{content: rentRollEnvelope}
	svc := NewService(inv, nil)

	in := Input{Filename: "doc.docx", MIMEType: "application/msword", Data: []byte{1}}
	_, err := svc.Extract(context.Background(), in, constants.RentRoll)
	if !errors.Is(err, ErrUnsupportedFileType) {
		t.Fatalf("error = %v, want ErrUnsupportedFileType", err)
	}
	if inv.calls != 0 {
		t.Fatalf("invocations = %d, want 0", inv.calls)
	}
}

func TestExtractRejectsEnvelopeWithoutData(t *testing.T) {
	inv := &stubInvoker{content: `{"documentType":"rent_roll"}`}
	svc := NewService(inv, nil)

	in := Input{Filename: "page.jpg", MIMEType: "image/jpeg", Data: []byte{1}}
	_, err := svc.Extract(context.Background(), in, constants.RentRoll)
	if !errors.Is(err, ErrInvalidExtractionResponse) {
		t.Fatalf("error = %v, want ErrInvalidExtractionResponse", err)
	}
}

func TestExtractTrustsCallerTypeOverMislabeledResponse(t *testing.T) {
	inv := &stubInvoker{content: `{"documentType":"mystery_doc","data":{"tenants":[]}}`}
	svc := NewService(inv, nil)

	in := Input{Filename: "page.jpg", MIMEType: "image/jpeg", Data: []byte{1}}
	got, err := svc.Extract(context.Background(), in, constants.RentRoll)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.DocumentType != constants.RentRoll {
		t.Fatalf("DocumentType = %s, want the caller's rent_roll", got.DocumentType)
	}
}

func TestExtractModelForTypeHook(t *testing.T) {
	inv := &stubInvoker{content: rentRollEnvelope}
	svc := NewService(inv, nil)

	type ctxKey struct{}
	var hookCtx context.Context
	svc.ModelForType = func(ctx context.Context, _ constants.DocumentType) string {
		hookCtx = ctx
		return "ft:gpt-4o:rexeli:rent-roll:abc"
	}

	ctx := context.WithValue(context.Background(), ctxKey{}, "caller")
	in := Input{Filename: "page.jpg", MIMEType: "image/jpeg", Data: []byte{1}}
	if _, err := svc.Extract(ctx, in, constants.RentRoll); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if inv.lastReq.Model != "ft:gpt-4o:rexeli:rent-roll:abc" {
		t.Fatalf("request model = %q", inv.lastReq.Model)
	}
	if hookCtx == nil || hookCtx.Value(ctxKey{}) != "caller" {
		t.Fatal("hook did not receive the caller's context")
	}
}

func TestEstimatePageCountHeuristic(t *testing.T) {
	tests := []struct {
		bytes int
		want  int
	}{
		{10, 1},
		{constants.EstimatedBytesPerPage, 1},
		{3 * constants.EstimatedBytesPerPage, 3},
		{8 * constants.EstimatedBytesPerPage, 8},
	}
	for _, tt := range tests {
		if got := EstimatePageCount(garbagePDF(tt.bytes)); got != tt.want {
			t.Fatalf("EstimatePageCount(%d bytes) = %d, want %d", tt.bytes, got, tt.want)
		}
	}
}
