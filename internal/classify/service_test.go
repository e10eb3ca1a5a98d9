package classify

import (
	"context"
	"errors"
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

func page() llm.Image {
	return llm.Image{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}
}

func TestClassifyValidTriple(t *testing.T) {
	inv := &stubInvoker{content: `{"type":"rent_roll","confidence":0.92,"reasoning":"unit and tenant columns with occupancy"}`}
	svc := NewService(inv, nil)

	got, err := svc.Classify(context.Background(), []llm.Image{page()})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Type != constants.RentRoll {
		t.Fatalf("Type = %s, want rent_roll", got.Type)
	}
	if got.Confidence != 0.92 {
		t.Fatalf("Confidence = %v, want 0.92", got.Confidence)
	}
	if inv.calls != 1 {
		t.Fatalf("invocations = %d, want 1", inv.calls)
	}
	if len(inv.lastReq.Images) != 1 {
		t.Fatalf("request images = %d, want 1", len(inv.lastReq.Images))
	}
}

func TestClassifyCanonicalizesAliases(t *testing.T) {
	inv := &stubInvoker{content: `{"type":"Comparable Sales","confidence":0.8,"reasoning":"sale price grid"}`}
	svc := NewService(inv, nil)

	got, err := svc.Classify(context.Background(), []llm.Image{page()})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Type != constants.BrokerSalesComparables {
		t.Fatalf("Type = %s, want broker_sales_comparables", got.Type)
	}
}

func TestClassifyRejectsIncompleteTriple(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing reasoning", `{"type":"rent_roll","confidence":0.9}`},
		{"missing confidence", `{"type":"rent_roll","reasoning":"columns"}`},
		{"missing type", `{"confidence":0.9,"reasoning":"columns"}`},
		{"unknown type", `{"type":"grocery_list","confidence":0.9,"reasoning":"milk and eggs"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &stubInvoker{content: tt.content}
			svc := NewService(inv, nil)

			_, err := svc.Classify(context.Background(), []llm.Image{page()})
			if !errors.Is(err, ErrInvalidClassificationResponse) {
				t.Fatalf("error = %v, want ErrInvalidClassificationResponse", err)
			}
			// Contract violations are final: exactly one model call.
			if inv.calls != 1 {
				t.Fatalf("invocations = %d, want 1", inv.calls)
			}
		})
	}
}

func TestClassifyNoPages(t *testing.T) {
	inv := &stubInvoker{content: `{}`}
	svc := NewService(inv, nil)

	_, err := svc.Classify(context.Background(), nil)
	if !errors.Is(err, ErrInvalidClassificationResponse) {
		t.Fatalf("error = %v, want ErrInvalidClassificationResponse", err)
	}
	if inv.calls != 0 {
		t.Fatalf("invocations = %d, want 0", inv.calls)
	}
}

func TestClassifyUnparseableResponse(t *testing.T) {
	inv := &stubInvoker{content: "I cannot tell what this document is."}
	svc := NewService(inv, nil)

	_, err := svc.Classify(context.Background(), []llm.Image{page()})
	if !llm.IsParseError(err) {
		t.Fatalf("error = %v, want ParseError", err)
	}
	if inv.calls != 1 {
		t.Fatalf("invocations = %d, want 1", inv.calls)
	}
}
