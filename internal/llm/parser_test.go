package llm

import (
	"errors"
	"strings"
	"testing"
)

func TestParseJSONRecoveryLadder(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"bare json", `{"documentType":"rent_roll","confidence":0.9}`},
		{"surrounding whitespace", "  \n{\"documentType\":\"rent_roll\",\"confidence\":0.9}\n "},
		{"json fence", "```json\n{\"documentType\":\"rent_roll\",\"confidence\":0.9}\n```"},
		{"bare fence", "```\n{\"documentType\":\"rent_roll\",\"confidence\":0.9}\n```"},
		{"fence with prose", "Here is the result:\n```json\n{\"documentType\":\"rent_roll\",\"confidence\":0.9}\n```\nLet me know if you need more."},
		{"unclosed fence", "```json\n{\"documentType\":\"rent_roll\",\"confidence\":0.9}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseJSON(tt.raw)
			if err != nil {
				t.Fatalf("ParseJSON() error = %v", err)
			}
			if got := m["documentType"]; got != "rent_roll" {
				t.Fatalf("documentType = %v, want rent_roll", got)
			}
			if got := m["confidence"]; got != 0.9 {
				t.Fatalf("confidence = %v, want 0.9", got)
			}
		})
	}
}

func TestParseJSONAllStrategiesExhausted(t *testing.T) {
	for _, raw := range []string{
		"",
		"I could not find any structured data in this document.",
		"```json\nnot json at all\n```",
	} {
		if _, err := ParseJSON(raw); err == nil {
			t.Fatalf("ParseJSON(%q) expected error", raw)
		} else if !IsParseError(err) {
			t.Fatalf("ParseJSON(%q) error = %v, want ParseError", raw, err)
		}
	}
}

func TestParseJSONDeterministic(t *testing.T) {
	raw := "```json\n{\"a\":1}\n```"
	first, err := ParseJSON(raw)
	if err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}
	second, err := ParseJSON(raw)
	if err != nil {
		t.Fatalf("ParseJSON() second call error = %v", err)
	}
	if first["a"] != second["a"] {
		t.Fatalf("repeated parse diverged: %v vs %v", first, second)
	}
}

func TestParseErrorKeepsBoundedRawPrefix(t *testing.T) {
	raw := "garbage " + strings.Repeat("x", 2000)
	_, err := ParseJSON(raw)
	if err == nil {
		t.Fatal("expected error")
	}
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("error type = %T, want *ParseError", err)
	}
	if len(pe.RawPrefix) != rawPrefixLen {
		t.Fatalf("RawPrefix length = %d, want %d", len(pe.RawPrefix), rawPrefixLen)
	}
	if !strings.HasPrefix(raw, pe.RawPrefix) {
		t.Fatal("RawPrefix is not a prefix of the raw response")
	}
}

func TestMapStatusErrorTaxonomy(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{401, ErrAuthentication},
		{403, ErrAuthentication},
		{429, ErrRateLimit},
		{500, ErrUpstreamServer},
		{503, ErrUpstreamServer},
	}
	for _, tt := range tests {
		err := MapStatusError(tt.status, "body")
		if !errors.Is(err, tt.want) {
			t.Fatalf("MapStatusError(%d) = %v, want wrapping %v", tt.status, err, tt.want)
		}
	}

	// 4xx outside the taxonomy passes through without a sentinel.
	err := MapStatusError(404, "body")
	for _, sentinel := range []error{ErrAuthentication, ErrRateLimit, ErrUpstreamServer} {
		if errors.Is(err, sentinel) {
			t.Fatalf("MapStatusError(404) unexpectedly wraps %v", sentinel)
		}
	}
}
