package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	reJSONFence = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	reAnyFence  = regexp.MustCompile("(?s)```\\s*(.*?)\\s*```")
)

// ParseJSON recovers a JSON object from raw model output. Models wrap JSON
// in markdown fences or leave stray formatting around it often enough that
// a strict parse alone loses usable responses. Strategies are tried in
// order, first success wins:
//
//  1. direct parse of the full text
//  2. contents of a ```json fenced block
//  3. contents of any fenced block
//  4. the text with leading/trailing fence markers trimmed
//
// No semantic validation happens here; that is the caller's job.
func ParseJSON(raw string) (map[string]any, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, newParseError(raw)
	}

	if m, ok := tryParse(trimmed); ok {
		return m, nil
	}

	if match := reJSONFence.FindStringSubmatch(trimmed); match != nil {
		if m, ok := tryParse(match[1]); ok {
			return m, nil
		}
	}

	if match := reAnyFence.FindStringSubmatch(trimmed); match != nil {
		if m, ok := tryParse(match[1]); ok {
			return m, nil
		}
	}

	stripped := strings.TrimSpace(trimmed)
	stripped = strings.TrimPrefix(stripped, "```json")
	stripped = strings.TrimPrefix(stripped, "```")
	stripped = strings.TrimSuffix(strings.TrimSpace(stripped), "```")
	if m, ok := tryParse(strings.TrimSpace(stripped)); ok {
		return m, nil
	}

	return nil, newParseError(raw)
}

func tryParse(s string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, false
	}
	return m, true
}
