package feedback

import (
	"fmt"
	"sort"
	"strings"

	"github.com/CamiloRuizJ/rexeli/constants"
	"github.com/CamiloRuizJ/rexeli/internal/prompts"
)

// VerifiedExample is one reviewed document: the original extraction, the
// human-corrected one, and the reviewer's free-text notes.
type VerifiedExample struct {
	DocumentID string
	Raw        map[string]any
	Verified   map[string]any
	Notes      string
}

// Learnings is the aggregation result for one document type's verified
// corpus. Recomputed fresh on every call; nothing incremental.
type Learnings struct {
	DocumentType constants.DocumentType `json:"document_type"`
	Patterns     []ErrorPattern         `json:"patterns"`
	Suggestions  []string               `json:"suggestions"`
	NoteGuidance []string               `json:"note_guidance"`
}

// suggestionThreshold is the minimum aggregate frequency before a category
// earns an improvement suggestion. Below it the correction is treated as a
// one-off, not a pattern.
const suggestionThreshold = 3

// AggregateLearnings diffs every example, merges patterns across the
// corpus by (field path, category), mines verification notes, and emits
// suggestions for categories that clear the frequency threshold.
func AggregateLearnings(dt constants.DocumentType, corpus []VerifiedExample) Learnings {
	type key struct {
		path     string
		category ErrorCategory
	}
	merged := make(map[key]*ErrorPattern)
	var order []key
	var noteGuidance []string

	for _, ex := range corpus {
		diffs, _ := AnalyzeDifferences(ex.Raw, ex.Verified)
		for _, p := range patternsFromDifferences(diffs, ex.DocumentID) {
			k := key{path: p.FieldPath, category: p.ErrorType}
			existing, ok := merged[k]
			if !ok {
				cp := p
				merged[k] = &cp
				order = append(order, k)
				continue
			}
			existing.Frequency += p.Frequency
			for _, c := range p.ExampleCorrections {
				if len(existing.ExampleCorrections) < maxExamplesPerPattern {
					existing.ExampleCorrections = append(existing.ExampleCorrections, c)
				}
			}
			for _, id := range p.AffectedDocuments {
				if !contains(existing.AffectedDocuments, id) {
					existing.AffectedDocuments = append(existing.AffectedDocuments, id)
				}
			}
		}
		noteGuidance = append(noteGuidance, MineNotes(ex.Notes)...)
	}

	patterns := make([]ErrorPattern, 0, len(order))
	for _, k := range order {
		patterns = append(patterns, *merged[k])
	}
	sort.SliceStable(patterns, func(i, j int) bool {
		return patterns[i].Frequency > patterns[j].Frequency
	})

	return Learnings{
		DocumentType: dt,
		Patterns:     patterns,
		Suggestions:  GenerateImprovementSuggestions(patterns),
		NoteGuidance: dedupe(noteGuidance),
	}
}

// categorySuggestions maps each error class onto the instruction appended
// to future prompts once the class recurs.
var categorySuggestions = map[ErrorCategory]string{
	DateFormatError:        "Always output dates as ISO-8601 (YYYY-MM-DD); convert month names and two-digit years.",
	MissingData:            "Re-scan the document for fields left empty; values often appear in headers, footers, or summary blocks rather than the main table.",
	CurrencyFormatError:    "Output monetary values as plain numbers: strip currency symbols, thousands separators, and parenthesized negatives.",
	CalculationError:       "Recompute totals and averages from the listed rows instead of copying possibly stale document totals.",
	UnitConversionError:    "Keep square footage in square feet; convert acres or square meters and never mix rentable with usable area.",
	TableParsingError:      "Process every table row exactly once; watch for rows continuing onto the next page and multi-line tenant names.",
	FieldMisidentification: "Match each value to its column header before extracting; adjacent columns (e.g. base rent vs effective rent) are easy to swap.",
	OtherError:             "Double-check fields that reviewers corrected repeatedly; prefer exact transcription over paraphrase.",
}

// GenerateImprovementSuggestions emits one suggestion per error category
// whose summed frequency across the patterns is at least the threshold.
// At frequency 2 a category produces nothing.
func GenerateImprovementSuggestions(patterns []ErrorPattern) []string {
	totals := make(map[ErrorCategory]int)
	var order []ErrorCategory
	for _, p := range patterns {
		if _, seen := totals[p.ErrorType]; !seen {
			order = append(order, p.ErrorType)
		}
		totals[p.ErrorType] += p.Frequency
	}

	var out []string
	for _, cat := range order {
		if totals[cat] < suggestionThreshold {
			continue
		}
		if s, ok := categorySuggestions[cat]; ok {
			out = append(out, fmt.Sprintf("%s (seen %d times)", s, totals[cat]))
		}
	}
	return out
}

// noteKeywords maps reviewer-note vocabulary onto error categories.
// Ordered so mined guidance is stable across runs.
var noteKeywords = []struct {
	keyword  string
	category ErrorCategory
}{
	{"date", DateFormatError},
	{"missing", MissingData},
	{"currency", CurrencyFormatError},
	{"dollar", CurrencyFormatError},
	{"total", CalculationError},
	{"math", CalculationError},
	{"square", UnitConversionError},
	{"sqft", UnitConversionError},
	{"row", TableParsingError},
	{"table", TableParsingError},
	{"column", FieldMisidentification},
}

var actionableMarkers = []string{"should", "must", "need to", "always", "never", "remember"}

// MineNotes extracts actionable guidance from free-text verification
// notes: sentences containing an instruction marker, plus a tag for each
// category keyword present.
func MineNotes(notes string) []string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil
	}

	var out []string
	for _, sentence := range splitSentences(notes) {
		lower := strings.ToLower(sentence)
		for _, marker := range actionableMarkers {
			if strings.Contains(lower, marker) {
				out = append(out, strings.TrimSpace(sentence))
				break
			}
		}
	}

	lower := strings.ToLower(notes)
	for _, nk := range noteKeywords {
		if strings.Contains(lower, nk.keyword) {
			out = append(out, fmt.Sprintf("Reviewer notes mention %s issues (%s).", nk.keyword, nk.category))
		}
	}
	return out
}

// BuildEnhancedSystemPrompt appends the learned corrections section to a
// base prompt by pure composition; the catalog entry is never mutated.
func BuildEnhancedSystemPrompt(basePrompt string, learnings Learnings) string {
	if len(learnings.Suggestions) == 0 && len(learnings.NoteGuidance) == 0 {
		return basePrompt
	}

	var b strings.Builder
	b.WriteString("COMMON ERRORS TO AVOID (learned from human corrections):\n")
	for _, s := range learnings.Suggestions {
		b.WriteString("- ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	for _, g := range learnings.NoteGuidance {
		b.WriteString("- ")
		b.WriteString(g)
		b.WriteString("\n")
	}

	examples := topExamples(learnings.Patterns, 5)
	if len(examples) > 0 {
		b.WriteString("\nPast corrections, for reference:\n")
		for _, e := range examples {
			b.WriteString(fmt.Sprintf("- %s: %q -> %q\n", e.path, e.before, e.after))
		}
	}

	return prompts.Augment(basePrompt, b.String())
}

type exampleRef struct {
	path, before, after string
}

func topExamples(patterns []ErrorPattern, n int) []exampleRef {
	var out []exampleRef
	for _, p := range patterns {
		for _, c := range p.ExampleCorrections {
			out = append(out, exampleRef{path: p.FieldPath, before: c.Before, after: c.After})
			if len(out) == n {
				return out
			}
		}
	}
	return out
}

func splitSentences(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
}

func dedupe(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	var out []string
	for _, s := range list {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
