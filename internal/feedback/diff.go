// Package feedback diffs raw extractions against human-verified ones,
// classifies each difference, and aggregates recurring correction patterns
// into prompt improvements.
package feedback

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrorCategory is the closed taxonomy of extraction error classes.
type ErrorCategory string

const (
	DateFormatError        ErrorCategory = "date_format_error"
	MissingData            ErrorCategory = "missing_data"
	CurrencyFormatError    ErrorCategory = "currency_format_error"
	CalculationError       ErrorCategory = "calculation_error"
	UnitConversionError    ErrorCategory = "unit_conversion_error"
	TableParsingError      ErrorCategory = "table_parsing_error"
	FieldMisidentification ErrorCategory = "field_misidentification"
	OtherError             ErrorCategory = "other"
)

// Difference is one field-level divergence between the raw and verified
// extraction. Path is dot notation accumulated from the root.
type Difference struct {
	Path          string        `json:"path"`
	RawValue      any           `json:"raw_value"`
	VerifiedValue any           `json:"verified_value"`
	ChangeType    string        `json:"change_type"` // value_mismatch | missing_field | extra_field
	Category      ErrorCategory `json:"category"`
}

// Correction is one before -> after example kept with a pattern.
type Correction struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

// ErrorPattern groups differences by (field path, category). Derived data:
// recomputed per aggregation call, always reconstructable from the verified
// corpus.
type ErrorPattern struct {
	FieldPath          string        `json:"field_path"`
	ErrorType          ErrorCategory `json:"error_type"`
	Frequency          int           `json:"frequency"`
	ExampleCorrections []Correction  `json:"example_corrections"`
	AffectedDocuments  []string      `json:"affected_documents"`
}

// categoryRules is the ordered cascade assigning exactly one category per
// difference. First match wins; the order is load-bearing (a path naming
// both "date" and "total" is a date_format_error because the date rule is
// evaluated first). Do not reorder or convert to an unordered set.
var categoryRules = []struct {
	category ErrorCategory
	matches  func(path string, raw, verified any) bool
}{
	{DateFormatError, func(path string, _, _ any) bool {
		return pathContains(path, "date", "expiration", "lease_start", "leasestart", "leaseend")
	}},
	{MissingData, func(_ string, raw, _ any) bool {
		if raw == nil {
			return true
		}
		s, ok := raw.(string)
		return ok && strings.TrimSpace(s) == ""
	}},
	{CurrencyFormatError, func(path string, _, _ any) bool {
		return pathContains(path, "rent", "price", "amount", "cost")
	}},
	{CalculationError, func(path string, _, _ any) bool {
		return pathContains(path, "total", "sum", "average")
	}},
	{UnitConversionError, func(path string, _, _ any) bool {
		return pathContains(path, "square", "sqft", "sf", "footage")
	}},
	{TableParsingError, func(path string, _, _ any) bool {
		return pathContains(path, "tenant", "unit", "suite")
	}},
	{FieldMisidentification, func(_ string, raw, verified any) bool {
		return sameJSONType(raw, verified) && len(stringify(raw)) > 10
	}},
}

// CategorizeError assigns exactly one category via the ordered cascade.
// Deterministic for a fixed (path, raw, verified) triple.
func CategorizeError(path string, raw, verified any) ErrorCategory {
	for _, rule := range categoryRules {
		if rule.matches(path, raw, verified) {
			return rule.category
		}
	}
	return OtherError
}

// AnalyzeDifferences recursively walks the union of keys in raw and
// verified at every depth and records each unequal leaf. Pure function.
func AnalyzeDifferences(raw, verified map[string]any) ([]Difference, []ErrorPattern) {
	var diffs []Difference
	walkMaps("", raw, verified, &diffs)
	return diffs, patternsFromDifferences(diffs, "")
}

func walkMaps(prefix string, raw, verified map[string]any, out *[]Difference) {
	keys := make(map[string]struct{}, len(raw)+len(verified))
	for k := range raw {
		keys[k] = struct{}{}
	}
	for k := range verified {
		keys[k] = struct{}{}
	}

	ordered := make([]string, 0, len(keys))
	for k := range keys {
		ordered = append(ordered, k)
	}
	sort.Strings(ordered)

	for _, k := range ordered {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		rv, rOK := raw[k]
		vv, vOK := verified[k]
		walkValues(path, rv, rOK, vv, vOK, out)
	}
}

func walkValues(path string, rv any, rOK bool, vv any, vOK bool, out *[]Difference) {
	rm, rIsMap := rv.(map[string]any)
	vm, vIsMap := vv.(map[string]any)
	if rIsMap && vIsMap {
		walkMaps(path, rm, vm, out)
		return
	}
	ra, rIsArr := rv.([]any)
	va, vIsArr := vv.([]any)
	if rIsArr && vIsArr {
		n := len(ra)
		if len(va) > n {
			n = len(va)
		}
		for i := 0; i < n; i++ {
			var ev, wv any
			eOK, wOK := i < len(ra), i < len(va)
			if eOK {
				ev = ra[i]
			}
			if wOK {
				wv = va[i]
			}
			walkValues(path+"."+strconv.Itoa(i), ev, eOK, wv, wOK, out)
		}
		return
	}

	if leafEqual(rv, vv) && rOK == vOK {
		return
	}

	changeType := "value_mismatch"
	switch {
	case !rOK && vOK:
		changeType = "missing_field"
	case rOK && !vOK:
		changeType = "extra_field"
	}

	*out = append(*out, Difference{
		Path:          path,
		RawValue:      rv,
		VerifiedValue: vv,
		ChangeType:    changeType,
		Category:      CategorizeError(path, rv, vv),
	})
}

func patternsFromDifferences(diffs []Difference, docID string) []ErrorPattern {
	type key struct {
		path     string
		category ErrorCategory
	}
	grouped := make(map[key]*ErrorPattern)
	var order []key

	for _, d := range diffs {
		k := key{path: genericPath(d.Path), category: d.Category}
		p, ok := grouped[k]
		if !ok {
			p = &ErrorPattern{FieldPath: k.path, ErrorType: k.category}
			grouped[k] = p
			order = append(order, k)
		}
		p.Frequency++
		if len(p.ExampleCorrections) < maxExamplesPerPattern {
			p.ExampleCorrections = append(p.ExampleCorrections, Correction{
				Before: stringify(d.RawValue),
				After:  stringify(d.VerifiedValue),
			})
		}
		if docID != "" && !contains(p.AffectedDocuments, docID) {
			p.AffectedDocuments = append(p.AffectedDocuments, docID)
		}
	}

	out := make([]ErrorPattern, 0, len(order))
	for _, k := range order {
		out = append(out, *grouped[k])
	}
	return out
}

const maxExamplesPerPattern = 5

var reDigits = strings.NewReplacer(
	"0", "", "1", "", "2", "", "3", "", "4", "", "5", "", "6", "", "7", "", "8", "", "9", "",
)

// genericPath collapses array indexes so corrections on different rows of
// the same column group together ("tenants.3.baseRent" -> "tenants[].baseRent").
func genericPath(path string) string {
	parts := strings.Split(path, ".")
	for i, p := range parts {
		if p != "" && reDigits.Replace(p) == "" {
			parts[i] = "[]"
		}
	}
	return strings.Join(parts, ".")
}

func pathContains(path string, needles ...string) bool {
	lower := strings.ToLower(path)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

func sameJSONType(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprintf("%T", a) == fmt.Sprintf("%T", b)
}

func leafEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	return stringify(a) == stringify(b) && sameJSONType(a, b)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
