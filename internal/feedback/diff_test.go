package feedback

import (
	"reflect"
	"testing"
)

func TestCategorizeErrorCascadePrecedence(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		raw      any
		verified any
		want     ErrorCategory
	}{
		{"date beats total", "summary.totalByDate", float64(5), float64(6), DateFormatError},
		{"date path", "leaseStart", "1/5/24", "2024-01-05", DateFormatError},
		{"nil raw is missing data", "propertyName", nil, "100 Main St", MissingData},
		{"blank raw is missing data", "propertyName", "  ", "100 Main St", MissingData},
		{"currency before calculation", "totalRent", float64(100), float64(200), CurrencyFormatError},
		{"calculation", "grandTotal", float64(100), float64(200), CalculationError},
		{"unit conversion", "squareFootage", float64(100), float64(929), UnitConversionError},
		{"table parsing", "tenants.3.name", "Acme", "Acme Corp", TableParsingError},
		{"misidentification", "landlordName", "Jones Property Management", "Jones Holdings LLC", FieldMisidentification},
		{"other", "flag", true, false, OtherError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategorizeError(tt.path, tt.raw, tt.verified); got != tt.want {
				t.Fatalf("CategorizeError(%q) = %s, want %s", tt.path, got, tt.want)
			}
		})
	}
}

func TestCategorizeErrorDeterministic(t *testing.T) {
	for i := 0; i < 50; i++ {
		if got := CategorizeError("summary.totalByDate", float64(5), float64(6)); got != DateFormatError {
			t.Fatalf("run %d: got %s, want %s", i, got, DateFormatError)
		}
	}
}

func TestAnalyzeDifferencesWalksNestedStructures(t *testing.T) {
	raw := map[string]any{
		"propertyName": "100 Main",
		"summary": map[string]any{
			"totalIncome": float64(1000),
		},
		"tenants": []any{
			map[string]any{"name": "Acme", "baseRent": float64(10)},
			map[string]any{"name": "Beta", "baseRent": float64(20)},
		},
	}
	verified := map[string]any{
		"propertyName": "100 Main",
		"summary": map[string]any{
			"totalIncome": float64(1200),
		},
		"tenants": []any{
			map[string]any{"name": "Acme", "baseRent": float64(10)},
			map[string]any{"name": "Beta Corp", "baseRent": float64(20)},
		},
	}

	diffs, _ := AnalyzeDifferences(raw, verified)
	if len(diffs) != 2 {
		t.Fatalf("got %d differences, want 2: %+v", len(diffs), diffs)
	}

	paths := map[string]ErrorCategory{}
	for _, d := range diffs {
		paths[d.Path] = d.Category
	}
	if paths["summary.totalIncome"] != CalculationError {
		t.Fatalf("summary.totalIncome category = %s", paths["summary.totalIncome"])
	}
	if paths["tenants.1.name"] != TableParsingError {
		t.Fatalf("tenants.1.name category = %s", paths["tenants.1.name"])
	}
}

func TestAnalyzeDifferencesChangeTypes(t *testing.T) {
	raw := map[string]any{
		"kept":    "same",
		"wrong":   "a much longer raw value here",
		"extra":   "only in raw",
		"typeFlip": float64(5),
	}
	verified := map[string]any{
		"kept":    "same",
		"wrong":   "a much longer verified value",
		"added":   "only in verified",
		"typeFlip": "5",
	}

	diffs, _ := AnalyzeDifferences(raw, verified)
	byPath := map[string]Difference{}
	for _, d := range diffs {
		byPath[d.Path] = d
	}

	if d := byPath["wrong"]; d.ChangeType != "value_mismatch" {
		t.Fatalf("wrong.ChangeType = %s", d.ChangeType)
	}
	if d := byPath["extra"]; d.ChangeType != "extra_field" {
		t.Fatalf("extra.ChangeType = %s", d.ChangeType)
	}
	if d := byPath["added"]; d.ChangeType != "missing_field" {
		t.Fatalf("added.ChangeType = %s", d.ChangeType)
	}
	if _, ok := byPath["kept"]; ok {
		t.Fatal("equal leaf reported as difference")
	}
	if _, ok := byPath["typeFlip"]; !ok {
		t.Fatal("type change not reported")
	}
}

func TestPatternsGroupByGenericPath(t *testing.T) {
	raw := map[string]any{
		"tenants": []any{
			map[string]any{"baseRent": float64(10)},
			map[string]any{"baseRent": float64(20)},
			map[string]any{"baseRent": float64(30)},
		},
	}
	verified := map[string]any{
		"tenants": []any{
			map[string]any{"baseRent": float64(11)},
			map[string]any{"baseRent": float64(21)},
			map[string]any{"baseRent": float64(31)},
		},
	}

	_, patterns := AnalyzeDifferences(raw, verified)
	if len(patterns) != 1 {
		t.Fatalf("got %d patterns, want 1 (rows should group): %+v", len(patterns), patterns)
	}
	p := patterns[0]
	if p.FieldPath != "tenants.[].baseRent" {
		t.Fatalf("FieldPath = %s", p.FieldPath)
	}
	if p.Frequency != 3 {
		t.Fatalf("Frequency = %d, want 3", p.Frequency)
	}
	if len(p.ExampleCorrections) != 3 {
		t.Fatalf("examples = %d, want 3", len(p.ExampleCorrections))
	}
}

func TestPatternsCapExampleCorrections(t *testing.T) {
	var comps []any
	var verified []any
	for i := 0; i < 8; i++ {
		comps = append(comps, map[string]any{"baseRent": float64(i)})
		verified = append(verified, map[string]any{"baseRent": float64(i + 100)})
	}

	_, patterns := AnalyzeDifferences(
		map[string]any{"tenants": comps},
		map[string]any{"tenants": verified},
	)
	if len(patterns) != 1 {
		t.Fatalf("got %d patterns, want 1", len(patterns))
	}
	if got := len(patterns[0].ExampleCorrections); got != maxExamplesPerPattern {
		t.Fatalf("examples = %d, want %d", got, maxExamplesPerPattern)
	}
	if patterns[0].Frequency != 8 {
		t.Fatalf("Frequency = %d, want 8", patterns[0].Frequency)
	}
}

func TestAnalyzeDifferencesPure(t *testing.T) {
	raw := map[string]any{"a": float64(1)}
	verified := map[string]any{"a": float64(2)}

	first, _ := AnalyzeDifferences(raw, verified)
	second, _ := AnalyzeDifferences(raw, verified)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("repeated analysis diverged")
	}
	if raw["a"] != float64(1) || verified["a"] != float64(2) {
		t.Fatal("inputs mutated")
	}
}
