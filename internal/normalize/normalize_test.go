package normalize

import (
	"reflect"
	"testing"

	"github.com/CamiloRuizJ/rexeli/constants"
)

func salesPayload() map[string]any {
	return map[string]any{
		"comparables": []any{
			map[string]any{
				"propertyName": "100 Main St",
				"transactionDetails": map[string]any{
					"salePrice": float64(1000000),
					"saleDate":  "2024-01-15",
				},
				"pricingMetrics": map[string]any{
					"pricePerSF": float64(250),
					"capRate":    float64(0.06),
				},
			},
			map[string]any{
				"propertyName": "200 Oak Ave",
				"salePrice":    float64(2000000),
				"pricePerSF":   float64(350),
				"capRate":      float64(0.05),
			},
		},
	}
}

func TestNormalizeFlattensComparableNestings(t *testing.T) {
	out := Normalize(constants.BrokerSalesComparables, salesPayload())

	comps := out["comparables"].([]any)
	first := comps[0].(map[string]any)

	if first["salePrice"] != float64(1000000) {
		t.Fatalf("salePrice = %v, want 1000000", first["salePrice"])
	}
	if first["pricePerSF"] != float64(250) {
		t.Fatalf("pricePerSF = %v, want 250", first["pricePerSF"])
	}
	if _, ok := first["transactionDetails"]; ok {
		t.Fatal("transactionDetails container should be removed after flattening")
	}
	if _, ok := first["pricingMetrics"]; ok {
		t.Fatal("pricingMetrics container should be removed after flattening")
	}
}

func TestNormalizeExistingTopLevelFieldWins(t *testing.T) {
	payload := map[string]any{
		"comparables": []any{
			map[string]any{
				"salePrice": float64(999),
				"transactionDetails": map[string]any{
					"salePrice": float64(111),
				},
			},
		},
	}
	out := Normalize(constants.BrokerSalesComparables, payload)
	first := out["comparables"].([]any)[0].(map[string]any)
	if first["salePrice"] != float64(999) {
		t.Fatalf("salePrice = %v, want the pre-existing 999", first["salePrice"])
	}
}

func TestNormalizeComputesSalesSummary(t *testing.T) {
	out := Normalize(constants.BrokerSalesComparables, salesPayload())

	summary := out["summary"].(map[string]any)
	if summary["numberOfComparables"] != float64(2) {
		t.Fatalf("numberOfComparables = %v, want 2", summary["numberOfComparables"])
	}
	if summary["averagePricePerSF"] != float64(300) {
		t.Fatalf("averagePricePerSF = %v, want 300", summary["averagePricePerSF"])
	}
	pr := summary["priceRange"].(map[string]any)
	if pr["min"] != float64(1000000) || pr["max"] != float64(2000000) {
		t.Fatalf("priceRange = %v, want 1000000..2000000", pr)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, dt := range []constants.DocumentType{
		constants.BrokerSalesComparables,
		constants.BrokerLeaseComparables,
		constants.OfferingMemo,
		constants.FinancialStatements,
	} {
		once := Normalize(dt, salesPayload())
		twice := Normalize(dt, once)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("%s: second normalization changed the payload", dt)
		}
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	payload := salesPayload()
	Normalize(constants.BrokerSalesComparables, payload)
	if _, ok := payload["summary"]; ok {
		t.Fatal("input payload gained a summary key")
	}
}

func TestNormalizeDoesNotMutateNestedMaps(t *testing.T) {
	payload := map[string]any{
		"comparables": []any{
			map[string]any{"pricePerSF": float64(100)},
		},
		"summary": map[string]any{"numberOfComparables": float64(1)},
	}
	out := Normalize(constants.BrokerSalesComparables, payload)

	inner := payload["summary"].(map[string]any)
	if len(inner) != 1 {
		t.Fatalf("caller's summary map grew to %d keys: %v", len(inner), inner)
	}
	if got := out["summary"].(map[string]any); got["averagePricePerSF"] != float64(100) {
		t.Fatalf("averagePricePerSF = %v, want 100", got["averagePricePerSF"])
	}
}

func TestNormalizeDoesNotMutateStatementSections(t *testing.T) {
	payload := map[string]any{
		"operatingIncome": map[string]any{"currency": "USD"},
	}
	out := Normalize(constants.FinancialStatements, payload)

	inner := payload["operatingIncome"].(map[string]any)
	if len(inner) != 1 {
		t.Fatalf("caller's operatingIncome map grew to %d keys: %v", len(inner), inner)
	}
	section := out["operatingIncome"].(map[string]any)
	if _, ok := section["items"].([]any); !ok {
		t.Fatal("items scaffold missing from the output section")
	}
	if section["totalIncome"] != float64(0) {
		t.Fatalf("totalIncome = %v, want 0", section["totalIncome"])
	}
}

func TestNormalizePreservesUnknownFields(t *testing.T) {
	payload := map[string]any{
		"comparables":   []any{},
		"analystNotes":  "keep me",
		"customSection": map[string]any{"a": float64(1)},
	}
	out := Normalize(constants.BrokerSalesComparables, payload)
	if out["analystNotes"] != "keep me" {
		t.Fatal("unknown scalar field dropped")
	}
	if _, ok := out["customSection"].(map[string]any); !ok {
		t.Fatal("unknown object field dropped")
	}
}

func TestNormalizeFinancialStatementsScaffolding(t *testing.T) {
	out := Normalize(constants.FinancialStatements, map[string]any{})

	for _, key := range []string{"operatingIncome", "operatingExpenses", "noi", "balanceSheet", "capex"} {
		if _, ok := out[key].(map[string]any); !ok {
			t.Fatalf("missing %s object", key)
		}
	}
	income := out["operatingIncome"].(map[string]any)
	if _, ok := income["items"].([]any); !ok {
		t.Fatal("operatingIncome.items missing")
	}
	if income["totalIncome"] != float64(0) {
		t.Fatalf("totalIncome = %v, want 0", income["totalIncome"])
	}
}

func TestCalculateAverageSkipsNullValues(t *testing.T) {
	records := []map[string]any{
		{"f": float64(10)},
		{"f": nil},
		{"f": float64(20)},
	}
	if got := CalculateAverage(records, "f"); got != 15 {
		t.Fatalf("CalculateAverage = %v, want 15", got)
	}
}

func TestCalculateAverageEmpty(t *testing.T) {
	if got := CalculateAverage(nil, "f"); got != 0 {
		t.Fatalf("CalculateAverage(nil) = %v, want 0", got)
	}
	if got := CalculateAverage([]map[string]any{{"f": nil}}, "f"); got != 0 {
		t.Fatalf("CalculateAverage(all null) = %v, want 0", got)
	}
}

func TestCalculateRangeEmpty(t *testing.T) {
	min, max := CalculateRange(nil, "f")
	if min != 0 || max != 0 {
		t.Fatalf("CalculateRange(nil) = (%v, %v), want (0, 0)", min, max)
	}
}

func TestCalculateRange(t *testing.T) {
	records := []map[string]any{
		{"f": float64(30)},
		{"f": "not a number"},
		{"f": float64(10)},
		{"f": float64(20)},
	}
	min, max := CalculateRange(records, "f")
	if min != 10 || max != 30 {
		t.Fatalf("CalculateRange = (%v, %v), want (10, 30)", min, max)
	}
}
