// Package normalize reshapes extraction output into the canonical
// per-document-type record. It is the single authorized boundary between
// the model's untrusted polymorphic payload and the rest of the system.
// Pure, no I/O, never fails: unexpected shapes pass through best-effort.
package normalize

import (
	"math"

	"github.com/CamiloRuizJ/rexeli/constants"
)

// nested sub-objects some model responses wrap comparable fields in
var comparableNestings = []string{
	"transactionDetails",
	"pricingMetrics",
	"propertyCharacteristics",
}

// Normalize returns the canonical payload for a document type. All rules
// are idempotent: normalizing an already-canonical payload returns it
// unchanged. Fields present in the input are never discarded; the rules
// only add defaults and flatten known nestings.
func Normalize(dt constants.DocumentType, payload map[string]any) map[string]any {
	if payload == nil {
		return map[string]any{}
	}
	out := cloneValue(payload).(map[string]any)

	switch dt {
	case constants.BrokerSalesComparables:
		out = flattenComparables(out)
		ensureSalesSummary(out)
	case constants.BrokerLeaseComparables:
		out = flattenComparables(out)
		ensureLeaseSummary(out)
	case constants.OfferingMemo:
		ensureObject(out, "propertyOverview")
		ensureArray(out, "investmentHighlights")
		ensureObject(out, "financialSummary")
		ensureObject(out, "marketOverview")
	case constants.FinancialStatements:
		ensureStatementSection(out, "operatingIncome", "totalIncome")
		ensureStatementSection(out, "operatingExpenses", "totalExpenses")
		ensureObject(out, "noi")
		ensureObject(out, "balanceSheet")
		capex := ensureObject(out, "capex")
		ensureArray(capex, "items")
	}

	return out
}

// flattenComparables lifts fields out of the known nested sub-objects into
// flat per-comparable records. Existing top-level fields win over nested
// duplicates.
func flattenComparables(payload map[string]any) map[string]any {
	comps, ok := payload["comparables"].([]any)
	if !ok {
		return payload
	}

	flattened := make([]any, len(comps))
	for i, c := range comps {
		record, ok := c.(map[string]any)
		if !ok {
			flattened[i] = c
			continue
		}
		flat := cloneMap(record)
		for _, nesting := range comparableNestings {
			nested, ok := flat[nesting].(map[string]any)
			if !ok {
				continue
			}
			for k, v := range nested {
				if _, exists := flat[k]; !exists {
					flat[k] = v
				}
			}
			delete(flat, nesting)
		}
		flattened[i] = flat
	}
	payload["comparables"] = flattened
	return payload
}

func ensureSalesSummary(payload map[string]any) {
	comps := comparableRecords(payload)
	summary := ensureObject(payload, "summary")

	setIfAbsent(summary, "numberOfComparables", float64(len(comps)))
	setIfAbsent(summary, "averagePricePerSF", CalculateAverage(comps, "pricePerSF"))
	setIfAbsent(summary, "averageCapRate", CalculateAverage(comps, "capRate"))
	if _, ok := summary["priceRange"]; !ok {
		min, max := CalculateRange(comps, "salePrice")
		summary["priceRange"] = map[string]any{"min": min, "max": max}
	}
}

func ensureLeaseSummary(payload map[string]any) {
	comps := comparableRecords(payload)
	summary := ensureObject(payload, "summary")

	setIfAbsent(summary, "numberOfComparables", float64(len(comps)))
	setIfAbsent(summary, "averageBaseRent", CalculateAverage(comps, "baseRentPerSF"))
	setIfAbsent(summary, "averageEffectiveRent", CalculateAverage(comps, "effectiveRentPerSF"))
	if _, ok := summary["rentRange"]; !ok {
		min, max := CalculateRange(comps, "baseRentPerSF")
		summary["rentRange"] = map[string]any{"min": min, "max": max}
	}
}

func ensureStatementSection(payload map[string]any, key, totalKey string) {
	section := ensureObject(payload, key)
	ensureArray(section, "items")
	setIfAbsent(section, totalKey, float64(0))
}

// CalculateAverage averages a numeric field across records, excluding
// null/missing/NaN values entirely rather than treating them as zero.
// Empty input yields 0.
func CalculateAverage(records []map[string]any, field string) float64 {
	var sum float64
	var count int
	for _, r := range records {
		v, ok := numericField(r, field)
		if !ok {
			continue
		}
		sum += v
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// CalculateRange returns the min and max of a numeric field across records
// with the same ignore-invalid-values rule. Empty input yields (0, 0).
func CalculateRange(records []map[string]any, field string) (float64, float64) {
	var min, max float64
	found := false
	for _, r := range records {
		v, ok := numericField(r, field)
		if !ok {
			continue
		}
		if !found || v < min {
			min = v
		}
		if !found || v > max {
			max = v
		}
		found = true
	}
	if !found {
		return 0, 0
	}
	return min, max
}

func comparableRecords(payload map[string]any) []map[string]any {
	comps, ok := payload["comparables"].([]any)
	if !ok {
		return nil
	}
	records := make([]map[string]any, 0, len(comps))
	for _, c := range comps {
		if r, ok := c.(map[string]any); ok {
			records = append(records, r)
		}
	}
	return records
}

func numericField(r map[string]any, field string) (float64, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return 0, false
	}
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func ensureObject(m map[string]any, key string) map[string]any {
	if existing, ok := m[key].(map[string]any); ok {
		return existing
	}
	if _, present := m[key]; present && m[key] != nil {
		// unexpected non-object value: leave it untouched
		return map[string]any{}
	}
	obj := map[string]any{}
	m[key] = obj
	return obj
}

func ensureArray(m map[string]any, key string) {
	if _, ok := m[key].([]any); ok {
		return
	}
	if v, present := m[key]; present && v != nil {
		return
	}
	m[key] = []any{}
}

func setIfAbsent(m map[string]any, key string, value any) {
	if v, present := m[key]; !present || v == nil {
		m[key] = value
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// cloneValue copies maps and slices recursively so the rules never write
// into the caller's payload. Scalars are shared.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}
