package constants

import (
	"strings"
)

// DocumentType is the closed enumeration of supported commercial document
// categories. It drives prompt selection and the shape of extracted payloads.
type DocumentType string

const (
	RentRoll               DocumentType = "rent_roll"
	OperatingBudget        DocumentType = "operating_budget"
	BrokerSalesComparables DocumentType = "broker_sales_comparables"
	BrokerLeaseComparables DocumentType = "broker_lease_comparables"
	BrokerListing          DocumentType = "broker_listing"
	OfferingMemo           DocumentType = "offering_memo"
	LeaseAgreement         DocumentType = "lease_agreement"
	FinancialStatements    DocumentType = "financial_statements"
)

var allDocumentTypes = []DocumentType{
	RentRoll,
	OperatingBudget,
	BrokerSalesComparables,
	BrokerLeaseComparables,
	BrokerListing,
	OfferingMemo,
	LeaseAgreement,
	FinancialStatements,
}

// deprecated aliases still found in older stored records
var documentTypeAliases = map[string]DocumentType{
	"comparable_sales":  BrokerSalesComparables,
	"sales_comparables": BrokerSalesComparables,
	"lease_comparables": BrokerLeaseComparables,
	"broker_lease_up":   BrokerLeaseComparables,
	"financial_statement": FinancialStatements,
	"offering_memorandum": OfferingMemo,
	"lease":               LeaseAgreement,
}

// AllDocumentTypes returns the canonical enumeration in stable order.
func AllDocumentTypes() []DocumentType {
	out := make([]DocumentType, len(allDocumentTypes))
	copy(out, allDocumentTypes)
	return out
}

func DocumentTypeStrings() []string {
	result := make([]string, len(allDocumentTypes))
	for i, dt := range allDocumentTypes {
		result[i] = string(dt)
	}
	return result
}

// CanonicalizeDocumentType maps raw labels (including deprecated aliases)
// onto the canonical enum. The second return reports whether the input was
// recognized at all.
func CanonicalizeDocumentType(input string) (DocumentType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")

	if dt, ok := documentTypeAliases[normalized]; ok {
		return dt, true
	}
	for _, dt := range allDocumentTypes {
		if normalized == string(dt) {
			return dt, true
		}
	}
	return "", false
}

// IsComparableType reports whether a type carries a per-comparable list
// payload subject to flattening in the normalizer.
func IsComparableType(dt DocumentType) bool {
	return dt == BrokerSalesComparables || dt == BrokerLeaseComparables
}
