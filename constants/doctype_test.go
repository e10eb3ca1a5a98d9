package constants

import "testing"

func TestCanonicalizeDocumentType(t *testing.T) {
	tests := []struct {
		in     string
		want   DocumentType
		wantOK bool
	}{
		{"rent_roll", RentRoll, true},
		{"Rent Roll", RentRoll, true},
		{"RENT-ROLL", RentRoll, true},
		{"comparable_sales", BrokerSalesComparables, true},
		{"Sales Comparables", BrokerSalesComparables, true},
		{"lease_comparables", BrokerLeaseComparables, true},
		{"offering_memorandum", OfferingMemo, true},
		{"financial_statement", FinancialStatements, true},
		{"lease", LeaseAgreement, true},
		{"", "", false},
		{"grocery_list", "", false},
	}
	for _, tt := range tests {
		got, ok := CanonicalizeDocumentType(tt.in)
		if ok != tt.wantOK {
			t.Errorf("CanonicalizeDocumentType(%q) ok = %t, want %t", tt.in, ok, tt.wantOK)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("CanonicalizeDocumentType(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestMapExtToFormat(t *testing.T) {
	tests := []struct {
		ext  string
		want FileFormat
	}{
		{".pdf", PDF},
		{"PDF", PDF},
		{".jpeg", IMAGE},
		{"png", IMAGE},
		{".docx", UNKNOWN},
		{"", UNKNOWN},
	}
	for _, tt := range tests {
		if got := MapExtToFormat(tt.ext); got != tt.want {
			t.Errorf("MapExtToFormat(%q) = %s, want %s", tt.ext, got, tt.want)
		}
	}
}

func TestIsComparableType(t *testing.T) {
	if !IsComparableType(BrokerSalesComparables) || !IsComparableType(BrokerLeaseComparables) {
		t.Error("comparable types misreported")
	}
	if IsComparableType(RentRoll) {
		t.Error("rent_roll is not a comparable type")
	}
}
