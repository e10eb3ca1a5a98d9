// Package prompts is the static catalog of classification and extraction
// prompts, keyed by document type. Prompt text is configuration data: it is
// loaded once, never mutated, and augmented only by pure composition.
package prompts

import (
	"fmt"
	"strings"

	"github.com/CamiloRuizJ/rexeli/constants"
)

// Classification is the fixed prompt describing the eight document
// categories with distinguishing heuristics. The model must answer with a
// single JSON object carrying type, confidence, and reasoning.
const Classification = `You are an expert commercial real estate analyst. Examine the document pages provided and classify the document into exactly one of the following categories.

Categories and distinguishing heuristics:

1. rent_roll - A tabular listing of tenants/units with columns such as unit number, tenant name, square footage, lease start/end dates, base rent. Rows dominate the page; one row per tenant or unit. Often includes occupancy totals at the bottom.

2. operating_budget - A projected or budgeted income and expense statement, usually organized by line item with monthly or annual columns. Look for words like "budget", "projected", "forecast" and account-style line items (utilities, repairs, management fees).

3. broker_sales_comparables - A set of comparable SALE transactions: multiple properties each with a sale date, sale price, price per square foot, and cap rate. Distinguish from lease comparables by the presence of sale prices and cap rates.

4. broker_lease_comparables - A set of comparable LEASE transactions: multiple properties each with lease commencement, term, base rent ($/SF), escalations, concessions. No sale prices.

5. broker_listing - A marketing flyer or listing agreement for a property offered for sale or lease: asking price or asking rent, property highlights, broker contact information, photographs.

6. offering_memo - A multi-section investment offering package: executive summary, investment highlights, property description, financial summary, market overview. Longer and more narrative than a listing flyer.

7. lease_agreement - A legal contract between landlord and tenant: numbered sections/articles, defined terms, signature blocks, legal language about premises, term, rent, default.

8. financial_statements - Historical (not projected) income statements, balance sheets, or cash flow statements for a property: actual operating income and expenses, often with prior-year columns, NOI lines, and accountant formatting.

Decision rules:
- Sale prices and cap rates across several properties -> broker_sales_comparables, never rent_roll.
- A table of tenants for ONE property -> rent_roll, even if rents appear.
- "Budget"/"projected" labels -> operating_budget, even when the layout resembles financial statements.
- Legal articles and signature blocks -> lease_agreement regardless of any rent tables inside.

Respond with ONLY a JSON object of the form:
{
  "type": "<one category from the list above>",
  "confidence": <number between 0 and 1>,
  "reasoning": "<one or two sentences naming the features that decided the classification>"
}

Do not include any text outside the JSON object.`

// MultiPageInstructions is appended to an extraction prompt when more than
// one page image is submitted in a single request.
func MultiPageInstructions(pageCount int) string {
	return fmt.Sprintf(`

MULTI-PAGE DOCUMENT (%d pages):
The pages above belong to one document, in order. Consolidate across ALL pages into a single JSON response:
- Merge table rows that continue onto later pages into one list; do not restart numbering or emit one object per page.
- If a total or summary appears on the final page, prefer it over per-page subtotals.
- If the same field appears on several pages with conflicting values, use the most specific occurrence; never output duplicates.`, pageCount)
}

// Extraction returns the extraction prompt for a document type. The second
// return is false for unknown types.
func Extraction(dt constants.DocumentType) (string, bool) {
	p, ok := extractionPrompts[dt]
	return p, ok
}

// Augment appends an improvement section to a base prompt without touching
// the stored base. Pure composition; the catalog entry itself is never
// overwritten.
func Augment(base, section string) string {
	section = strings.TrimSpace(section)
	if section == "" {
		return base
	}
	return base + "\n\n" + section
}

const promptPreamble = `You are an expert commercial real estate analyst extracting structured data from documents. Respond with ONLY a JSON object; no markdown, no commentary. Use null for values genuinely absent from the document - never invent data. Dates must be ISO-8601 (YYYY-MM-DD). Monetary values must be plain numbers without currency symbols or thousands separators.`

var extractionPrompts = map[constants.DocumentType]string{

	constants.RentRoll: promptPreamble + `

DOCUMENT TYPE: rent roll.

Extract every tenant/unit row. Fields per tenant:
- unitNumber, tenantName, squareFeet, leaseStart, leaseEnd, baseRent (monthly), rentPerSF (annual $/SF), securityDeposit, occupancyStatus ("occupied" | "vacant")

Also extract the summary: totalUnits, occupiedUnits, vacantUnits, totalSquareFeet, occupancyRate (0-100), totalMonthlyRent, totalAnnualRent, averageRentPerSF.

Reply in exactly this shape:
{
  "documentType": "rent_roll",
  "metadata": {
    "propertyName": "...",
    "propertyAddress": "...",
    "totalSquareFeet": 0,
    "totalUnits": 0,
    "extractedDate": "YYYY-MM-DD"
  },
  "data": {
    "tenants": [
      {
        "unitNumber": "101",
        "tenantName": "Acme Corp",
        "squareFeet": 2500,
        "leaseStart": "2022-01-01",
        "leaseEnd": "2027-12-31",
        "baseRent": 5200,
        "rentPerSF": 24.96,
        "securityDeposit": 10400,
        "occupancyStatus": "occupied"
      }
    ],
    "summary": {
      "totalUnits": 0,
      "occupiedUnits": 0,
      "vacantUnits": 0,
      "totalSquareFeet": 0,
      "occupancyRate": 0,
      "totalMonthlyRent": 0,
      "totalAnnualRent": 0,
      "averageRentPerSF": 0
    }
  }
}

Completeness checklist before answering:
- Every row of the rent table appears exactly once in "tenants", including vacant units.
- Vacant units carry tenantName null and occupancyStatus "vacant".
- Summary totals reconcile with the listed rows when the document states them.`,

	constants.OperatingBudget: promptPreamble + `

DOCUMENT TYPE: operating budget.

Extract every budget line item, separated into income and expenses:
- income items: category, lineItem, annualAmount, monthlyAmount, perSFAmount
- expense items: category, lineItem, annualAmount, monthlyAmount, perSFAmount

Also extract the summary: totalIncome, totalExpenses, netOperatingIncome, expenseRatio (expenses/income, 0-1), budgetYear.

Reply in exactly this shape:
{
  "documentType": "operating_budget",
  "metadata": {
    "propertyName": "...",
    "propertyAddress": "...",
    "totalSquareFeet": 0,
    "extractedDate": "YYYY-MM-DD"
  },
  "data": {
    "incomeItems": [
      {"category": "Rental Income", "lineItem": "Base Rent", "annualAmount": 0, "monthlyAmount": 0, "perSFAmount": 0}
    ],
    "expenseItems": [
      {"category": "Utilities", "lineItem": "Electricity", "annualAmount": 0, "monthlyAmount": 0, "perSFAmount": 0}
    ],
    "summary": {
      "totalIncome": 0,
      "totalExpenses": 0,
      "netOperatingIncome": 0,
      "expenseRatio": 0,
      "budgetYear": "2025"
    }
  }
}

Completeness checklist before answering:
- Every line item of the budget appears exactly once, under the correct side (income vs expense).
- Subtotal and grand-total rows go into "summary", not into the item lists.
- Reimbursements and recoveries are income, not negative expenses.`,

	constants.BrokerSalesComparables: promptPreamble + `

DOCUMENT TYPE: broker sales comparables.

Extract every comparable sale as a FLAT record (do not nest transaction, pricing, or property sub-objects):
- propertyName, propertyAddress, saleDate, salePrice, pricePerSF, capRate (percent), squareFeet, yearBuilt, occupancyAtSale (percent), buyer, seller, propertyType

Also extract the summary: numberOfComparables, averagePricePerSF, averageCapRate, priceRange {min, max}.

Reply in exactly this shape:
{
  "documentType": "broker_sales_comparables",
  "metadata": {
    "propertyName": "...",
    "propertyAddress": "...",
    "extractedDate": "YYYY-MM-DD"
  },
  "data": {
    "comparables": [
      {
        "propertyName": "Park Plaza",
        "propertyAddress": "100 Main St",
        "saleDate": "2024-06-15",
        "salePrice": 12500000,
        "pricePerSF": 250,
        "capRate": 6.1,
        "squareFeet": 50000,
        "yearBuilt": 1998,
        "occupancyAtSale": 92,
        "buyer": "...",
        "seller": "...",
        "propertyType": "office"
      }
    ],
    "summary": {
      "numberOfComparables": 0,
      "averagePricePerSF": 0,
      "averageCapRate": 0,
      "priceRange": {"min": 0, "max": 0}
    }
  }
}

Completeness checklist before answering:
- One record per comparable sale; the subject property (if shown) is not a comparable.
- Cap rates stay in percent (6.1, not 0.061).
- Summary averages come from the document when stated; otherwise leave them null.`,

	constants.BrokerLeaseComparables: promptPreamble + `

DOCUMENT TYPE: broker lease comparables.

Extract every comparable lease as a FLAT record:
- propertyName, propertyAddress, tenantName, leaseCommencement, leaseTermMonths, squareFeet, baseRentPerSF (annual), effectiveRentPerSF (annual, net of concessions), escalations, freeRentMonths, tiAllowancePerSF, leaseType ("NNN" | "gross" | "modified gross"), propertyType

Also extract the summary: numberOfComparables, averageBaseRent, averageEffectiveRent, rentRange {min, max}.

Reply in exactly this shape:
{
  "documentType": "broker_lease_comparables",
  "metadata": {
    "propertyName": "...",
    "propertyAddress": "...",
    "extractedDate": "YYYY-MM-DD"
  },
  "data": {
    "comparables": [
      {
        "propertyName": "Gateway Center",
        "propertyAddress": "200 Oak Ave",
        "tenantName": "...",
        "leaseCommencement": "2024-03-01",
        "leaseTermMonths": 60,
        "squareFeet": 8000,
        "baseRentPerSF": 32.5,
        "effectiveRentPerSF": 30.1,
        "escalations": "3% annual",
        "freeRentMonths": 4,
        "tiAllowancePerSF": 45,
        "leaseType": "NNN",
        "propertyType": "office"
      }
    ],
    "summary": {
      "numberOfComparables": 0,
      "averageBaseRent": 0,
      "averageEffectiveRent": 0,
      "rentRange": {"min": 0, "max": 0}
    }
  }
}

Completeness checklist before answering:
- One record per lease transaction, renewals included.
- Rents are annual $/SF; convert monthly figures.
- Asking rents for available space are not comparables unless the document labels them as such.`,

	constants.BrokerListing: promptPreamble + `

DOCUMENT TYPE: broker listing.

Extract:
- listingDetails: listingType ("sale" | "lease"), askingPrice, askingRentPerSF, listingDate, brokerName, brokerageFirm, brokerPhone, brokerEmail
- propertyDetails: propertyName, propertyAddress, propertyType, squareFeet, lotSizeAcres, yearBuilt, zoning, parkingSpaces, occupancyRate
- highlights: array of the marketing bullet points, verbatim but trimmed
- terms: leaseType, availableSF, minimumDivisible, tiAllowance, possessionDate

Reply in exactly this shape:
{
  "documentType": "broker_listing",
  "metadata": {
    "propertyName": "...",
    "propertyAddress": "...",
    "totalSquareFeet": 0,
    "extractedDate": "YYYY-MM-DD"
  },
  "data": {
    "listingDetails": {"listingType": "sale", "askingPrice": 0, "askingRentPerSF": null, "listingDate": null, "brokerName": "...", "brokerageFirm": "...", "brokerPhone": null, "brokerEmail": null},
    "propertyDetails": {"propertyName": "...", "propertyAddress": "...", "propertyType": "office", "squareFeet": 0, "lotSizeAcres": null, "yearBuilt": null, "zoning": null, "parkingSpaces": null, "occupancyRate": null},
    "highlights": ["..."],
    "terms": {"leaseType": null, "availableSF": null, "minimumDivisible": null, "tiAllowance": null, "possessionDate": null}
  }
}

Completeness checklist before answering:
- listingType reflects what is actually offered; a sale-leaseback is "sale".
- Keep askingPrice null on lease-only listings and askingRentPerSF null on sale-only listings.`,

	constants.OfferingMemo: promptPreamble + `

DOCUMENT TYPE: offering memorandum.

Extract the four standard sections:
- propertyOverview: propertyName, propertyAddress, propertyType, squareFeet, yearBuilt, stories, parkingSpaces, occupancyRate
- investmentHighlights: array of highlight strings
- financialSummary: askingPrice, currentNOI, proFormaNOI, capRate, proFormaCapRate, pricePerSF, grossIncome, operatingExpenses
- marketOverview: submarket, marketVacancy, marketRentPerSF, notableTransactions (array of strings)

Reply in exactly this shape:
{
  "documentType": "offering_memo",
  "metadata": {
    "propertyName": "...",
    "propertyAddress": "...",
    "totalSquareFeet": 0,
    "extractedDate": "YYYY-MM-DD"
  },
  "data": {
    "propertyOverview": {"propertyName": "...", "propertyAddress": "...", "propertyType": "office", "squareFeet": 0, "yearBuilt": 0, "stories": null, "parkingSpaces": null, "occupancyRate": null},
    "investmentHighlights": ["..."],
    "financialSummary": {"askingPrice": 0, "currentNOI": 0, "proFormaNOI": null, "capRate": null, "proFormaCapRate": null, "pricePerSF": null, "grossIncome": null, "operatingExpenses": null},
    "marketOverview": {"submarket": null, "marketVacancy": null, "marketRentPerSF": null, "notableTransactions": []}
  }
}

Completeness checklist before answering:
- Distinguish in-place (current) figures from pro forma projections; never mix the two.
- Include every investment highlight bullet, trimmed.`,

	constants.LeaseAgreement: promptPreamble + `

DOCUMENT TYPE: lease agreement.

Extract:
- parties: landlord, tenant, guarantor
- premises: propertyAddress, suite, squareFeet
- leaseTerms: leaseStart, leaseEnd, termMonths, baseRentMonthly, rentPerSF, leaseType ("NNN" | "gross" | "modified gross"), securityDeposit, escalations
- rentSchedule: array of {periodStart, periodEnd, monthlyRent}
- options: renewalOptions, expansionOptions, terminationOptions (strings, null when absent)

Reply in exactly this shape:
{
  "documentType": "lease_agreement",
  "metadata": {
    "propertyAddress": "...",
    "extractedDate": "YYYY-MM-DD"
  },
  "data": {
    "parties": {"landlord": "...", "tenant": "...", "guarantor": null},
    "premises": {"propertyAddress": "...", "suite": null, "squareFeet": 0},
    "leaseTerms": {"leaseStart": "YYYY-MM-DD", "leaseEnd": "YYYY-MM-DD", "termMonths": 0, "baseRentMonthly": 0, "rentPerSF": 0, "leaseType": "NNN", "securityDeposit": null, "escalations": null},
    "rentSchedule": [
      {"periodStart": "YYYY-MM-DD", "periodEnd": "YYYY-MM-DD", "monthlyRent": 0}
    ],
    "options": {"renewalOptions": null, "expansionOptions": null, "terminationOptions": null}
  }
}

Completeness checklist before answering:
- Legal entity names verbatim, including "LLC"/"LP" suffixes.
- The rent schedule covers the full term with no gaps when the lease states stepped rents.
- Commencement date is the lease start even when the execution date differs.`,

	constants.FinancialStatements: promptPreamble + `

DOCUMENT TYPE: financial statements.

Extract:
- operatingIncome: line items {category, lineItem, amount, priorYearAmount} plus totalIncome
- operatingExpenses: line items {category, lineItem, amount, priorYearAmount} plus totalExpenses
- noi: netOperatingIncome, priorYearNOI, statementPeriod
- balanceSheet (when present): totalAssets, totalLiabilities, equity
- capex (when present): items {description, amount}, totalCapex

Reply in exactly this shape:
{
  "documentType": "financial_statements",
  "metadata": {
    "propertyName": "...",
    "propertyAddress": "...",
    "extractedDate": "YYYY-MM-DD"
  },
  "data": {
    "operatingIncome": {
      "items": [{"category": "Rental Income", "lineItem": "Base Rent", "amount": 0, "priorYearAmount": null}],
      "totalIncome": 0
    },
    "operatingExpenses": {
      "items": [{"category": "Utilities", "lineItem": "Electricity", "amount": 0, "priorYearAmount": null}],
      "totalExpenses": 0
    },
    "noi": {"netOperatingIncome": 0, "priorYearNOI": null, "statementPeriod": "..."},
    "balanceSheet": {"totalAssets": null, "totalLiabilities": null, "equity": null},
    "capex": {"items": [], "totalCapex": null}
  }
}

Completeness checklist before answering:
- These are HISTORICAL actuals; if the document is a budget or projection, still extract it but keep the stated period.
- Depreciation and debt service are below-the-line: exclude them from operating expenses and NOI.
- Omit nothing: every income and expense line item appears exactly once.`,
}
