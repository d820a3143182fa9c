// Package validation scores extracted invoice data. Validate is a pure
// function: it has no side effects and is deterministic for identical
// input, which the workflow engine and the /validate endpoint both rely on.
package validation

import (
	"fmt"
	"time"

	"github.com/tripoptimizer/invoice-engine/internal/domain/entity"
)

// Result is the outcome of validating one parsed-data payload.
type Result struct {
	IsValid         bool     `json:"is_valid"`
	Errors          []string `json:"errors"`
	Warnings        []string `json:"warnings"`
	ConfidenceScore float64  `json:"confidence_score"`
}

// Date layouts the extraction pipeline has been observed to emit.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"01/02/2006",
	"02.01.2006",
}

// Validate checks required fields, amount sanity and reconciliation, date
// parseability and line items, then derives the confidence score:
//
//	clamp(100 - 20*errors - 5*warnings, 0, 100)
func Validate(data entity.ParsedData) Result {
	var errs, warnings []string

	if data.Financial.TotalAmount == nil {
		errs = append(errs, "financial.total_amount is required")
	} else if *data.Financial.TotalAmount <= 0 {
		errs = append(errs, "financial.total_amount must be a positive number")
	}

	if data.Financial.TotalAmount != nil && data.Financial.Subtotal != nil && data.Financial.TaxAmount != nil {
		discount := 0.0
		if data.Financial.DiscountAmount != nil {
			discount = *data.Financial.DiscountAmount
		}
		expected := *data.Financial.Subtotal + *data.Financial.TaxAmount - discount
		if diff := expected - *data.Financial.TotalAmount; diff > 0.01 || diff < -0.01 {
			errs = append(errs, fmt.Sprintf(
				"financial totals do not reconcile: subtotal + tax - discount = %.2f, total_amount = %.2f",
				expected, *data.Financial.TotalAmount))
		}
	}

	if data.Vendor.Name == "" {
		errs = append(errs, "vendor.name is required")
	}
	if data.Customer.Name == "" {
		errs = append(errs, "customer.name is required")
	}

	if data.InvoiceDate != "" && !parseableDate(data.InvoiceDate) {
		errs = append(errs, fmt.Sprintf("invoice_date %q is not a valid date", data.InvoiceDate))
	}

	for i, item := range data.LineItems {
		if item.Description == "" {
			warnings = append(warnings, fmt.Sprintf("line_items[%d]: missing description", i))
		}
		if item.UnitPrice == nil {
			errs = append(errs, fmt.Sprintf("line_items[%d]: missing or non-numeric unit_price", i))
		}
	}

	return Result{
		IsValid:         len(errs) == 0,
		Errors:          errs,
		Warnings:        warnings,
		ConfidenceScore: Score(len(errs), len(warnings)),
	}
}

// Score computes the confidence score from error and warning counts,
// clamped to [0, 100].
func Score(errorCount, warningCount int) float64 {
	score := 100 - 20*float64(errorCount) - 5*float64(warningCount)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func parseableDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
