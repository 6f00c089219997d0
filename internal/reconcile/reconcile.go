// Package reconcile verifies the arithmetic identities of a parsed document.
// All checks are advisory: failures are recorded as math checks and line
// warnings, never returned as errors.
package reconcile

import (
	"fmt"
	"math"

	"medbill/internal/domain"
)

// Tolerance is the maximum absolute drift allowed before a balance check
// fails. Parsed statements routinely carry rounding artifacts below it.
const Tolerance = 0.05

const lineImbalanceWarning = "Line math does not perfectly reconcile"

// Document runs the per-line balance checks followed by the document-level
// totals check, appending results to doc.MathChecks and line warnings in
// place.
func Document(doc *domain.ParsedDocument) {
	for i := range doc.Lines {
		check := lineBalance(&doc.Lines[i])
		doc.MathChecks = append(doc.MathChecks, check)
		if !check.Passed {
			doc.Lines[i].Warnings = append(doc.Lines[i].Warnings, lineImbalanceWarning)
		}
	}
	doc.MathChecks = append(doc.MathChecks, domain.MathCheck{
		Name:    "sum_lines_equals_totals",
		Passed:  doc.Totals.Reconciles,
		Details: "Charge + adjustments = payments + patient responsibility",
	})
}

// lineBalance checks charge + adjustments = payer paid + patient owes for a
// single line, reporting the signed residual in the details.
func lineBalance(line *domain.LineItem) domain.MathCheck {
	var adjSum float64
	for _, a := range line.Adjustments {
		adjSum += a.Amount
	}
	payerPaid := 0.0
	if line.PayerPaid != nil {
		payerPaid = *line.PayerPaid
	}
	diff := line.Charge + adjSum - payerPaid - line.PatientOwesLine
	return domain.MathCheck{
		Name:    fmt.Sprintf("line_%d_balance", line.LineNo),
		Passed:  math.Abs(diff) < Tolerance,
		Details: fmt.Sprintf("charge + adjustments - payer paid - patient owes = %.2f", diff),
	}
}
