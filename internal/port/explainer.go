package port

import (
	"context"

	"medbill/internal/domain"
)

// ExplainContext carries every normalized field of a line item, plus the
// header-derived provider and payer once those are known.
type ExplainContext struct {
	LineNo        int
	Description   string
	Code          *string
	CodeType      string
	DateOfService *domain.Date
	Charge        float64
	Allowed       *float64
	PayerPaid     *float64
	Adjustments   []domain.Adjustment
	PatientResp   domain.PatientResponsibility
	PatientTotal  float64
	Units         *float64
	Provider      *string
	Payer         *string
}

// Explanation is the narrative result for one line.
type Explanation struct {
	Narrative  string
	Confidence float64
	Warnings   []string
}

// Explainer maps a normalized line context to prose plus a confidence score.
// Implementations must never fail: any internal error resolves to a
// deterministic narrative instead of an error return.
type Explainer interface {
	Explain(ctx context.Context, ec ExplainContext) Explanation
}
