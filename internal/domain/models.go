package domain

import (
	"encoding/json"
	"time"
)

// Date is a calendar date serialized as an ISO-8601 day without a time
// component. Optional dates are represented as *Date and marshal to null
// when absent.
type Date struct {
	time.Time
}

// NewDate wraps a time.Time as a Date.
func NewDate(t time.Time) *Date {
	return &Date{Time: t}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format("2006-01-02"))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// Adjustment represents a contractual or other adjustment applied to a line
// item. Amount may be negative (a reduction) or positive (an increase).
type Adjustment struct {
	Type   string  `json:"type"`
	Amount float64 `json:"amount"`
}

// PatientResponsibility breaks down the patient's share of a line item into
// the four named components plus a bucket for source-specific extras.
type PatientResponsibility struct {
	Deductible  float64            `json:"deductible"`
	Copay       float64            `json:"copay"`
	Coinsurance float64            `json:"coinsurance"`
	NonCovered  float64            `json:"non_covered"`
	Other       map[string]float64 `json:"other,omitempty"`
}

// Total returns the combined patient responsibility for the line.
func (p PatientResponsibility) Total() float64 {
	total := p.Deductible + p.Copay + p.Coinsurance + p.NonCovered
	for _, v := range p.Other {
		total += v
	}
	return total
}

// Components returns the named components merged with any "other" entries.
// This flattened form is what the serialized output contract exposes.
func (p PatientResponsibility) Components() map[string]float64 {
	out := map[string]float64{
		"deductible":  p.Deductible,
		"copay":       p.Copay,
		"coinsurance": p.Coinsurance,
		"non_covered": p.NonCovered,
	}
	for k, v := range p.Other {
		out[k] = v
	}
	return out
}

// LineItem is one billed service or procedure extracted from a document.
type LineItem struct {
	LineNo          int                   `json:"line_no"`
	DateOfService   *Date                 `json:"date_of_service"`
	CodeType        string                `json:"code_type"`
	Code            *string               `json:"code"`
	Modifiers       []string              `json:"modifiers"`
	DescriptionRaw  string                `json:"description_raw"`
	Units           *float64              `json:"units"`
	Charge          float64               `json:"charge"`
	Allowed         *float64              `json:"allowed"`
	Adjustments     []Adjustment          `json:"adjustments"`
	PayerPaid       *float64              `json:"payer_paid"`
	PatientResp     PatientResponsibility `json:"-"`
	PatientOwesLine float64               `json:"patient_owes_line"`
	Explanation     string                `json:"explanation"`
	Confidence      float64               `json:"confidence"`
	Warnings        []string              `json:"warnings"`
}

// MarshalJSON flattens the patient responsibility breakdown into the
// patient_resp_components mapping required by the output contract.
func (l LineItem) MarshalJSON() ([]byte, error) {
	type alias LineItem
	return json.Marshal(struct {
		alias
		PatientRespComponents map[string]float64 `json:"patient_resp_components"`
	}{
		alias:                 alias(l),
		PatientRespComponents: l.PatientResp.Components(),
	})
}

// Header holds document-level metadata pulled from the leading lines of the
// raw text. Patient and account number may be redacted before storage.
type Header struct {
	Provider      *string `json:"provider"`
	Payer         *string `json:"payer"`
	Patient       *string `json:"patient"`
	AccountNumber *string `json:"account_number"`
	DOSStart      *Date   `json:"dos_start"`
	DOSEnd        *Date   `json:"dos_end"`
}

// Totals aggregates financial quantities over all lines of a document.
type Totals struct {
	TotalCharge      float64 `json:"total_charge"`
	TotalAllowed     float64 `json:"total_allowed"`
	TotalAdjustments float64 `json:"total_adjustments"`
	PayerPaid        float64 `json:"payer_paid"`
	PatientOwes      float64 `json:"patient_owes"`
	Reconciles       bool    `json:"reconciles"`
}

// MathCheck is the result of one named arithmetic verification.
type MathCheck struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Details string `json:"details"`
}

// ParsedDocument is the complete normalized representation of one provider
// bill or explanation-of-benefits statement.
type ParsedDocument struct {
	DocType    DocType     `json:"doc_type"`
	Header     Header      `json:"header"`
	Lines      []LineItem  `json:"lines"`
	Totals     Totals      `json:"totals"`
	MathChecks []MathCheck `json:"math_checks"`
	Notes      []string    `json:"notes"`
}
