// Package explain generates plain-language narratives for normalized line
// items. Providers never return errors: the deterministic engine is the
// floor every other provider falls back to.
package explain

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"sort"
	"strings"

	"medbill/internal/config"
	"medbill/internal/domain"
	"medbill/internal/port"
)

const (
	deterministicBaseConfidence = 0.75
	noComponentsPenalty         = 0.1
	noAllowedPenalty            = 0.05
	minNarrativeConfidence      = 0.1
)

// codeMetadata is one editable code-dictionary entry: a friendly description
// plus a medical-necessity sentence.
type codeMetadata struct {
	Description string `json:"description"`
	Necessity   string `json:"necessity"`
}

// Deterministic is a rule-based narrative engine. It only restates figures
// already present on the line and never invents numbers.
type Deterministic struct {
	currency string
	metadata map[string]codeMetadata
}

// NewDeterministic builds the deterministic explainer, loading the optional
// code dictionary. A missing or malformed dictionary is logged and ignored.
func NewDeterministic(cfg *config.Config) *Deterministic {
	return &Deterministic{
		currency: cfg.Currency,
		metadata: loadCodeMetadata(cfg.Explainer.CodeDictionaryPath),
	}
}

func loadCodeMetadata(path string) map[string]codeMetadata {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Printf("explain.Deterministic: code dictionary unavailable at %s: %v", path, err)
		return nil
	}
	// Entries may be either a bare description string or an object carrying
	// description and necessity.
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		log.Printf("explain.Deterministic: decoding code dictionary %s: %v", path, err)
		return nil
	}
	metadata := make(map[string]codeMetadata, len(entries))
	for code, entry := range entries {
		var meta codeMetadata
		if err := json.Unmarshal(entry, &meta); err == nil && (meta.Description != "" || meta.Necessity != "") {
			metadata[code] = meta
			continue
		}
		var desc string
		if err := json.Unmarshal(entry, &desc); err == nil {
			metadata[code] = codeMetadata{Description: desc}
		}
	}
	return metadata
}

// Explain renders the line narrative from its normalized figures.
func (d *Deterministic) Explain(_ context.Context, ec port.ExplainContext) port.Explanation {
	meta := d.metadata[strOr(ec.Code, "")]
	friendly := meta.Description
	if friendly == "" {
		friendly = ec.Description
	}
	necessity := meta.Necessity
	if necessity == "" {
		necessity = fallbackNecessity(ec)
	}

	var b strings.Builder
	if ec.DateOfService != nil {
		fmt.Fprintf(&b, "Line %d on %s: %s. %s", ec.LineNo, ec.DateOfService.Format("2006-01-02"), friendly, necessity)
	} else {
		fmt.Fprintf(&b, "Line %d: %s. %s", ec.LineNo, friendly, necessity)
	}
	fmt.Fprintf(&b, " Provider billed %s%.2f.", d.currency, ec.Charge)
	if ec.Units != nil && *ec.Units > 1 {
		fmt.Fprintf(&b, " %g units were recorded.", *ec.Units)
	}
	if adjTotal := adjustmentSum(ec.Adjustments); adjTotal != 0 {
		kind := "increase"
		if adjTotal < 0 {
			kind = "reduction"
		}
		fmt.Fprintf(&b, " A contractual %s of %s%.2f was applied.", kind, d.currency, math.Abs(adjTotal))
	}
	if ec.Allowed != nil {
		fmt.Fprintf(&b, " The allowed amount is %s%.2f.", d.currency, *ec.Allowed)
	}
	if ec.PayerPaid != nil {
		fmt.Fprintf(&b, " Insurance paid %s%.2f.", d.currency, *ec.PayerPaid)
	}
	components := describeComponents(ec.PatientResp, d.currency)
	if components != "" {
		fmt.Fprintf(&b, " Patient responsibility comes from %s, for a total of %s%.2f.", components, d.currency, ec.PatientTotal)
	} else {
		fmt.Fprintf(&b, " The patient owes %s%.2f.", d.currency, ec.PatientTotal)
	}

	confidence := deterministicBaseConfidence
	if components == "" {
		confidence -= noComponentsPenalty
	}
	if ec.Allowed == nil {
		confidence -= noAllowedPenalty
	}
	if confidence < minNarrativeConfidence {
		confidence = minNarrativeConfidence
	}
	return port.Explanation{Narrative: b.String(), Confidence: confidence, Warnings: []string{}}
}

func fallbackNecessity(ec port.ExplainContext) string {
	base := "This service was performed"
	if ec.Code != nil {
		base += fmt.Sprintf(" to address the clinical need associated with code %s", *ec.Code)
	} else {
		base += " to support the patient's treatment plan"
	}
	if ec.Provider != nil {
		base += fmt.Sprintf(" as ordered by %s", *ec.Provider)
	}
	return base + "."
}

// describeComponents lists the non-zero patient responsibility components in
// a stable order: the named components first, then extras alphabetically.
func describeComponents(resp domain.PatientResponsibility, currency string) string {
	var parts []string
	if resp.Deductible != 0 {
		parts = append(parts, fmt.Sprintf("deductible %s%.2f", currency, resp.Deductible))
	}
	if resp.Copay != 0 {
		parts = append(parts, fmt.Sprintf("copay %s%.2f", currency, resp.Copay))
	}
	if resp.Coinsurance != 0 {
		parts = append(parts, fmt.Sprintf("coinsurance %s%.2f", currency, resp.Coinsurance))
	}
	if resp.NonCovered != 0 {
		parts = append(parts, fmt.Sprintf("non-covered %s%.2f", currency, resp.NonCovered))
	}
	names := make([]string, 0, len(resp.Other))
	for name := range resp.Other {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s %s%.2f", name, currency, resp.Other[name]))
	}
	return strings.Join(parts, ", ")
}

func adjustmentSum(adjustments []domain.Adjustment) float64 {
	var sum float64
	for _, a := range adjustments {
		sum += a.Amount
	}
	return sum
}

func strOr(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}
