package parse

import (
	"context"
	"log"
	"math"
	"regexp"
	"strings"
	"time"

	"medbill/internal/config"
	"medbill/internal/domain"
	"medbill/internal/port"
)

// codePattern matches procedure-code shapes inside descriptions: one or two
// letters followed by 3-4 digits (CPT/HCPCS style), or 4-5 bare digits.
var codePattern = regexp.MustCompile(`\b([A-Za-z]{1,2}\d{3,4}|\d{4,5})\b`)

// modifierSplit separates modifier tokens on commas or whitespace.
var modifierSplit = regexp.MustCompile(`[,\s]+`)

// patientRespPrefix marks canonical columns folded into the "other" patient
// responsibility bucket.
const patientRespPrefix = "patient_resp_"

const (
	tableBaseConfidence = 0.6
	textBaseConfidence  = 0.4
	textPathPenalty     = 0.1
	minConfidence       = 0.1

	// componentDisagreementTolerance bounds how far the component sum may
	// drift from the payer-derived remainder before the mismatch is worth
	// logging; the reconciliation checks surface it either way.
	componentDisagreementTolerance = 0.05
)

// rowNormalizer converts canonicalized row maps into typed line items.
type rowNormalizer struct {
	cfg       *config.Config
	explainer port.Explainer
}

// normalize builds a fully-typed line item from one canonicalized row.
// fromText marks rows recovered by the raw-text fallback path, which carry a
// lower confidence baseline and an extra warning.
func (n *rowNormalizer) normalize(ctx context.Context, row map[string]string, lineNo int, fromText bool) domain.LineItem {
	description := firstNonEmpty(row["description"], row["service"], row["item"])
	if description == "" {
		description = "Service"
	}

	charge, _ := n.cellAmount(row, "charge", lineNo)
	allowed := n.cellAmountPtr(row, "allowed", lineNo)
	payerPaid := n.cellAmountPtr(row, "payer_paid", lineNo)

	adjustments := []domain.Adjustment{}
	if adj, ok := n.cellAmount(row, "adjustment", lineNo); ok && adj != 0 {
		// Flat tabular input yields at most one adjustment; the model keeps
		// a sequence for richer future sources.
		adjustments = append(adjustments, domain.Adjustment{
			Type:   domain.AdjustmentTypeContractual,
			Amount: adj,
		})
	}

	resp := domain.PatientResponsibility{}
	resp.Deductible, _ = n.cellAmount(row, "deductible", lineNo)
	resp.Copay, _ = n.cellAmount(row, "copay", lineNo)
	resp.Coinsurance, _ = n.cellAmount(row, "coinsurance", lineNo)
	resp.NonCovered, _ = n.cellAmount(row, "non_covered", lineNo)
	for key := range row {
		if !strings.HasPrefix(key, patientRespPrefix) || key == "patient_resp_total" {
			continue
		}
		if v, ok := n.cellAmount(row, key, lineNo); ok && v != 0 {
			if resp.Other == nil {
				resp.Other = make(map[string]float64)
			}
			resp.Other[strings.TrimPrefix(key, patientRespPrefix)] = v
		}
	}

	item := domain.LineItem{
		LineNo:          lineNo,
		DateOfService:   n.parseDate(row["date_of_service"]),
		CodeType:        domain.CodeTypeUnknown,
		Code:            codeFromRow(row, description),
		Modifiers:       splitModifiers(row["modifiers"]),
		DescriptionRaw:  description,
		Units:           n.cellAmountPtr(row, "units", lineNo),
		Charge:          charge,
		Allowed:         allowed,
		Adjustments:     adjustments,
		PayerPaid:       payerPaid,
		PatientResp:     resp,
		PatientOwesLine: n.resolvePatientTotal(row, charge, adjustments, payerPaid, resp, lineNo),
		Warnings:        []string{},
	}

	result := n.explainer.Explain(ctx, explainContext(&item, nil, nil))
	item.Explanation = result.Narrative
	item.Warnings = append(item.Warnings, result.Warnings...)

	base := tableBaseConfidence
	if fromText {
		base = textBaseConfidence
	}
	confidence := math.Min(1.0, math.Max(base, result.Confidence))
	if fromText {
		confidence -= textPathPenalty
		item.Warnings = append(item.Warnings, textFallbackWarning)
	}
	item.Confidence = math.Max(confidence, minConfidence)

	return item
}

// cellAmount parses a named cell, logging non-empty unparseable values when
// debug diagnostics are on.
func (n *rowNormalizer) cellAmount(row map[string]string, field string, lineNo int) (float64, bool) {
	raw := row[field]
	v, ok := Amount(raw)
	if !ok && strings.TrimSpace(raw) != "" && n.cfg.Debug {
		log.Printf("parse: line %d has unparseable %s value %q", lineNo, field, raw)
	}
	return v, ok
}

func (n *rowNormalizer) cellAmountPtr(row map[string]string, field string, lineNo int) *float64 {
	if v, ok := n.cellAmount(row, field, lineNo); ok {
		return &v
	}
	return nil
}

// resolvePatientTotal applies the patient-share policy: an explicit total
// column wins, then the component sum, then the payer-derived remainder when
// no components were broken out at all. The result is never negative.
func (n *rowNormalizer) resolvePatientTotal(row map[string]string, charge float64, adjustments []domain.Adjustment, payerPaid *float64, resp domain.PatientResponsibility, lineNo int) float64 {
	if explicit, ok := n.cellAmount(row, "patient_resp_total", lineNo); ok && explicit > 0 {
		return explicit
	}
	componentSum := resp.Total()
	derived := charge + adjustmentSum(adjustments) - floatOr(payerPaid, 0)
	total := componentSum
	if componentSum == 0 && derived > 0 {
		total = derived
	} else if componentSum > 0 && math.Abs(componentSum-derived) > componentDisagreementTolerance && n.cfg.Debug {
		// Components are the more trustworthy signal; the line balance check
		// will flag the disagreement.
		log.Printf("parse: line %d patient components %.2f differ from derived %.2f", lineNo, componentSum, derived)
	}
	if total < 0 {
		return 0
	}
	return total
}

func (n *rowNormalizer) parseDate(raw string) *domain.Date {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range n.cfg.DateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return domain.NewDate(t)
		}
	}
	return nil
}

// codeFromRow prefers an explicit code column, then falls back to sniffing a
// code-shaped token out of the description.
func codeFromRow(row map[string]string, description string) *string {
	if c := strings.TrimSpace(row["code"]); c != "" {
		return &c
	}
	if m := codePattern.FindString(description); m != "" {
		return &m
	}
	return nil
}

func splitModifiers(raw string) []string {
	out := []string{}
	for _, tok := range modifierSplit.Split(strings.TrimSpace(raw), -1) {
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// explainContext assembles the explainer input from a normalized line,
// optionally enriched with header-derived provider and payer.
func explainContext(item *domain.LineItem, provider, payer *string) port.ExplainContext {
	return port.ExplainContext{
		LineNo:        item.LineNo,
		Description:   item.DescriptionRaw,
		Code:          item.Code,
		CodeType:      item.CodeType,
		DateOfService: item.DateOfService,
		Charge:        item.Charge,
		Allowed:       item.Allowed,
		PayerPaid:     item.PayerPaid,
		Adjustments:   item.Adjustments,
		PatientResp:   item.PatientResp,
		PatientTotal:  item.PatientOwesLine,
		Units:         item.Units,
		Provider:      provider,
		Payer:         payer,
	}
}

func adjustmentSum(adjustments []domain.Adjustment) float64 {
	var sum float64
	for _, a := range adjustments {
		sum += a.Amount
	}
	return sum
}

func floatOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
