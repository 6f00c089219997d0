// Package parse turns raw document extractions into normalized, reconciled
// documents. The pipeline never fails outright: degraded input lowers
// confidence and adds warnings instead of returning errors.
package parse

import (
	"context"
	"fmt"
	"log"
	"math"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"medbill/internal/config"
	"medbill/internal/domain"
	"medbill/internal/port"
	"medbill/internal/reconcile"
)

// tableFailedWarning tags the synthetic placeholder line produced when
// neither tables nor text rows yielded any line items.
const tableFailedWarning = "Table extraction failed"

// Pipeline converts one extraction into a normalized, reconciled document.
// It holds only immutable configuration and the explainer, so a single
// instance is safe for concurrent use.
type Pipeline struct {
	cfg       *config.Config
	explainer port.Explainer
	rows      *rowNormalizer
}

// NewPipeline builds a pipeline around the given configuration and explainer.
func NewPipeline(cfg *config.Config, explainer port.Explainer) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		explainer: explainer,
		rows:      &rowNormalizer{cfg: cfg, explainer: explainer},
	}
}

// Parse runs the full extraction, normalization and reconciliation sequence.
// It always returns a document.
func (p *Pipeline) Parse(ctx context.Context, in port.Extraction) *domain.ParsedDocument {
	parseID := uuid.New()
	header := ExtractHeader(in.Text, p.cfg.RedactPHI)

	lines := p.parseTables(ctx, in.Tables)
	if len(lines) == 0 {
		lines = p.parseTextRows(ctx, in.Text, 1)
	}
	if len(lines) == 0 {
		lines = []domain.LineItem{placeholderLine(in.Text)}
	}

	if header.Provider != nil || header.Payer != nil {
		p.reexplain(ctx, lines, header)
	}

	doc := &domain.ParsedDocument{
		DocType:    classify(lines),
		Header:     header,
		Lines:      lines,
		Totals:     sumTotals(lines),
		MathChecks: []domain.MathCheck{},
		Notes:      []string{},
	}

	reconcile.Document(doc)
	if !doc.Totals.Reconciles {
		residual := doc.Totals.TotalCharge + doc.Totals.TotalAdjustments - doc.Totals.PayerPaid - doc.Totals.PatientOwes
		doc.Notes = append(doc.Notes, fmt.Sprintf(
			"Document totals do not reconcile: charge %.2f plus adjustments %.2f minus payer paid %.2f minus patient owes %.2f leaves %.2f unexplained.",
			doc.Totals.TotalCharge, doc.Totals.TotalAdjustments, doc.Totals.PayerPaid, doc.Totals.PatientOwes, residual))
	}

	log.Printf("parse.Pipeline: %s parsed type=%s lines=%d reconciles=%t", parseID, doc.DocType, len(doc.Lines), doc.Totals.Reconciles)
	return doc
}

// parseTables normalizes every table grid, continuing line numbering across
// tables. A failure while handling one table skips that table only.
func (p *Pipeline) parseTables(ctx context.Context, tables [][][]string) []domain.LineItem {
	var items []domain.LineItem
	lineNo := 1
	for i, table := range tables {
		parsed, err := p.parseTable(ctx, table, lineNo)
		if err != nil {
			log.Printf("parse.Pipeline: skipping table %d: %v", i+1, err)
			continue
		}
		items = append(items, parsed...)
		lineNo += len(parsed)
	}
	return items
}

func (p *Pipeline) parseTable(ctx context.Context, table [][]string, startLineNo int) (items []domain.LineItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			items = nil
			err = fmt.Errorf("normalizing table rows: %v", r)
		}
	}()
	if len(table) == 0 {
		return nil, nil
	}
	headers := canonicalHeaders(trimAll(table[0]), p.cfg.HeaderSynonyms)
	lineNo := startLineNo
	for _, cells := range table[1:] {
		if emptyRow(cells) {
			continue
		}
		items = append(items, p.rows.normalize(ctx, rowMap(headers, trimAll(cells)), lineNo, false))
		lineNo++
	}
	return items, nil
}

func emptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// placeholderLine summarizes a document whose line items could not be
// extracted at all, carrying a best-effort total found near the closest
// "total" line in the raw text.
func placeholderLine(rawText string) domain.LineItem {
	totalCharge := bestEffortTotal(rawText)
	return domain.LineItem{
		LineNo:          1,
		CodeType:        domain.CodeTypeUnknown,
		Modifiers:       []string{},
		DescriptionRaw:  "Unable to reliably parse line items; presenting document total only.",
		Charge:          totalCharge,
		Adjustments:     []domain.Adjustment{},
		PatientOwesLine: totalCharge,
		Explanation:     "Document totals captured; per-line detail unavailable.",
		Confidence:      minConfidence,
		Warnings:        []string{tableFailedWarning},
	}
}

// bestEffortTotal fuzzy-matches the token "total" across raw-text lines and
// parses the best line's trailing token as an amount.
func bestEffortTotal(rawText string) float64 {
	lines := strings.Split(rawText, "\n")
	ranks := fuzzy.RankFindNormalizedFold("total", lines)
	if len(ranks) == 0 {
		return 0
	}
	best := ranks[0]
	for _, r := range ranks[1:] {
		if r.Distance < best.Distance {
			best = r
		}
	}
	fields := strings.Fields(best.Target)
	if len(fields) == 0 {
		return 0
	}
	amount, _ := Amount(fields[len(fields)-1])
	return amount
}

// reexplain re-runs the explainer with header context, upgrading narratives.
// Confidence never decreases and warnings are never duplicated.
func (p *Pipeline) reexplain(ctx context.Context, lines []domain.LineItem, header domain.Header) {
	for i := range lines {
		item := &lines[i]
		result := p.explainer.Explain(ctx, explainContext(item, header.Provider, header.Payer))
		item.Explanation = result.Narrative
		item.Confidence = math.Max(item.Confidence, math.Min(1.0, result.Confidence))
		for _, w := range result.Warnings {
			if !slices.Contains(item.Warnings, w) {
				item.Warnings = append(item.Warnings, w)
			}
		}
	}
}

// sumTotals aggregates document totals directly from the line collection.
func sumTotals(lines []domain.LineItem) domain.Totals {
	var t domain.Totals
	for i := range lines {
		line := &lines[i]
		t.TotalCharge += line.Charge
		if line.Allowed != nil {
			t.TotalAllowed += *line.Allowed
		}
		t.TotalAdjustments += adjustmentSum(line.Adjustments)
		t.PayerPaid += floatOr(line.PayerPaid, 0)
		t.PatientOwes += line.PatientOwesLine
	}
	t.Reconciles = math.Abs(t.TotalCharge+t.TotalAdjustments-t.PayerPaid-t.PatientOwes) < reconcile.Tolerance
	return t
}

// classify distinguishes payer-issued statements from provider bills: an EOB
// carries both a positive patient share and a payer payment somewhere in its
// lines; an allowed amount without payer activity reads as a provider bill.
func classify(lines []domain.LineItem) domain.DocType {
	hasPatientShare := false
	hasPayerPaid := false
	hasAllowed := false
	for i := range lines {
		if lines[i].PatientOwesLine > 0 {
			hasPatientShare = true
		}
		if lines[i].PayerPaid != nil {
			hasPayerPaid = true
		}
		if lines[i].Allowed != nil {
			hasAllowed = true
		}
	}
	switch {
	case hasPatientShare && hasPayerPaid:
		return domain.DocTypeEOB
	case hasAllowed:
		return domain.DocTypeProviderBill
	default:
		return domain.DocTypeUnknown
	}
}
