package parse

import (
	"context"
	"regexp"
	"strings"

	"medbill/internal/domain"
)

// textFallbackWarning tags lines recovered from raw text rather than a
// table grid.
const textFallbackWarning = "Parsed from raw text"

var multiSpaceSplit = regexp.MustCompile(`\s{2,}`)

// textHeaderLine reports whether a raw line looks like a ledger header: it
// must mention a charge column plus at least one payer- or patient-side
// column.
func textHeaderLine(line string) bool {
	lower := strings.ToLower(line)
	if !strings.Contains(lower, "charge") {
		return false
	}
	return strings.Contains(lower, "allowed") ||
		strings.Contains(lower, "insurance") ||
		strings.Contains(lower, "patient")
}

// splitTextRow splits on tabs when present, otherwise on runs of two or
// more spaces.
func splitTextRow(line string) []string {
	if strings.Contains(line, "\t") {
		return strings.Split(line, "\t")
	}
	return multiSpaceSplit.Split(line, -1)
}

// parseTextRows recovers line items from tab- or whitespace-separated rows
// in the raw text. It runs only when no table grid produced any lines, and
// keeps the same numbering sequence.
func (p *Pipeline) parseTextRows(ctx context.Context, rawText string, nextLineNo int) []domain.LineItem {
	lines := strings.Split(rawText, "\n")
	headerIdx := -1
	for i, line := range lines {
		if textHeaderLine(line) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil
	}

	headers := canonicalHeaders(trimAll(splitTextRow(strings.TrimSpace(lines[headerIdx]))), p.cfg.HeaderSynonyms)
	var items []domain.LineItem
	for _, line := range lines[headerIdx+1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cells := splitTextRow(line)
		if len(cells) < 3 {
			continue
		}
		items = append(items, p.rows.normalize(ctx, rowMap(headers, trimAll(cells)), nextLineNo, true))
		nextLineNo++
	}
	return items
}

func trimAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}
