// Package xlsx converts spreadsheet workbooks into the pipeline's
// extraction contract: each non-empty sheet becomes one table grid, and the
// tab-joined cell text doubles as the raw-text view.
package xlsx

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"medbill/internal/port"
)

// Extractor implements port.DocumentExtractor for .xlsx workbooks.
type Extractor struct{}

// New creates an xlsx Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract opens the workbook at path and flattens its sheets.
func (e *Extractor) Extract(_ context.Context, path string) (*port.Extraction, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	var tables [][][]string
	var text strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("reading sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		tables = append(tables, rows)
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
	}
	return &port.Extraction{Text: text.String(), Tables: tables}, nil
}
