// Package csvexport renders parsed documents as flat CSV ledgers for
// spreadsheet review.
package csvexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"medbill/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns defines the CSV header row (17 columns).
var columns = []string{
	"Line No",
	"Date Of Service",
	"Code",
	"Code Type",
	"Description",
	"Units",
	"Charge",
	"Allowed",
	"Adjustments",
	"Insurance Paid",
	"Deductible",
	"Copay",
	"Coinsurance",
	"Non-Covered",
	"Patient Owes",
	"Confidence",
	"Warnings",
}

// Writer wraps csv.Writer for exporting line-item ledgers as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the 17-column header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteLines converts the line items of a document to CSV rows and writes
// them in order.
func (w *Writer) WriteLines(lines []domain.LineItem) error {
	for i := range lines {
		if err := w.csv.Write(lineToRow(&lines[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

// lineToRow converts a single line item to a 17-element string slice.
func lineToRow(line *domain.LineItem) []string {
	row := make([]string, len(columns))
	row[0] = strconv.Itoa(line.LineNo)
	row[1] = formatDate(line.DateOfService)
	row[2] = strOr(line.Code)
	row[3] = line.CodeType
	row[4] = line.DescriptionRaw
	row[5] = formatOptionalMoney(line.Units)
	row[6] = formatMoney(line.Charge)
	row[7] = formatOptionalMoney(line.Allowed)
	row[8] = formatAdjustments(line.Adjustments)
	row[9] = formatOptionalMoney(line.PayerPaid)
	row[10] = formatMoney(line.PatientResp.Deductible)
	row[11] = formatMoney(line.PatientResp.Copay)
	row[12] = formatMoney(line.PatientResp.Coinsurance)
	row[13] = formatMoney(line.PatientResp.NonCovered)
	row[14] = formatMoney(line.PatientOwesLine)
	row[15] = strconv.FormatFloat(line.Confidence, 'f', 2, 64)
	row[16] = strings.Join(line.Warnings, "; ")
	return row
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatOptionalMoney(v *float64) string {
	if v == nil {
		return ""
	}
	return formatMoney(*v)
}

func formatDate(d *domain.Date) string {
	if d == nil {
		return ""
	}
	return d.Format("2006-01-02")
}

func formatAdjustments(adjustments []domain.Adjustment) string {
	if len(adjustments) == 0 {
		return ""
	}
	parts := make([]string, 0, len(adjustments))
	for _, a := range adjustments {
		parts = append(parts, fmt.Sprintf("%s:%s", a.Type, formatMoney(a.Amount)))
	}
	return strings.Join(parts, "; ")
}

func strOr(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a document name for use in an output filename.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns a sanitized ledger filename.
// Format: {sanitized_document_name}_{YYYY-MM-DD}.csv
func BuildFilename(documentName string) string {
	sanitized := SanitizeFilename(documentName)
	date := time.Now().Format("2006-01-02")
	return fmt.Sprintf("%s_%s.csv", sanitized, date)
}
