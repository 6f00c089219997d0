package csvexport

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medbill/internal/domain"
)

func f64(v float64) *float64 { return &v }

func sampleLine() domain.LineItem {
	code := "99213"
	return domain.LineItem{
		LineNo:         1,
		DateOfService:  domain.NewDate(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)),
		CodeType:       domain.CodeTypeUnknown,
		Code:           &code,
		DescriptionRaw: "Office visit",
		Charge:         150.00,
		Allowed:        f64(120.00),
		Adjustments: []domain.Adjustment{
			{Type: domain.AdjustmentTypeContractual, Amount: -30.00},
		},
		PayerPaid:       f64(90.00),
		PatientResp:     domain.PatientResponsibility{Deductible: 30.00},
		PatientOwesLine: 30.00,
		Confidence:      0.75,
		Warnings:        []string{"Line math does not perfectly reconcile"},
	}
}

func TestWriter_WriteLines(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.WriteLines([]domain.LineItem{sampleLine()}))
	w.Flush()
	require.NoError(t, w.Error())

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	header := records[0]
	assert.Equal(t, columns, header)

	row := records[1]
	require.Len(t, row, len(columns))
	assert.Equal(t, "1", row[0])
	assert.Equal(t, "2024-01-15", row[1])
	assert.Equal(t, "99213", row[2])
	assert.Equal(t, "UNKNOWN", row[3])
	assert.Equal(t, "Office visit", row[4])
	assert.Equal(t, "", row[5])
	assert.Equal(t, "150.00", row[6])
	assert.Equal(t, "120.00", row[7])
	assert.Equal(t, "contractual:-30.00", row[8])
	assert.Equal(t, "90.00", row[9])
	assert.Equal(t, "30.00", row[10])
	assert.Equal(t, "0.00", row[11])
	assert.Equal(t, "30.00", row[14])
	assert.Equal(t, "0.75", row[15])
	assert.Equal(t, "Line math does not perfectly reconcile", row[16])
}

func TestWriter_EmptyOptionalColumns(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	line := domain.LineItem{LineNo: 2, CodeType: domain.CodeTypeUnknown, DescriptionRaw: "Service"}
	require.NoError(t, w.WriteLines([]domain.LineItem{line}))
	w.Flush()
	require.NoError(t, w.Error())

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	row := records[0]
	assert.Equal(t, "", row[1]) // date
	assert.Equal(t, "", row[2]) // code
	assert.Equal(t, "", row[7]) // allowed
	assert.Equal(t, "", row[8]) // adjustments
	assert.Equal(t, "", row[9]) // insurance paid
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "pass_plain", input: "statement", want: "statement"},
		{name: "pass_spaces_and_symbols", input: "Jan 2024 / EOB!", want: "Jan_2024_EOB"},
		{name: "pass_collapses_underscores", input: "a___b", want: "a_b"},
		{name: "pass_trims_edges", input: "__x__", want: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.input))
		})
	}
}

func TestBuildFilename(t *testing.T) {
	got := BuildFilename("My EOB")
	assert.Regexp(t, `^My_EOB_\d{4}-\d{2}-\d{2}\.csv$`, got)
}
