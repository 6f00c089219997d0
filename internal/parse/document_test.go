package parse_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medbill/internal/config"
	"medbill/internal/domain"
	"medbill/internal/explain"
	"medbill/internal/parse"
	"medbill/internal/port"
)

func testConfig() *config.Config {
	return &config.Config{
		Currency:       "$",
		DateLayouts:    []string{"01/02/2006", "2006-01-02", "01-02-2006"},
		RedactPHI:      true,
		HeaderSynonyms: config.DefaultHeaderSynonyms(),
		Explainer:      config.ExplainerConfig{Provider: "deterministic"},
	}
}

func newTestPipeline(t *testing.T) *parse.Pipeline {
	t.Helper()
	cfg := testConfig()
	return parse.NewPipeline(cfg, explain.NewDeterministic(cfg))
}

func TestPipeline_EOBTable(t *testing.T) {
	p := newTestPipeline(t)

	doc := p.Parse(context.Background(), port.Extraction{
		Tables: [][][]string{{
			{"Description", "Code", "DOS", "Charge", "Allowed", "Ins Paid", "Deductible"},
			{"Office visit", "99213", "01/15/2024", "150.00", "120.00", "90.00", "30.00"},
		}},
	})

	require.Len(t, doc.Lines, 1)
	line := doc.Lines[0]
	assert.Equal(t, 1, line.LineNo)
	require.NotNil(t, line.Code)
	assert.Equal(t, "99213", *line.Code)
	assert.Equal(t, domain.CodeTypeUnknown, line.CodeType)
	require.NotNil(t, line.DateOfService)
	assert.Equal(t, "2024-01-15", line.DateOfService.Format("2006-01-02"))
	assert.InDelta(t, 150.00, line.Charge, 1e-9)
	require.NotNil(t, line.Allowed)
	assert.InDelta(t, 120.00, *line.Allowed, 1e-9)
	require.NotNil(t, line.PayerPaid)
	assert.InDelta(t, 90.00, *line.PayerPaid, 1e-9)
	assert.InDelta(t, 30.00, line.PatientResp.Deductible, 1e-9)
	assert.InDelta(t, 30.00, line.PatientOwesLine, 1e-9)
	assert.InDelta(t, 0.75, line.Confidence, 1e-9)

	assert.Equal(t, domain.DocTypeEOB, doc.DocType)
	assert.InDelta(t, 150.00, doc.Totals.TotalCharge, 1e-9)
	assert.InDelta(t, 120.00, doc.Totals.TotalAllowed, 1e-9)
	assert.InDelta(t, 90.00, doc.Totals.PayerPaid, 1e-9)
	assert.InDelta(t, 30.00, doc.Totals.PatientOwes, 1e-9)

	// 150 - 90 - 30 leaves 30 unexplained without an adjustment column.
	assert.False(t, doc.Totals.Reconciles)
	assert.Contains(t, line.Warnings, "Line math does not perfectly reconcile")
	assert.NotEmpty(t, doc.Notes)

	require.Len(t, doc.MathChecks, 2)
	assert.Equal(t, "line_1_balance", doc.MathChecks[0].Name)
	assert.False(t, doc.MathChecks[0].Passed)
	assert.Equal(t, "sum_lines_equals_totals", doc.MathChecks[1].Name)
	assert.False(t, doc.MathChecks[1].Passed)
}

func TestPipeline_ReconcilingDocument(t *testing.T) {
	p := newTestPipeline(t)

	doc := p.Parse(context.Background(), port.Extraction{
		Tables: [][][]string{{
			{"Description", "Charge", "Adjustment", "Ins Paid", "Deductible"},
			{"Lab panel 80053", "200.00", "(50.00)", "120.00", "30.00"},
		}},
	})

	require.Len(t, doc.Lines, 1)
	line := doc.Lines[0]
	require.NotNil(t, line.Code)
	assert.Equal(t, "80053", *line.Code)
	require.Len(t, line.Adjustments, 1)
	assert.Equal(t, domain.AdjustmentTypeContractual, line.Adjustments[0].Type)
	assert.InDelta(t, -50.00, line.Adjustments[0].Amount, 1e-9)
	assert.InDelta(t, 30.00, line.PatientOwesLine, 1e-9)
	assert.NotContains(t, line.Warnings, "Line math does not perfectly reconcile")

	assert.True(t, doc.Totals.Reconciles)
	assert.Empty(t, doc.Notes)
	assert.Equal(t, domain.DocTypeEOB, doc.DocType)
	for _, check := range doc.MathChecks {
		assert.True(t, check.Passed, check.Name)
	}
}

func TestPipeline_SequentialLineNumbersAcrossTables(t *testing.T) {
	p := newTestPipeline(t)

	doc := p.Parse(context.Background(), port.Extraction{
		Tables: [][][]string{
			{
				{"Description", "Charge"},
				{"Visit", "100.00"},
				{"Lab", "50.00"},
			},
			{},
			{
				{"Description", "Charge"},
				{"Imaging", "200.00"},
				{"Therapy", "80.00"},
			},
		},
	})

	require.Len(t, doc.Lines, 4)
	for i, line := range doc.Lines {
		assert.Equal(t, i+1, line.LineNo)
	}
}

func TestPipeline_EmptyRowsSkipped(t *testing.T) {
	p := newTestPipeline(t)

	doc := p.Parse(context.Background(), port.Extraction{
		Tables: [][][]string{{
			{"Description", "Charge"},
			{"", "  "},
			{"Visit", "100.00"},
		}},
	})

	require.Len(t, doc.Lines, 1)
	assert.Equal(t, 1, doc.Lines[0].LineNo)
	assert.Equal(t, "Visit", doc.Lines[0].DescriptionRaw)
}

func TestPipeline_TextRowFallback(t *testing.T) {
	p := newTestPipeline(t)

	rawText := "Sunrise Clinic\n" +
		"Description  Code  Charge  Allowed  Ins Paid\n" +
		"Office visit  99213  150.00  120.00  90.00\n" +
		"Lab panel  80053  100.00  80.00  80.00\n"

	doc := p.Parse(context.Background(), port.Extraction{Text: rawText})

	require.Len(t, doc.Lines, 2)
	first := doc.Lines[0]
	assert.Contains(t, first.Warnings, "Parsed from raw text")
	require.NotNil(t, first.Code)
	assert.Equal(t, "99213", *first.Code)
	assert.InDelta(t, 150.00, first.Charge, 1e-9)
	// No component columns: the payer-derived remainder fills the total.
	assert.InDelta(t, 60.00, first.PatientOwesLine, 1e-9)
	assert.InDelta(t, 20.00, doc.Lines[1].PatientOwesLine, 1e-9)

	require.NotNil(t, doc.Header.Provider)
	assert.Equal(t, "Sunrise Clinic", *doc.Header.Provider)
	assert.Equal(t, domain.DocTypeEOB, doc.DocType)
}

func TestPipeline_TextRowsRequireThreeCells(t *testing.T) {
	p := newTestPipeline(t)

	rawText := "Description  Charge  Patient Owes\n" +
		"Visit  100.00\n" +
		"Lab  50.00  50.00\n"

	doc := p.Parse(context.Background(), port.Extraction{Text: rawText})

	require.Len(t, doc.Lines, 1)
	assert.Equal(t, "Lab", doc.Lines[0].DescriptionRaw)
}

func TestPipeline_PlaceholderWhenNothingParses(t *testing.T) {
	p := newTestPipeline(t)

	rawText := "Thank you for your visit\nAmount due soon\nGrand Total 123.45\n"

	doc := p.Parse(context.Background(), port.Extraction{Text: rawText})

	require.Len(t, doc.Lines, 1)
	line := doc.Lines[0]
	assert.Equal(t, 1, line.LineNo)
	assert.Equal(t, "Unable to reliably parse line items; presenting document total only.", line.DescriptionRaw)
	assert.Equal(t, "Document totals captured; per-line detail unavailable.", line.Explanation)
	assert.InDelta(t, 123.45, line.Charge, 1e-9)
	assert.InDelta(t, 123.45, line.PatientOwesLine, 1e-9)
	assert.InDelta(t, 0.1, line.Confidence, 1e-9)
	assert.Equal(t, []string{"Table extraction failed"}, line.Warnings)

	assert.Equal(t, domain.DocTypeUnknown, doc.DocType)
	assert.True(t, doc.Totals.Reconciles)
}

func TestPipeline_PlaceholderWithoutTotalLine(t *testing.T) {
	p := newTestPipeline(t)

	doc := p.Parse(context.Background(), port.Extraction{Text: "x\ny\n"})

	require.Len(t, doc.Lines, 1)
	assert.Zero(t, doc.Lines[0].Charge)
	assert.Equal(t, []string{"Table extraction failed"}, doc.Lines[0].Warnings)
}

func TestPipeline_ExplicitPatientTotalWins(t *testing.T) {
	p := newTestPipeline(t)

	doc := p.Parse(context.Background(), port.Extraction{
		Tables: [][][]string{{
			{"Description", "Charge", "Ins Paid", "Patient Responsibility"},
			{"X-ray", "300.00", "200.00", "75.00"},
		}},
	})

	require.Len(t, doc.Lines, 1)
	assert.InDelta(t, 75.00, doc.Lines[0].PatientOwesLine, 1e-9)
}

func TestPipeline_DerivedPatientTotal(t *testing.T) {
	p := newTestPipeline(t)

	doc := p.Parse(context.Background(), port.Extraction{
		Tables: [][][]string{{
			{"Description", "Charge", "Ins Paid"},
			{"Visit", "200.00", "150.00"},
		}},
	})

	require.Len(t, doc.Lines, 1)
	assert.InDelta(t, 50.00, doc.Lines[0].PatientOwesLine, 1e-9)
	assert.Equal(t, domain.DocTypeEOB, doc.DocType)
}

func TestPipeline_PatientTotalNeverNegative(t *testing.T) {
	p := newTestPipeline(t)

	doc := p.Parse(context.Background(), port.Extraction{
		Tables: [][][]string{{
			{"Description", "Charge", "Ins Paid"},
			{"Visit", "50.00", "100.00"},
		}},
	})

	require.Len(t, doc.Lines, 1)
	assert.Zero(t, doc.Lines[0].PatientOwesLine)
}

func TestPipeline_UnknownPatientRespColumnsFoldedIntoOther(t *testing.T) {
	p := newTestPipeline(t)

	doc := p.Parse(context.Background(), port.Extraction{
		Tables: [][][]string{{
			{"Description", "Charge", "Patient_Resp_Lab Fee"},
			{"Lab work", "100.00", "25.00"},
		}},
	})

	require.Len(t, doc.Lines, 1)
	line := doc.Lines[0]
	assert.InDelta(t, 25.00, line.PatientResp.Other["lab fee"], 1e-9)
	assert.InDelta(t, 25.00, line.PatientOwesLine, 1e-9)
	assert.Contains(t, line.Explanation, "lab fee $25.00")
}

func TestPipeline_DuplicateColumnsFirstOccurrenceWins(t *testing.T) {
	p := newTestPipeline(t)

	doc := p.Parse(context.Background(), port.Extraction{
		Tables: [][][]string{{
			{"Charge", "Amount", "Description"},
			{"100.00", "999.00", "Visit"},
		}},
	})

	require.Len(t, doc.Lines, 1)
	assert.InDelta(t, 100.00, doc.Lines[0].Charge, 1e-9)
}

func TestPipeline_ModifiersUnitsAndSniffedCode(t *testing.T) {
	p := newTestPipeline(t)

	doc := p.Parse(context.Background(), port.Extraction{
		Tables: [][][]string{{
			{"Description", "Modifiers", "Units", "Charge"},
			{"Therapy 97110", "25, 59", "2", "80.00"},
		}},
	})

	require.Len(t, doc.Lines, 1)
	line := doc.Lines[0]
	assert.Equal(t, []string{"25", "59"}, line.Modifiers)
	require.NotNil(t, line.Units)
	assert.InDelta(t, 2, *line.Units, 1e-9)
	require.NotNil(t, line.Code)
	assert.Equal(t, "97110", *line.Code)
}

func TestPipeline_HeaderContextEnrichesNarrative(t *testing.T) {
	p := newTestPipeline(t)

	doc := p.Parse(context.Background(), port.Extraction{
		Text: "Sunrise Clinic\n",
		Tables: [][][]string{{
			{"Description", "Charge"},
			{"Consultation", "100.00"},
		}},
	})

	require.Len(t, doc.Lines, 1)
	assert.Contains(t, doc.Lines[0].Explanation, "Sunrise Clinic")
}

func TestPipeline_ConfidenceWithinBounds(t *testing.T) {
	p := newTestPipeline(t)

	extractions := []port.Extraction{
		{Tables: [][][]string{{
			{"Description", "Charge", "Allowed", "Ins Paid", "Copay"},
			{"Visit", "150.00", "120.00", "100.00", "20.00"},
		}}},
		{Text: "Description  Charge  Patient Owes\nVisit  100.00  100.00\n"},
		{Text: "nothing useful here\n"},
	}

	for _, in := range extractions {
		doc := p.Parse(context.Background(), in)
		for _, line := range doc.Lines {
			assert.GreaterOrEqual(t, line.Confidence, 0.1)
			assert.LessOrEqual(t, line.Confidence, 1.0)
		}
	}
}
