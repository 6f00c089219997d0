package xlsx_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"medbill/internal/extractor/xlsx"
)

func writeWorkbook(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Description", "Charge", "Ins Paid"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"Office visit", "150.00", "90.00"}))

	path := filepath.Join(t.TempDir(), "statement.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestExtract(t *testing.T) {
	path := writeWorkbook(t)

	extraction, err := xlsx.New().Extract(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, extraction.Tables, 1)
	table := extraction.Tables[0]
	require.Len(t, table, 2)
	assert.Equal(t, []string{"Description", "Charge", "Ins Paid"}, table[0])
	assert.Equal(t, []string{"Office visit", "150.00", "90.00"}, table[1])

	assert.Contains(t, extraction.Text, "Office visit\t150.00\t90.00")
}

func TestExtract_MissingFile(t *testing.T) {
	_, err := xlsx.New().Extract(context.Background(), filepath.Join(t.TempDir(), "nope.xlsx"))
	assert.Error(t, err)
}
