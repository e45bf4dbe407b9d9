package export

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/certi-mate/compliance-api/internal/model"
)

func TestWriteHistoryXLSX(t *testing.T) {
	records := []model.HistoryRecord{
		{
			ID:          "rec-1",
			Type:        model.DiagnosticRegulatory,
			ProductName: "LED desk lamp",
			Category:    "lighting",
			Payload:     map[string]any{"summary": "Two certifications apply."},
			CreatedAt:   time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC),
		},
		{
			ID:          "rec-2",
			Type:        model.DiagnosticRisk,
			ProductName: "Space heater",
			Category:    "heating",
			Payload:     map[string]any{"overall_risk_level": "High"},
			CreatedAt:   time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC),
		},
	}

	path := filepath.Join(t.TempDir(), "history.xlsx")
	require.NoError(t, WriteHistoryXLSX(records, path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	sheet, ok := f.Sheet["History"]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 3, "header plus one row per record")

	header := sheet.Rows[0]
	assert.Equal(t, "Created", header.Cells[0].String())
	assert.Equal(t, "Type", header.Cells[1].String())

	first := sheet.Rows[1]
	assert.Equal(t, "2026-08-01 09:30", first.Cells[0].String())
	assert.Equal(t, "regulatory", first.Cells[1].String())
	assert.Equal(t, "LED desk lamp", first.Cells[2].String())
	assert.Equal(t, "Two certifications apply.", first.Cells[4].String())
	assert.Contains(t, first.Cells[5].String(), `"summary"`)

	second := sheet.Rows[2]
	assert.Equal(t, "risk", second.Cells[1].String())
	assert.Empty(t, second.Cells[4].String(), "risk payloads have no summary field")
}

func TestWriteHistoryXLSXEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, WriteHistoryXLSX(nil, path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheet["History"].Rows, 1, "header only")
}
