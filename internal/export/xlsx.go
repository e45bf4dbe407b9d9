// Package export renders diagnostic history into shareable artifacts.
package export

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/certi-mate/compliance-api/internal/model"
)

var historyHeader = []string{
	"Created", "Type", "Product", "Category", "Summary", "Result JSON",
}

// WriteHistoryXLSX writes one workbook with a single History sheet, one row
// per diagnostic. The full payload goes in the last column so nothing is
// lost to the summary view.
func WriteHistoryXLSX(records []model.HistoryRecord, path string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("History")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range historyHeader {
		header.AddCell().SetString(h)
	}

	for _, rec := range records {
		payload, err := json.Marshal(rec.Payload)
		if err != nil {
			return eris.Wrapf(err, "export: marshal payload for %s", rec.ID)
		}
		result := model.DiagnosticResult{Type: rec.Type, Payload: rec.Payload}

		row := sheet.AddRow()
		row.AddCell().SetString(rec.CreatedAt.Format("2006-01-02 15:04"))
		row.AddCell().SetString(string(rec.Type))
		row.AddCell().SetString(rec.ProductName)
		row.AddCell().SetString(rec.Category)
		row.AddCell().SetString(result.Summary())
		row.AddCell().SetString(string(payload))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "export: save workbook")
	}
	return nil
}
