package table

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/jackzampolin/medsum/internal/pipeline"
	"github.com/jackzampolin/medsum/internal/record"
)

// SheetName is the worksheet holding the result table.
const SheetName = "Summary"

var columnWidths = map[string]float64{
	"A": 12, // date
	"B": 24, // event_type
	"C": 80, // document_summary
	"D": 40, // evaluation
	"E": 10, // page
}

// WriteXLSX writes rows to an XLSX workbook with a bold header row.
func WriteXLSX(path string, rows []record.Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return pipeline.NewIOError("write", path, err)
	}

	for i, h := range record.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return pipeline.NewIOError("write", path, err)
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(SheetName, "A1", fmt.Sprintf("%c1", 'A'+len(record.Columns)-1), style)
	}

	for r, row := range rows {
		for c, v := range row.Values() {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return pipeline.NewIOError("write", path, err)
			}
		}
	}
	for col, w := range columnWidths {
		_ = f.SetColWidth(SheetName, col, col, w)
	}
	_ = f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return pipeline.NewIOError("write", path, err)
	}
	if err := f.SaveAs(path); err != nil {
		return pipeline.NewIOError("write", path, err)
	}
	return nil
}
