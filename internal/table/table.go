// Package table writes the normalized result table as CSV and, optionally,
// as an XLSX workbook.
package table

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackzampolin/medsum/internal/pipeline"
	"github.com/jackzampolin/medsum/internal/record"
)

// DefaultFileName is the result table written under the data directory.
const DefaultFileName = "medical_docs_summary.csv"

// WriteCSV writes rows as UTF-8 CSV with a header of record.Columns. The
// file is written to a temporary name and renamed into place; the temporary
// file is removed when any step fails.
func WriteCSV(path string, rows []record.Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return pipeline.NewIOError("write", path, err)
	}
	tmp := path + ".tmp"
	if err := writeRows(tmp, rows); err != nil {
		os.Remove(tmp)
		return pipeline.NewIOError("write", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return pipeline.NewIOError("write", path, err)
	}
	return nil
}

func writeRows(name string, rows []record.Row) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(record.Columns); err != nil {
		f.Close()
		return err
	}
	for _, r := range rows {
		if err := w.Write(r.Values()); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadCSV loads a table written by WriteCSV. Rows keep the raw date string
// and, where it is a valid ISO date, the parsed date.
func ReadCSV(path string) ([]record.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pipeline.NewIOError("read", path, err)
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, pipeline.NewIOError("parse", path, err)
	}
	if len(all) == 0 {
		return nil, nil
	}
	rows := make([]record.Row, 0, len(all)-1)
	for i, cells := range all[1:] {
		row := record.Row{Record: record.Record{
			Index:           i + 1,
			Date:            cells[0],
			EventType:       cells[1],
			DocumentSummary: cells[2],
			Evaluation:      cells[3],
			Page:            cells[4],
		}}
		if t, err := record.ParseISO(cells[0]); err == nil {
			row.ParsedDate = &t
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// XLSXPath returns the workbook path written next to a CSV table.
func XLSXPath(csvPath string) string {
	return strings.TrimSuffix(csvPath, filepath.Ext(csvPath)) + ".xlsx"
}
