// Package record defines the structured record extracted from one text chunk
// and the normalized table row built from it.
package record

import "time"

// DateLayout is the ISO calendar date format used in result tables.
const DateLayout = "2006-01-02"

// Columns lists the result table columns in output order.
var Columns = []string{"date", "event_type", "document_summary", "evaluation", "page"}

// Record is one structured record. Index is the 1-based chunk index it was
// extracted from; Date and Page are free text as returned by the model.
type Record struct {
	Index           int    `json:"index" yaml:"index"`
	Date            string `json:"date" yaml:"date"`
	EventType       string `json:"event_type" yaml:"event_type"`
	DocumentSummary string `json:"document_summary" yaml:"document_summary"`
	Evaluation      string `json:"evaluation" yaml:"evaluation"`
	Page            string `json:"page" yaml:"page"`
}

// Row is a Record after date normalization. ParsedDate is nil when the raw
// date could not be parsed.
type Row struct {
	Record
	ParsedDate *time.Time `json:"parsed_date,omitempty" yaml:"parsed_date,omitempty"`
}

// DateString returns the ISO date, or "" for a null date.
func (r Row) DateString() string {
	if r.ParsedDate == nil {
		return ""
	}
	return r.ParsedDate.Format(DateLayout)
}

// Values returns the row's cells in Columns order.
func (r Row) Values() []string {
	return []string{r.DateString(), r.EventType, r.DocumentSummary, r.Evaluation, r.Page}
}

// ParseISO parses a DateLayout date in UTC.
func ParseISO(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
