package record

import (
	"reflect"
	"testing"
	"time"
)

func TestRow_Values(t *testing.T) {
	d := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	rec := Record{Index: 2, Date: "May 1st 2023", EventType: "Exam", DocumentSummary: "s", Evaluation: "e", Page: "01/060"}

	tests := []struct {
		name string
		row  Row
		want []string
	}{
		{"parsed date", Row{Record: rec, ParsedDate: &d}, []string{"2023-05-01", "Exam", "s", "e", "01/060"}},
		{"null date", Row{Record: rec}, []string{"", "Exam", "s", "e", "01/060"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.row.Values(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Values() = %v, want %v", got, tt.want)
			}
			if len(tt.row.Values()) != len(Columns) {
				t.Error("Values() length must match Columns")
			}
		})
	}
}
