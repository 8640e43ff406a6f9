package api

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/jackzampolin/medsum/internal/normalize"
	"github.com/jackzampolin/medsum/internal/pipeline"
)

// RunSummary is the printable result of a pipeline run.
type RunSummary struct {
	RunID     string `json:"run_id" yaml:"run_id"`
	Source    string `json:"source,omitempty" yaml:"source,omitempty"`
	WorkDir   string `json:"work_dir" yaml:"work_dir"`
	Status    string `json:"status" yaml:"status"` // ok, partial, failed
	ErrorKind string `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`

	SubUnits  int `json:"sub_units" yaml:"sub_units"`
	TextChars int `json:"text_chars" yaml:"text_chars"`
	Chunks    int `json:"chunks" yaml:"chunks"`
	Records   int `json:"records" yaml:"records"`
	Undated   int `json:"undated_rows" yaml:"undated_rows"`

	Outputs  []string          `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	CostUSD  float64           `json:"cost_usd" yaml:"cost_usd"`
	Warnings []string          `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Stages   map[string]string `json:"stages,omitempty" yaml:"stages,omitempty"`
}

// NewRunSummary summarizes st after a run that returned err.
func NewRunSummary(st *pipeline.State, err error) RunSummary {
	s := RunSummary{
		RunID:     st.RunID,
		Source:    st.SourcePath,
		WorkDir:   st.WorkDir,
		Status:    "ok",
		SubUnits:  len(st.SubUnits),
		TextChars: utf8.RuneCountInString(st.Text),
		Chunks:    st.ChunkCount,
		Records:   len(st.Records),
		Undated:   normalize.NullCount(st.Rows),
		Outputs:   st.Written,
		CostUSD:   st.CostUSD,
	}
	for _, w := range st.Warnings {
		s.Warnings = append(s.Warnings, w.Error())
	}
	if len(s.Warnings) > 0 {
		s.Status = "partial"
	}
	if len(st.StageTimes) > 0 {
		s.Stages = make(map[string]string, len(st.StageTimes))
		for name, d := range st.StageTimes {
			s.Stages[name] = d.Round(time.Millisecond).String()
		}
	}
	if err != nil {
		s.Status = "failed"
		s.ErrorKind = ErrorKind(err)
		s.Error = err.Error()
	}
	return s
}

// ErrorKind names the error category of err: io, collaborator, no_data or
// other.
func ErrorKind(err error) string {
	var ioErr *pipeline.IOError
	var collab *pipeline.CollaboratorError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, pipeline.ErrNoData):
		return "no_data"
	case errors.As(err, &collab):
		return "collaborator"
	case errors.As(err, &ioErr):
		return "io"
	}
	return "other"
}
