// Package pipeline runs medsum's stages in dependency order and defines the
// error kinds shared by every stage.
package pipeline

import (
	"context"
	"iter"
	"time"

	"github.com/jackzampolin/medsum/internal/chunk"
	"github.com/jackzampolin/medsum/internal/record"
)

// Stage is one step of a run. Stages read their inputs from and write their
// outputs to the shared State.
type Stage interface {
	Name() string           // e.g. "split", "ocr"
	Dependencies() []string // stages that must run first
	Description() string
	Run(ctx context.Context, st *State) error
}

// State carries artifacts between stages for a single run.
type State struct {
	RunID      string
	SourcePath string // input PDF
	WorkDir    string // split files, aggregated text, call log
	OutputPath string // CSV table

	SubUnits []string // split artifact paths in index order
	TextPath string   // aggregated OCR text on disk
	Text     string   // aggregated OCR text

	Chunks     iter.Seq[chunk.Chunk]
	ChunkCount int

	Records []record.Record
	Rows    []record.Row
	Written []string // table files written

	// CostUSD totals provider-reported cost across stages.
	CostUSD float64

	// Warnings holds non-fatal stage errors, e.g. a truncated extraction.
	Warnings   []error
	StageTimes map[string]time.Duration
}
