// Package stages adapts the split, OCR, chunk, extract, normalize and write
// components to pipeline stages and assembles them into a registry.
package stages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/jackzampolin/medsum/internal/chunk"
	"github.com/jackzampolin/medsum/internal/extract"
	"github.com/jackzampolin/medsum/internal/llmcall"
	"github.com/jackzampolin/medsum/internal/normalize"
	"github.com/jackzampolin/medsum/internal/ocr"
	"github.com/jackzampolin/medsum/internal/pipeline"
	"github.com/jackzampolin/medsum/internal/prompts"
	"github.com/jackzampolin/medsum/internal/providers"
	"github.com/jackzampolin/medsum/internal/split"
	"github.com/jackzampolin/medsum/internal/table"
)

// Stage names.
const (
	Split     = "split"
	OCR       = "ocr"
	Chunk     = "chunk"
	Extract   = "extract"
	Normalize = "normalize"
	Write     = "write"
)

// All lists every stage in run order.
var All = []string{Split, OCR, Chunk, Extract, Normalize, Write}

// Settings are the pipeline knobs shared by every stage.
type Settings struct {
	PagesPerSplit int
	ChunkSize     int
	ChunkOverlap  int

	OCR     ocr.Config
	Extract extract.Config

	Nulls     normalize.NullPolicy
	DayFirst  bool
	WriteXLSX bool

	// RecordCalls appends every extraction call to llm_calls.jsonl in the
	// work directory.
	RecordCalls bool
}

// DefaultSettings mirrors the configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		PagesPerSplit: split.DefaultPagesPerSplit,
		ChunkSize:     chunk.DefaultSize,
		ChunkOverlap:  chunk.DefaultOverlap,
		Nulls:         normalize.NullsLast,
		RecordCalls:   true,
	}
}

// Deps are the collaborators stages need. OCR and LLM may be nil when the
// stages that use them are not run.
type Deps struct {
	OCR      providers.OCRProvider
	LLM      providers.LLMClient
	Prompts  *prompts.Resolver
	Settings Settings
	Logger   *slog.Logger
}

// NewRegistry registers every stage against deps.
func NewRegistry(deps Deps) (*pipeline.Registry, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	r := pipeline.NewRegistry()
	for _, s := range []pipeline.Stage{
		&splitStage{deps},
		&ocrStage{deps},
		&chunkStage{deps},
		&extractStage{deps},
		&normalizeStage{deps},
		&writeStage{deps},
	} {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// TextPath returns where the aggregated OCR text lives for st.
func TextPath(st *pipeline.State) string {
	if st.TextPath != "" {
		return st.TextPath
	}
	return filepath.Join(st.WorkDir, ocr.TextFileName)
}

type splitStage struct{ deps Deps }

func (s *splitStage) Name() string           { return Split }
func (s *splitStage) Dependencies() []string { return nil }
func (s *splitStage) Description() string {
	return "Split the source PDF into numbered sub-documents"
}

func (s *splitStage) Run(ctx context.Context, st *pipeline.State) error {
	units, err := split.New(s.deps.Settings.PagesPerSplit, s.deps.Logger).Split(ctx, st.SourcePath, st.WorkDir)
	if err != nil {
		return err
	}
	st.SubUnits = make([]string, len(units))
	for i, u := range units {
		st.SubUnits[i] = u.Path
	}
	return nil
}

type ocrStage struct{ deps Deps }

func (s *ocrStage) Name() string           { return OCR }
func (s *ocrStage) Dependencies() []string { return []string{Split} }
func (s *ocrStage) Description() string {
	return "OCR each sub-document and aggregate the text"
}

func (s *ocrStage) Run(ctx context.Context, st *pipeline.State) error {
	if s.deps.OCR == nil {
		return errors.New("no OCR provider configured")
	}
	refs := st.SubUnits
	if len(refs) == 0 {
		var err error
		if refs, err = split.Discover(st.WorkDir); err != nil {
			return err
		}
	}
	path := TextPath(st)
	res, err := ocr.New(s.deps.OCR, s.deps.Settings.OCR, s.deps.Logger).Run(ctx, refs, path)
	if err != nil {
		return err
	}
	st.Text = res.Text
	st.TextPath = path
	st.CostUSD += res.CostUSD()
	return nil
}

type chunkStage struct{ deps Deps }

func (s *chunkStage) Name() string           { return Chunk }
func (s *chunkStage) Dependencies() []string { return []string{OCR} }
func (s *chunkStage) Description() string {
	return "Split the aggregated text into overlapping chunks"
}

func (s *chunkStage) Run(ctx context.Context, st *pipeline.State) error {
	if st.Text == "" {
		text, err := ocr.ReadText(TextPath(st))
		if err != nil {
			return err
		}
		st.Text = text
	}
	seq, err := chunk.Split(st.Text, s.deps.Settings.ChunkSize, s.deps.Settings.ChunkOverlap)
	if err != nil {
		return err
	}
	st.Chunks = seq
	st.ChunkCount = chunk.Count(seq)
	s.deps.Logger.Info("text chunked",
		"chars", len([]rune(st.Text)),
		"chunks", st.ChunkCount,
		"size", s.deps.Settings.ChunkSize,
		"overlap", s.deps.Settings.ChunkOverlap,
	)
	return nil
}

type extractStage struct{ deps Deps }

func (s *extractStage) Name() string           { return Extract }
func (s *extractStage) Dependencies() []string { return []string{Chunk} }
func (s *extractStage) Description() string {
	return "Extract one structured record per chunk"
}

func (s *extractStage) Run(ctx context.Context, st *pipeline.State) error {
	if s.deps.LLM == nil {
		return errors.New("no LLM provider configured")
	}
	if st.Chunks == nil {
		return fmt.Errorf("no chunks to extract")
	}

	opts := []extract.Option{extract.WithRunID(st.RunID)}
	if s.deps.Prompts != nil {
		opts = append(opts, extract.WithPrompts(s.deps.Prompts))
	}
	if s.deps.Settings.RecordCalls && st.WorkDir != "" {
		rec, err := llmcall.NewRecorder(filepath.Join(st.WorkDir, llmcall.FileName), s.deps.Logger)
		if err != nil {
			s.deps.Logger.Warn("call log disabled", "error", err)
		} else {
			defer rec.Close()
			opts = append(opts, extract.WithRecorder(rec))
		}
	}

	out, err := extract.New(s.deps.LLM, s.deps.Settings.Extract, s.deps.Logger, opts...).Aggregate(ctx, st.Chunks)
	if out != nil {
		st.Records = out.Records
		st.CostUSD += out.CostUSD
	}
	return err
}

type normalizeStage struct{ deps Deps }

func (s *normalizeStage) Name() string           { return Normalize }
func (s *normalizeStage) Dependencies() []string { return []string{Extract} }
func (s *normalizeStage) Description() string {
	return "Parse dates and sort records newest first"
}

func (s *normalizeStage) Run(ctx context.Context, st *pipeline.State) error {
	st.Rows = normalize.Normalize(st.Records, normalize.Options{
		Nulls:    s.deps.Settings.Nulls,
		DayFirst: s.deps.Settings.DayFirst,
	})
	s.deps.Logger.Info("records normalized", "rows", len(st.Rows), "null_dates", normalize.NullCount(st.Rows))
	return nil
}

type writeStage struct{ deps Deps }

func (s *writeStage) Name() string           { return Write }
func (s *writeStage) Dependencies() []string { return []string{Normalize} }
func (s *writeStage) Description() string {
	return "Write the result table"
}

func (s *writeStage) Run(ctx context.Context, st *pipeline.State) error {
	if len(st.Rows) == 0 {
		return &pipeline.NoDataError{Chunks: st.ChunkCount}
	}
	if err := table.WriteCSV(st.OutputPath, st.Rows); err != nil {
		return err
	}
	st.Written = append(st.Written, st.OutputPath)

	if s.deps.Settings.WriteXLSX {
		path := table.XLSXPath(st.OutputPath)
		if err := table.WriteXLSX(path, st.Rows); err != nil {
			return err
		}
		st.Written = append(st.Written, path)
	}
	s.deps.Logger.Info("table written", "files", st.Written, "rows", len(st.Rows))
	return nil
}
