// Package split partitions a PDF into numbered sub-documents of at most N
// pages each, written as split_1.pdf, split_2.pdf, ... in a work directory.
package split

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/jackzampolin/medsum/internal/pipeline"
)

// DefaultPagesPerSplit matches the page limit of synchronous OCR requests.
const DefaultPagesPerSplit = 15

var (
	ErrInvalidPagesPerSplit = errors.New("pages per split must be at least 1")
	ErrNoPages              = errors.New("document has no pages")
)

// SubUnit is one written sub-document. Pages are 1-based and inclusive.
type SubUnit struct {
	Index     int    `json:"index" yaml:"index"`
	Path      string `json:"path" yaml:"path"`
	FirstPage int    `json:"first_page" yaml:"first_page"`
	LastPage  int    `json:"last_page" yaml:"last_page"`
}

// Pages returns the number of pages in the sub-unit.
func (s SubUnit) Pages() int { return s.LastPage - s.FirstPage + 1 }

// Splitter writes sub-documents with pdfcpu.
type Splitter struct {
	PagesPerSplit int
	Logger        *slog.Logger

	conf *model.Configuration
}

// New creates a splitter. Scanned records are often slightly malformed, so
// pdfcpu runs in relaxed validation mode.
func New(pagesPerSplit int, logger *slog.Logger) *Splitter {
	if logger == nil {
		logger = slog.Default()
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Splitter{PagesPerSplit: pagesPerSplit, Logger: logger, conf: conf}
}

// Ranges returns the 1-based inclusive page ranges for total pages split
// into groups of per. Only the last range may be shorter.
func Ranges(total, per int) [][2]int {
	if total < 1 || per < 1 {
		return nil
	}
	out := make([][2]int, 0, (total+per-1)/per)
	for first := 1; first <= total; first += per {
		last := min(first+per-1, total)
		out = append(out, [2]int{first, last})
	}
	return out
}

// Split clears outputDir and writes ceil(pages/PagesPerSplit) sub-documents
// of sourcePath into it, returned in index order.
func (s *Splitter) Split(ctx context.Context, sourcePath, outputDir string) ([]SubUnit, error) {
	if s.PagesPerSplit < 1 {
		return nil, ErrInvalidPagesPerSplit
	}

	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, pipeline.NewIOError("open", sourcePath, err)
	}
	total, err := api.PageCount(bytes.NewReader(data), s.conf)
	if err != nil {
		return nil, pipeline.NewIOError("parse", sourcePath, err)
	}
	if total < 1 {
		return nil, pipeline.NewIOError("parse", sourcePath, ErrNoPages)
	}

	if err := ClearDir(outputDir); err != nil {
		return nil, err
	}

	ranges := Ranges(total, s.PagesPerSplit)
	s.Logger.Info("splitting document",
		"source", sourcePath,
		"pages", total,
		"pages_per_split", s.PagesPerSplit,
		"sub_units", len(ranges),
	)

	units := make([]SubUnit, 0, len(ranges))
	for i, r := range ranges {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		unit := SubUnit{
			Index:     i + 1,
			Path:      filepath.Join(outputDir, FileName(i+1)),
			FirstPage: r[0],
			LastPage:  r[1],
		}
		if err := s.writeUnit(data, unit); err != nil {
			return nil, err
		}
		s.Logger.Debug("wrote sub-unit", "index", unit.Index, "first_page", unit.FirstPage, "last_page", unit.LastPage)
		units = append(units, unit)
	}
	return units, nil
}

func (s *Splitter) writeUnit(data []byte, unit SubUnit) error {
	selection := fmt.Sprintf("%d-%d", unit.FirstPage, unit.LastPage)
	if unit.FirstPage == unit.LastPage {
		selection = fmt.Sprintf("%d", unit.FirstPage)
	}

	f, err := os.Create(unit.Path)
	if err != nil {
		return pipeline.NewIOError("create", unit.Path, err)
	}
	if err := api.Trim(bytes.NewReader(data), f, []string{selection}, s.conf); err != nil {
		f.Close()
		return pipeline.NewIOError("write", unit.Path, fmt.Errorf("pages %s: %w", selection, err))
	}
	if err := f.Close(); err != nil {
		return pipeline.NewIOError("write", unit.Path, err)
	}
	return nil
}

// ClearDir empties dir, creating it when missing.
func ClearDir(dir string) error {
	if dir == "" {
		return pipeline.NewIOError("clear", dir, errors.New("empty directory path"))
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return pipeline.NewIOError("clear", dir, err)
	}
	if abs == filepath.Dir(abs) {
		return pipeline.NewIOError("clear", dir, errors.New("refusing to clear filesystem root"))
	}
	if home, err := os.UserHomeDir(); err == nil && abs == filepath.Clean(home) {
		return pipeline.NewIOError("clear", dir, errors.New("refusing to clear home directory"))
	}

	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return pipeline.NewIOError("clear", dir, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return pipeline.NewIOError("clear", dir, err)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pipeline.NewIOError("clear", dir, err)
	}
	return nil
}
