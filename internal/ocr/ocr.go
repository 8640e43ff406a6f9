// Package ocr submits split sub-documents to an OCR provider in index order
// and aggregates the returned text into a single stream.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackzampolin/medsum/internal/jobs"
	"github.com/jackzampolin/medsum/internal/pipeline"
	"github.com/jackzampolin/medsum/internal/providers"
	"github.com/jackzampolin/medsum/internal/split"
)

// TextFileName is the aggregated text artifact written to the work directory.
const TextFileName = "pdf_content.txt"

// Config controls retry and concurrency. The zero value submits one
// sub-unit at a time with no retries beyond the provider's own max_retries.
type Config struct {
	Retries     int
	RetryDelay  time.Duration
	CallTimeout time.Duration
	Concurrency int
}

// UnitResult records the OCR outcome of one sub-unit.
type UnitResult struct {
	Index    int           `json:"index" yaml:"index"`
	Path     string        `json:"path" yaml:"path"`
	Chars    int           `json:"chars" yaml:"chars"`
	Pages    int           `json:"pages" yaml:"pages"`
	CostUSD  float64       `json:"cost_usd" yaml:"cost_usd"`
	Attempts int           `json:"attempts" yaml:"attempts"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Result is the aggregated OCR output.
type Result struct {
	Text  string          `json:"-" yaml:"-"`
	Units []UnitResult    `json:"units" yaml:"units"`
	Pool  jobs.PoolStatus `json:"pool" yaml:"pool"`
}

// CostUSD totals the provider-reported cost.
func (r *Result) CostUSD() float64 {
	var total float64
	for _, u := range r.Units {
		total += u.CostUSD
	}
	return total
}

// Orchestrator drives an OCR provider over a set of sub-documents.
type Orchestrator struct {
	provider providers.OCRProvider
	cfg      Config
	limiter  *providers.RateLimiter
	logger   *slog.Logger
}

// New creates an orchestrator. The provider's request rate bounds dispatch,
// and a sub-unit is retried up to the larger of cfg.Retries and the
// provider's MaxRetries.
func New(provider providers.OCRProvider, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Retries = max(cfg.Retries, provider.MaxRetries(), 0)
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = provider.RetryDelayBase()
	}
	return &Orchestrator{
		provider: provider,
		cfg:      cfg,
		limiter:  providers.NewRateLimiter(provider.RequestsPerSecond()),
		logger:   logger.With("stage", "ocr", "provider", provider.Name()),
	}
}

// Orchestrate sorts refs by their embedded index, OCRs each one and
// concatenates the text in that order as valid UTF-8. Any failure aborts: an unreadable
// sub-unit yields an IOError, a provider failure a CollaboratorError.
func (o *Orchestrator) Orchestrate(ctx context.Context, refs []string) (*Result, error) {
	if len(refs) == 0 {
		return nil, pipeline.NewIOError("ocr", "", fmt.Errorf("no sub-units to process"))
	}
	sorted := split.SortByIndex(refs)

	pool := jobs.NewPool(jobs.PoolConfig{
		Name:        "ocr:" + o.provider.Name(),
		Logger:      o.logger,
		Workers:     o.cfg.Concurrency,
		Limiter:     o.limiter,
		Retries:     o.cfg.Retries,
		RetryDelay:  o.cfg.RetryDelay,
		CallTimeout: o.cfg.CallTimeout,
		StopOnError: true,
	})

	o.logger.Info("ocr started", "sub_units", len(sorted))
	start := time.Now()

	results := jobs.Run(ctx, pool, len(sorted), func(ctx context.Context, index int) (*providers.OCRResult, error) {
		path := sorted[index-1]
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, jobs.Permanent(pipeline.NewIOError("read", path, err))
		}
		res, err := o.provider.ProcessDocument(ctx, content, MimeType(path, content))
		if err != nil {
			return nil, err
		}
		if res == nil || !res.Success {
			return nil, fmt.Errorf("ocr returned no result for %s", filepath.Base(path))
		}
		return res, nil
	})

	if _, failed := jobs.Prefix(results); failed != nil {
		if failed.Err == nil {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			failed.Err = fmt.Errorf("sub-unit %s", failed.State)
		}
		var ioErr *pipeline.IOError
		if errors.As(failed.Err, &ioErr) {
			return nil, ioErr
		}
		o.logger.Error("ocr failed",
			"index", failed.Index,
			"path", sorted[failed.Index-1],
			"units", jobs.Counts(results),
			"error", failed.Err,
		)
		return nil, &pipeline.CollaboratorError{
			Stage:    pipeline.CollaboratorOCR,
			Index:    failed.Index,
			Provider: o.provider.Name(),
			Err:      failed.Err,
		}
	}

	out := &Result{Units: make([]UnitResult, len(results)), Pool: pool.Status()}
	var b strings.Builder
	for i, r := range results {
		b.WriteString(r.Value.Text)
		out.Units[i] = UnitResult{
			Index:    r.Index,
			Path:     sorted[i],
			Chars:    utf8.RuneCountInString(r.Value.Text),
			Pages:    r.Value.Pages,
			CostUSD:  r.Value.CostUSD,
			Attempts: r.Attempts,
			Duration: r.Duration,
		}
	}
	out.Text = strings.ToValidUTF8(b.String(), string(utf8.RuneError))

	o.logger.Info("ocr complete",
		"sub_units", len(results),
		"chars", utf8.RuneCountInString(out.Text),
		"cost_usd", out.CostUSD(),
		"duration", time.Since(start),
	)
	return out, nil
}

// Run orchestrates refs and writes the aggregated text to textPath.
func (o *Orchestrator) Run(ctx context.Context, refs []string, textPath string) (*Result, error) {
	res, err := o.Orchestrate(ctx, refs)
	if err != nil {
		return nil, err
	}
	if err := WriteText(textPath, res.Text); err != nil {
		return nil, err
	}
	return res, nil
}

// MimeType detects a sub-unit's MIME type from its extension, falling back
// to content sniffing.
func MimeType(path string, content []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = t[:i]
		}
		return t
	}
	return http.DetectContentType(content)
}

// WriteText durably writes aggregated text, replacing any previous file.
func WriteText(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return pipeline.NewIOError("write", path, err)
	}
	tmp := path + ".tmp"
	if err := writeSynced(tmp, text); err != nil {
		os.Remove(tmp)
		return pipeline.NewIOError("write", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return pipeline.NewIOError("write", path, err)
	}
	return nil
}

func writeSynced(path, text string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadText loads previously aggregated text. Invalid UTF-8 sequences are
// replaced with U+FFFD so chunk offsets stay exact.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", pipeline.NewIOError("read", path, err)
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError)), nil
}
