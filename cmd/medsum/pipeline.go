package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/medsum/internal/api"
	"github.com/jackzampolin/medsum/internal/pipeline"
	"github.com/jackzampolin/medsum/internal/pipeline/stages"
	"github.com/jackzampolin/medsum/internal/providers"
	"github.com/jackzampolin/medsum/internal/svcctx"
)

// pipelineFlags are the per-run overrides shared by run, ocr, extract and
// watch.
type pipelineFlags struct {
	workDir string
	out     string

	ocrProvider string
	llmProvider string
	model       string

	pagesPerSplit int
	chunkSize     int
	chunkOverlap  int
	xlsx          bool
}

func (f *pipelineFlags) register(cmd *cobra.Command, paths bool) {
	fs := cmd.Flags()
	if paths {
		fs.StringVar(&f.workDir, "work-dir", "", "directory for split files and OCR text (default: paths.work_dir)")
		fs.StringVar(&f.out, "out", "", "CSV output path (default: paths.output)")
	}
	fs.StringVar(&f.ocrProvider, "ocr-provider", "", "OCR provider name (default: defaults.ocr_provider)")
	fs.StringVar(&f.llmProvider, "llm-provider", "", "LLM provider name (default: defaults.llm_provider)")
	fs.StringVar(&f.model, "model", "", "extraction model (default: the provider's model)")
	fs.IntVar(&f.pagesPerSplit, "pages-per-split", 0, "pages per OCR sub-document")
	fs.IntVar(&f.chunkSize, "chunk-size", 0, "characters per extraction chunk")
	fs.IntVar(&f.chunkOverlap, "chunk-overlap", 0, "characters shared by consecutive chunks")
	fs.BoolVar(&f.xlsx, "xlsx", false, "also write an .xlsx copy of the table")
}

// settings merges the config file with any flags the user set.
func (f *pipelineFlags) settings(cmd *cobra.Command, s *svcctx.Services) (stages.Settings, error) {
	cfg := *s.Config.Get()
	fs := cmd.Flags()
	if fs.Changed("pages-per-split") {
		cfg.Pipeline.PagesPerSplit = f.pagesPerSplit
	}
	if fs.Changed("chunk-size") {
		cfg.Pipeline.ChunkSize = f.chunkSize
	}
	if fs.Changed("chunk-overlap") {
		cfg.Pipeline.ChunkOverlap = f.chunkOverlap
	}
	if fs.Changed("xlsx") {
		cfg.Pipeline.WriteXLSX = f.xlsx
	}
	if f.ocrProvider != "" {
		cfg.Defaults.OCRProvider = f.ocrProvider
	}
	if f.llmProvider != "" {
		cfg.Defaults.LLMProvider = f.llmProvider
	}

	settings, err := cfg.Settings()
	if err != nil {
		return stages.Settings{}, fmt.Errorf("invalid configuration: %w", err)
	}
	settings.Extract.Model = f.model
	return settings, nil
}

// paths resolves the work directory and CSV path: flags, then config, then
// the defaults relative to the current directory.
func (f *pipelineFlags) paths(s *svcctx.Services) (workDir, out string) {
	cfg := s.Config.Get()
	workDir, out = f.workDir, f.out
	if workDir == "" {
		workDir = cfg.Paths.WorkDir
	}
	if workDir == "" {
		workDir = "temp"
	}
	if out == "" {
		out = cfg.Paths.Output
	}
	if out == "" {
		out = filepath.Join("data", "medical_docs_summary.csv")
	}
	return workDir, out
}

// collaborators lists which providers a set of stages needs.
type collaborators struct {
	ocr bool
	llm bool
}

func needs(names ...string) collaborators {
	var c collaborators
	if len(names) == 0 {
		return collaborators{ocr: true, llm: true}
	}
	for _, n := range names {
		switch n {
		case stages.OCR:
			c.ocr = true
		case stages.Extract:
			c.llm = true
		}
	}
	return c
}

// newRunner builds a pipeline runner for the given stages.
func (f *pipelineFlags) newRunner(cmd *cobra.Command, names ...string) (*pipeline.Runner, error) {
	s, err := setup(cmd)
	if err != nil {
		return nil, err
	}
	settings, err := f.settings(cmd, s)
	if err != nil {
		return nil, err
	}

	cfg := s.Config.Get()
	deps := stages.Deps{
		Prompts:  s.Prompts,
		Settings: settings,
		Logger:   s.Logger,
	}

	want := needs(names...)
	if want.ocr {
		name := firstNonEmpty(f.ocrProvider, cfg.Defaults.OCRProvider)
		if deps.OCR, err = s.Registry.GetOCR(name); err != nil {
			return nil, unavailable("ocr_providers", name, s.Registry.ListOCR())
		}
	}
	if want.llm {
		name := firstNonEmpty(f.llmProvider, cfg.Defaults.LLMProvider)
		if deps.LLM, err = s.Registry.GetLLM(name); err != nil {
			return nil, unavailable("llm_providers", name, s.Registry.ListLLM())
		}
	}

	registry, err := stages.NewRegistry(deps)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(registry, s.Logger), nil
}

func unavailable(section, name string, available []string) error {
	return fmt.Errorf("provider %q is not available (usable: %v); check %s in the config and its credentials",
		name, available, section)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// report prints the run summary and passes err through so the command exits
// non-zero on failure.
func report(st *pipeline.State, err error) error {
	if outErr := api.Output(api.NewRunSummary(st, err)); outErr != nil {
		return outErr
	}
	return err
}

// providerNames lists the usable providers by kind.
func providerNames(r *providers.Registry) map[string][]string {
	return map[string][]string{
		"ocr": r.ListOCR(),
		"llm": r.ListLLM(),
	}
}
