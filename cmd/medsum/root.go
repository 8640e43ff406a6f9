package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/medsum/internal/api"
	"github.com/jackzampolin/medsum/internal/config"
	"github.com/jackzampolin/medsum/internal/home"
	"github.com/jackzampolin/medsum/internal/prompts"
	"github.com/jackzampolin/medsum/internal/prompts/medical"
	"github.com/jackzampolin/medsum/internal/providers"
	"github.com/jackzampolin/medsum/internal/svcctx"
	"github.com/jackzampolin/medsum/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
	logFormat    string
)

var rootCmd = &cobra.Command{
	Use:   "medsum",
	Short: "Summarize scanned medical-record PDFs into a date-sorted table",
	Long: `medsum turns a scanned multi-page medical-record PDF into a table of
dated clinical events.

The pipeline:
  - splits the PDF into 15-page sub-documents
  - OCRs each sub-document and joins the text in page order
  - cuts the text into overlapping chunks
  - extracts one structured record per chunk with a language model
  - sorts the records newest first and writes a CSV`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.medsum/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "medsum home directory (default: ~/.medsum)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn or error",
	)
	rootCmd.PersistentFlags().StringVar(
		&logFormat, "log-format", "text", "log format: text or json",
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if _, err := api.ParseOutputFormat(outputFormat); err != nil {
			return err
		}
		api.SetOutputFormat(outputFormat)
		return nil
	}

	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the stderr logger selected by --log-level and --log-format.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("invalid --log-format %q (want text or json)", format)
}

// setup loads config and builds the shared services, attaching them to the
// command context. Later calls return the attached services.
func setup(cmd *cobra.Command) (*svcctx.Services, error) {
	if s := svcctx.ServicesFrom(cmd.Context()); s != nil {
		return s, nil
	}

	logger, err := newLogger(os.Stderr, logLevel, logFormat)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}

	file := cfgFile
	if file == "" && h.ConfigExists() {
		file = h.ConfigPath()
	}
	mgr, err := config.NewManager(file)
	if err != nil {
		return nil, err
	}
	if path := mgr.ConfigFile(); path != "" {
		logger.Debug("loaded config", "path", path)
	}

	registry := providers.NewRegistry()
	registry.SetLogger(logger)
	registry.Reload(mgr.Get().ToProviderRegistryConfig())
	mgr.OnChange(func(c *config.Config) {
		registry.Reload(c.ToProviderRegistryConfig())
		logger.Info("provider registry reloaded from config")
	})

	promptsDir := mgr.Get().Paths.PromptsDir
	if promptsDir == "" {
		promptsDir = h.PromptsDir()
	}
	resolver := prompts.NewResolver(promptsDir, logger)
	medical.RegisterPrompts(resolver)

	s := &svcctx.Services{
		Config:   mgr,
		Registry: registry,
		Prompts:  resolver,
		Logger:   logger,
		Home:     h,
	}
	cmd.SetContext(svcctx.WithServices(cmd.Context(), s))
	return s, nil
}
