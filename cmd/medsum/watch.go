package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/medsum/internal/api"
	"github.com/jackzampolin/medsum/internal/ingest"
	"github.com/jackzampolin/medsum/internal/pipeline"
	"github.com/jackzampolin/medsum/internal/pipeline/stages"
)

var (
	watchFlags    pipelineFlags
	watchOutDir   string
	watchExisting bool
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Summarize every case PDF dropped into an inbox directory",
	Long: `Watch a directory and run the pipeline on each new PDF, one at a time.
PDFs arriving together are processed in numeric suffix order.

Each case gets its own work directory under {home}/runs/<name> and its table
is written to <out-dir>/<name>_summary.csv. Config file edits are picked up
for the next case.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := setup(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		dir := s.Config.Get().Paths.Inbox
		if len(args) == 1 {
			dir = args[0]
		}
		if dir == "" {
			dir = s.Home.InboxDir()
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		if err := s.Home.EnsureExists(); err != nil {
			return err
		}
		s.Config.WatchConfig()

		handle := func(ctx context.Context, path string) error {
			runner, err := watchFlags.newRunner(cmd)
			if err != nil {
				return err
			}
			out := s.Home.TablePath(path)
			if watchOutDir != "" {
				out = filepath.Join(watchOutDir, filepath.Base(out))
			}
			st := &pipeline.State{
				SourcePath: path,
				WorkDir:    s.Home.RunDir(path),
				OutputPath: out,
			}
			runErr := runner.Run(ctx, st, stages.All...)
			if err := api.Output(api.NewRunSummary(st, runErr)); err != nil {
				s.Logger.Warn("failed to print summary", "error", err)
			}
			return runErr
		}

		w, err := ingest.NewWatcher(ingest.WatchConfig{
			Dir:         dir,
			InitialScan: watchExisting,
			Debounce:    watchDebounce,
			Logger:      s.Logger,
		}, handle)
		if err != nil {
			return err
		}
		return w.Run(ctx)
	},
}

func init() {
	watchFlags.register(watchCmd, false)
	watchCmd.Flags().StringVar(&watchOutDir, "out-dir", "", "directory for result tables (default: {home}/data)")
	watchCmd.Flags().BoolVar(&watchExisting, "existing", false, "also process PDFs already in the inbox")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", ingest.DefaultDebounce, "quiet period before new files are processed")

	rootCmd.AddCommand(watchCmd)
}
