package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/medsum/internal/pipeline"
	"github.com/jackzampolin/medsum/internal/pipeline/stages"
)

var (
	runFlags   pipelineFlags
	runCasePDF string
)

var runCmd = &cobra.Command{
	Use:   "run [pdf]",
	Short: "Run the whole pipeline on a case PDF",
	Long: `Split, OCR, chunk, extract, sort and write the summary table for one
case PDF.

A failed OCR call aborts the run. A failed extraction call stops
extraction but keeps the records of the chunks before it; the table is
still written and the run is reported as partial.

Examples:
  medsum run case.pdf
  medsum run --path-to-case-pdf case.pdf --out data/smith.csv
  medsum run case.pdf --llm-provider openrouter --xlsx -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := runCasePDF
		if len(args) == 1 {
			source = args[0]
		}
		if source == "" {
			return errors.New("a case PDF is required (argument or --path-to-case-pdf)")
		}

		runner, err := runFlags.newRunner(cmd)
		if err != nil {
			return err
		}
		s, _ := setup(cmd)
		workDir, out := runFlags.paths(s)

		st := &pipeline.State{SourcePath: source, WorkDir: workDir, OutputPath: out}
		return report(st, runner.Run(cmd.Context(), st, stages.All...))
	},
}

func init() {
	runFlags.register(runCmd, true)
	runCmd.Flags().StringVar(&runCasePDF, "path-to-case-pdf", "", "case PDF to summarize")
	rootCmd.AddCommand(runCmd)
}
