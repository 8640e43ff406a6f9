package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/medsum/internal/pipeline"
	"github.com/jackzampolin/medsum/internal/pipeline/stages"
)

var (
	splitFlags   pipelineFlags
	ocrFlags     pipelineFlags
	extractFlags pipelineFlags
	extractText  string
)

var splitCmd = &cobra.Command{
	Use:   "split <pdf>",
	Short: "Split a case PDF into numbered sub-documents",
	Long: `Split a case PDF into split_1.pdf, split_2.pdf, ... in the work directory.
Any previous contents of the work directory are removed first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd, &splitFlags, args[0], "", stages.Split)
	},
}

var ocrCmd = &cobra.Command{
	Use:   "ocr <pdf>",
	Short: "Split and OCR a case PDF into pdf_content.txt",
	Long: `Split a case PDF and OCR every sub-document, writing the joined text to
pdf_content.txt in the work directory. Run "medsum extract" afterwards to
build the table without paying for OCR again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd, &ocrFlags, args[0], "", stages.Split, stages.OCR)
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Build the table from previously OCR'd text",
	Long: `Chunk the OCR text, extract one record per chunk, sort by date and write
the table. Reads pdf_content.txt from the work directory unless --text is
given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd, &extractFlags, "", extractText,
			stages.Chunk, stages.Extract, stages.Normalize, stages.Write)
	},
}

func runStages(cmd *cobra.Command, flags *pipelineFlags, source, textPath string, names ...string) error {
	runner, err := flags.newRunner(cmd, names...)
	if err != nil {
		return err
	}
	s, _ := setup(cmd)
	workDir, out := flags.paths(s)

	st := &pipeline.State{
		SourcePath: source,
		WorkDir:    workDir,
		OutputPath: out,
		TextPath:   textPath,
	}
	return report(st, runner.Run(cmd.Context(), st, names...))
}

func init() {
	splitFlags.register(splitCmd, true)
	ocrFlags.register(ocrCmd, true)
	extractFlags.register(extractCmd, true)
	extractCmd.Flags().StringVar(&extractText, "text", "", "OCR text file (default: <work-dir>/pdf_content.txt)")

	rootCmd.AddCommand(splitCmd, ocrCmd, extractCmd)
}
