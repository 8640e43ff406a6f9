package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/medsum/internal/api"
	"github.com/jackzampolin/medsum/internal/llmcall"
)

var (
	callsWorkDir string
	callsFilter  llmcall.QueryFilter
	callsFailed  bool
)

var callsCmd = &cobra.Command{
	Use:   "calls",
	Short: "List logged extraction calls",
	Long: `List the extraction calls recorded in <work-dir>/llm_calls.jsonl, newest
first. Each run appends to the log, so filter by --run-id to see one run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		calls, err := loadCalls(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("failed") {
			success := !callsFailed
			callsFilter.Success = &success
		}
		return api.Output(llmcall.Query(calls, callsFilter))
	},
}

var callsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Total tokens, cost and failures across logged calls",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		calls, err := loadCalls(cmd)
		if err != nil {
			return err
		}
		return api.Output(llmcall.Summarize(llmcall.Query(calls, llmcall.QueryFilter{RunID: callsFilter.RunID})))
	},
}

func loadCalls(cmd *cobra.Command) ([]llmcall.Call, error) {
	dir := callsWorkDir
	if dir == "" {
		s, err := setup(cmd)
		if err != nil {
			return nil, err
		}
		dir, _ = (&pipelineFlags{}).paths(s)
	}
	return llmcall.Load(filepath.Join(dir, llmcall.FileName))
}

func init() {
	callsCmd.PersistentFlags().StringVar(&callsWorkDir, "work-dir", "", "work directory holding llm_calls.jsonl (default: paths.work_dir)")
	callsCmd.PersistentFlags().StringVar(&callsFilter.RunID, "run-id", "", "only calls from this run")
	callsCmd.Flags().StringVar(&callsFilter.Model, "model", "", "only calls to this model")
	callsCmd.Flags().BoolVar(&callsFailed, "failed", false, "only failed calls (--failed=false for successful ones)")
	callsCmd.Flags().IntVar(&callsFilter.Limit, "limit", 50, "maximum calls to list (0 for all)")
	callsCmd.Flags().IntVar(&callsFilter.Offset, "offset", 0, "calls to skip")

	callsCmd.AddCommand(callsSummaryCmd)
	rootCmd.AddCommand(callsCmd)
}
