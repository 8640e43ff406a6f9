package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/medsum/internal/api"
	"github.com/jackzampolin/medsum/internal/table"
)

var tableLimit int

var tableCmd = &cobra.Command{
	Use:   "table [csv]",
	Short: "Print a written result table",
	Long: `Print the rows of a result table, newest first as written. Reads
paths.output unless a CSV path is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		} else {
			s, err := setup(cmd)
			if err != nil {
				return err
			}
			_, path = (&pipelineFlags{}).paths(s)
		}
		rows, err := table.ReadCSV(path)
		if err != nil {
			return err
		}
		if tableLimit > 0 && len(rows) > tableLimit {
			rows = rows[:tableLimit]
		}
		return api.Output(rows)
	},
}

func init() {
	tableCmd.Flags().IntVar(&tableLimit, "limit", 0, "maximum rows to print (0 for all)")
	rootCmd.AddCommand(tableCmd)
}
