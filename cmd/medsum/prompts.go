package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/medsum/internal/api"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Inspect extraction prompts",
	Long: `Inspect the prompts sent to the language model. A <key>.tmpl file in the
prompts directory (paths.prompts_dir, default {home}/prompts) replaces the
embedded prompt with the same key.`,
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List prompt keys, hashes and override status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := setup(cmd)
		if err != nil {
			return err
		}
		resolved, err := s.Prompts.ResolveAll()
		if err != nil {
			return err
		}

		type item struct {
			Key        string   `json:"key" yaml:"key"`
			Hash       string   `json:"hash" yaml:"hash"`
			Variables  []string `json:"variables,omitempty" yaml:"variables,omitempty"`
			IsOverride bool     `json:"is_override" yaml:"is_override"`
			Source     string   `json:"source" yaml:"source"`
		}
		items := make([]item, len(resolved))
		for i, p := range resolved {
			items[i] = item{p.Key, p.Hash, p.Variables, p.IsOverride, p.Source}
		}
		return api.Output(items)
	},
}

var promptsShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Print the effective text of a prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := setup(cmd)
		if err != nil {
			return err
		}
		p, err := s.Prompts.Resolve(args[0])
		if err != nil {
			return fmt.Errorf("unknown prompt %q: %w", args[0], err)
		}
		return api.Output(p)
	},
}

func init() {
	promptsCmd.AddCommand(promptsListCmd, promptsShowCmd)
	rootCmd.AddCommand(promptsCmd)
}
