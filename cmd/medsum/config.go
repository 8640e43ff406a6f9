package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/medsum/internal/api"
	"github.com/jackzampolin/medsum/internal/config"
	"github.com/jackzampolin/medsum/internal/home"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage medsum configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default config file",
	Long: `Write the default configuration to {home}/config.yaml, or to path when
given. Existing files are kept unless --force is set.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		path := h.ConfigPath()
		if len(args) == 1 {
			path = args[0]
		} else if err := h.EnsureExists(); err != nil {
			return err
		}

		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and MEDSUM_*
environment overrides are merged. Credential references are shown
unresolved.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := setup(cmd)
		if err != nil {
			return err
		}
		cfg := s.Config.Get()
		if err := cfg.Validate(); err != nil {
			s.Logger.Warn("configuration is invalid", "error", err)
		}
		return api.Output(cfg)
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the documented settings with their effective values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := setup(cmd)
		if err != nil {
			return err
		}
		return api.Output(s.Config.Entries())
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the effective value of one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := setup(cmd)
		if err != nil {
			return err
		}
		v, err := s.Config.Value(args[0])
		if err != nil {
			return err
		}
		entry := config.Entry{Key: args[0], Value: v}
		if def, err := config.GetDefault(args[0]); err == nil {
			entry.Description = def.Description
		}
		return api.Output(entry)
	},
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the OCR and LLM providers usable with the current config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := setup(cmd)
		if err != nil {
			return err
		}
		return api.Output(providerNames(s.Registry))
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")

	configCmd.AddCommand(configInitCmd, configShowCmd, configKeysCmd, configGetCmd)
	rootCmd.AddCommand(configCmd, providersCmd)
}
