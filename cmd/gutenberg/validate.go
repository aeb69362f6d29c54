package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"typeset-hq/gutenberg/pkg/cli"
	"typeset-hq/gutenberg/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate the configuration file without starting any
engines.

Examples:
  gutenberg validate --config /etc/gutenberg/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		return cli.NewConfigError("", "validate requires --config")
	}

	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", err.Error())
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("", err.Error())
	}

	fmt.Printf("%s: configuration valid (%d engines, strategy %s)\n",
		cfgFile, len(cfg.Engines), cfg.Selection.Strategy)
	return nil
}
