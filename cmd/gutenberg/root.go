package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "gutenberg",
	Short: "Gutenberg - HTML to PDF rendering with engine failover",
	Long: `Gutenberg renders HTML documents to PDF through a pool of rendering
backends with health monitoring, automatic failover, and page-accurate
table-of-contents generation.

Rendering backends:
  - chromium: headless Chromium driven over the DevTools protocol
  - remote:   an HTTP render service

Requests are routed by a selection strategy (health-first, primary-first,
or round-robin) and retried across backends until one succeeds.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: built-in single chromium engine)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
