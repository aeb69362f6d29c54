package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"typeset-hq/gutenberg/pkg/cli"
	"typeset-hq/gutenberg/pkg/config"
	"typeset-hq/gutenberg/pkg/manager"
)

var statusFlags struct {
	outputFormat string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine health and usage",
	Long: `Probe every configured engine once and report its health state,
recent outcomes, and usage counters.

Examples:
  gutenberg status
  gutenberg status --config /etc/gutenberg/config.yaml --output-format json`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusFlags.outputFormat, "output-format", "text", "output format (text, json)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	setupLogging()

	cfg, err := loadConfig()
	if err != nil {
		return cli.NewConfigError("", err.Error())
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("", err.Error())
	}

	ctx := cli.SetupSignalHandler()

	stack, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	if err := stack.manager.ForceHealthCheck(ctx, ""); err != nil {
		return err
	}

	report := statusReport{
		Engines: stack.manager.GetEngineStatus(),
		Metrics: stack.manager.GetEngineMetrics(),
		Healthy: stack.manager.GetHealthyEngines(),
	}

	formatter := cli.NewFormatter(cli.OutputFormat(statusFlags.outputFormat))
	return formatter.FormatTo(os.Stdout, report)
}

// statusReport is the combined diagnostic view printed by the status
// command.
type statusReport struct {
	Engines map[string]manager.EngineStatus    `json:"engines"`
	Metrics map[string]manager.MetricsSnapshot `json:"metrics"`
	Healthy []string                           `json:"healthy"`
}

func (r statusReport) String() string {
	names := make([]string, 0, len(r.Engines))
	for name := range r.Engines {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		st := r.Engines[name]
		fmt.Fprintf(&b, "%-12s %-10s in-flight=%d", name, st.Status, st.InFlight)
		if m, ok := r.Metrics[name]; ok && m.TotalRequests > 0 {
			fmt.Fprintf(&b, " requests=%d failures=%d timeouts=%d avg=%s",
				m.TotalRequests, m.TotalFailures, m.TotalTimeouts, m.AvgLatency)
		}
		if st.LastError != "" {
			fmt.Fprintf(&b, " last-error=%q", st.LastError)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "healthy: %s", strings.Join(r.Healthy, ", "))
	return b.String()
}
