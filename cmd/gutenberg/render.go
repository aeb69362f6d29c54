package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"typeset-hq/gutenberg/pkg/cli"
	"typeset-hq/gutenberg/pkg/config"
	"typeset-hq/gutenberg/pkg/engines"
)

var renderFlags struct {
	output          string
	outDir          string
	format          string
	orientation     string
	margin          float64
	scale           float64
	printBackground bool
	toc             bool
	tocDepth        int
	tocPageNumbers  bool
	tocTitle        string
	headerTemplate  string
	footerTemplate  string
	engine          string
	outputFormat    string
}

var renderCmd = &cobra.Command{
	Use:   "render <input.html> [input2.html ...]",
	Short: "Render HTML documents to PDF",
	Long: `Render one or more HTML documents to PDF through the configured
rendering backends.

A single input renders to the path given with --output (default: the input
name with a .pdf extension). Multiple inputs render into --out-dir.

Examples:
  # Render one document
  gutenberg render report.html -o report.pdf

  # Render with a page-numbered table of contents
  gutenberg render report.html -o report.pdf --toc --toc-page-numbers

  # Render a batch into a directory
  gutenberg render docs/*.html --out-dir build/

  # Force a specific engine
  gutenberg render report.html -o report.pdf --engine chromium`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVarP(&renderFlags.output, "output", "o", "", "output PDF path (single input)")
	renderCmd.Flags().StringVar(&renderFlags.outDir, "out-dir", "", "output directory (batch input)")
	renderCmd.Flags().StringVar(&renderFlags.format, "format", "A4", "page format (A4, A3, Letter, Legal)")
	renderCmd.Flags().StringVar(&renderFlags.orientation, "orientation", "portrait", "page orientation (portrait, landscape)")
	renderCmd.Flags().Float64Var(&renderFlags.margin, "margin", 0.5, "page margin in inches")
	renderCmd.Flags().Float64Var(&renderFlags.scale, "scale", 1.0, "rendering scale factor")
	renderCmd.Flags().BoolVar(&renderFlags.printBackground, "print-background", true, "render CSS backgrounds")
	renderCmd.Flags().BoolVar(&renderFlags.toc, "toc", false, "generate a table of contents")
	renderCmd.Flags().IntVar(&renderFlags.tocDepth, "toc-depth", 3, "deepest heading level in the TOC")
	renderCmd.Flags().BoolVar(&renderFlags.tocPageNumbers, "toc-page-numbers", false, "include page numbers in the TOC (two-pass rendering)")
	renderCmd.Flags().StringVar(&renderFlags.tocTitle, "toc-title", "", "TOC heading text")
	renderCmd.Flags().StringVar(&renderFlags.headerTemplate, "header", "", "header template HTML fragment")
	renderCmd.Flags().StringVar(&renderFlags.footerTemplate, "footer", "", "footer template HTML fragment")
	renderCmd.Flags().StringVar(&renderFlags.engine, "engine", "", "preferred engine for this render")
	renderCmd.Flags().StringVar(&renderFlags.outputFormat, "output-format", "text", "result output format (text, json)")
}

func runRender(cmd *cobra.Command, args []string) error {
	setupLogging()

	cfg, err := loadConfig()
	if err != nil {
		return cli.NewConfigError("", err.Error())
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("", err.Error())
	}

	if len(args) > 1 && renderFlags.outDir == "" {
		return fmt.Errorf("batch rendering requires --out-dir")
	}
	if renderFlags.outDir != "" {
		if err := os.MkdirAll(renderFlags.outDir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	ctx := cli.SetupSignalHandler()

	stack, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	var progress cli.ProgressReporter
	if len(args) > 1 {
		progress = cli.NewProgressReporter(nil)
		progress.Start(int64(len(args)))
	}

	formatter := cli.NewFormatter(cli.OutputFormat(renderFlags.outputFormat))
	var failures int

	for i, input := range args {
		result, err := renderOne(ctx, stack, input)
		if err != nil {
			return err
		}

		if !result.Success {
			failures++
			renderErr := cli.NewRenderError(input, result.Error)
			if progress != nil {
				progress.Error(renderErr)
			} else {
				fmt.Fprintln(os.Stderr, renderErr)
			}
		} else if progress == nil {
			if err := formatter.FormatTo(os.Stdout, newRenderSummary(input, result)); err != nil {
				return err
			}
		}

		if progress != nil {
			progress.Update(int64(i + 1))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if progress != nil {
		progress.Finish()
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d documents failed", failures, len(args))
	}
	return nil
}

// renderOne reads one input document and renders it through the pipeline.
func renderOne(ctx context.Context, s *stack, input string) (*engines.GenerationResult, error) {
	content, err := os.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", input, err)
	}

	req := &engines.GenerationRequest{
		HTMLContent: string(content),
		OutputPath:  outputPathFor(input),
		Page: engines.PageOptions{
			Format:          engines.PageFormat(renderFlags.format),
			Orientation:     engines.Orientation(renderFlags.orientation),
			Margins:         engines.UniformMargins(renderFlags.margin),
			Scale:           renderFlags.scale,
			PrintBackground: renderFlags.printBackground,
		},
		TOC: engines.TOCOptions{
			Enabled:            renderFlags.toc,
			MaxDepth:           renderFlags.tocDepth,
			IncludePageNumbers: renderFlags.tocPageNumbers,
			Title:              renderFlags.tocTitle,
		},
		HeaderTemplate:  renderFlags.headerTemplate,
		FooterTemplate:  renderFlags.footerTemplate,
		PreferredEngine: renderFlags.engine,
	}

	return s.renderer.Render(ctx, req), nil
}

// renderSummary is the text/JSON view of one successful render.
type renderSummary struct {
	Input      string `json:"input"`
	Output     string `json:"output"`
	Pages      int    `json:"pages"`
	Engine     string `json:"engine"`
	Duration   string `json:"duration"`
	Reduced    bool   `json:"reduced_accuracy,omitempty"`
	TotalTime  string `json:"total_time,omitempty"`
	PreRender  string `json:"pre_render_time,omitempty"`
	FinalPass  string `json:"final_render_time,omitempty"`
	OutputSize int64  `json:"output_size"`
}

// newRenderSummary builds the summary from a successful result.
func newRenderSummary(input string, res *engines.GenerationResult) renderSummary {
	s := renderSummary{
		Input:   input,
		Output:  res.OutputPath,
		Reduced: res.ReducedAccuracy,
	}
	if res.Metadata != nil {
		s.Pages = res.Metadata.Pages
		s.Engine = res.Metadata.EngineUsed
		s.Duration = res.Metadata.GenerationTime.String()
		s.OutputSize = res.Metadata.FileSize
		if perf := res.Metadata.Performance; perf != nil {
			s.TotalTime = perf.TotalTime.String()
			s.PreRender = perf.PreRenderTime.String()
			s.FinalPass = perf.FinalRenderTime.String()
		}
	}
	return s
}

func (s renderSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s -> %s (%d pages, %s, engine %s, %s)",
		s.Input, s.Output, s.Pages, byteSize(s.OutputSize), s.Engine, s.Duration)
	if s.Reduced {
		b.WriteString(" [reduced accuracy]")
	}
	return b.String()
}

// byteSize renders a byte count human-readably.
func byteSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// outputPathFor resolves the output path for one input document.
func outputPathFor(input string) string {
	if renderFlags.outDir != "" {
		base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		return filepath.Join(renderFlags.outDir, base+".pdf")
	}
	if renderFlags.output != "" {
		return renderFlags.output
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".pdf"
}

// setupLogging configures the process logger.
func setupLogging() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
