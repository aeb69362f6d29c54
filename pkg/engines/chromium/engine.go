// Package chromium implements the Engine interface on top of a headless
// Chromium browser driven through go-rod.
package chromium

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"typeset-hq/gutenberg/pkg/engines"
)

// DefaultName is the engine name used when the config leaves it empty.
const DefaultName = "chromium"

// Config configures a chromium engine instance.
type Config struct {
	// Name overrides the engine name. Default: "chromium".
	Name string

	// Priority is the declared selection priority. Lower sorts earlier.
	Priority int

	// BrowserBin points at a pre-installed browser binary. When empty,
	// rod downloads a managed Chromium on first launch.
	BrowserBin string

	// NoSandbox disables the Chromium sandbox. Required in most container
	// environments.
	NoSandbox bool

	// PageLoadTimeout bounds the initial document load. Default: 30s.
	PageLoadTimeout time.Duration
}

// Engine renders HTML to PDF in a headless Chromium.
//
// One browser process is shared by all Generate calls; each call gets its own
// tab. The manager's resource gate bounds how many tabs are open at once.
type Engine struct {
	config Config
	logger *slog.Logger

	mu       sync.Mutex
	browser  *rod.Browser
	launched *launcher.Launcher
}

var _ engines.Engine = (*Engine)(nil)

// New creates a chromium engine. The browser is launched by Initialize,
// not here.
func New(cfg Config) *Engine {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.PageLoadTimeout <= 0 {
		cfg.PageLoadTimeout = 30 * time.Second
	}
	return &Engine{
		config: cfg,
		logger: slog.Default().With("component", "engine.chromium", "engine", cfg.Name),
	}
}

// Name implements Engine.
func (e *Engine) Name() string { return e.config.Name }

// Priority implements Engine.
func (e *Engine) Priority() int { return e.config.Priority }

// Capabilities implements Engine. Chromium supports the full feature set.
func (e *Engine) Capabilities() engines.Capabilities {
	return engines.Capabilities{
		SupportsAnchorProbing: true,
		SupportsHeaderFooter:  true,
		SupportsScaling:       true,
	}
}

// Initialize launches the browser and connects to it.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.browser != nil {
		return nil
	}

	l := launcher.New()
	if e.config.BrowserBin != "" {
		l = l.Bin(e.config.BrowserBin)
	}
	if e.config.NoSandbox {
		l = l.NoSandbox(true)
	}

	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("%w: %v", engines.ErrBrowserConnect, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return fmt.Errorf("%w: %v", engines.ErrBrowserConnect, err)
	}

	e.browser = browser
	e.launched = l

	e.logger.Info("browser launched", "bin", e.config.BrowserBin, "no_sandbox", e.config.NoSandbox)
	return nil
}

// Generate implements Engine. It writes the HTML to a temp file, opens it in
// a fresh tab, optionally probes anchor positions, and prints to PDF.
func (e *Engine) Generate(ctx context.Context, req *engines.GenerationRequest) (*engines.RenderOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	browser := e.browser
	e.mu.Unlock()
	if browser == nil {
		return nil, engines.ErrNotInitialized
	}

	tmpPath, cleanup, err := writeTempHTML(req.HTMLContent)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "file://" + tmpPath})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engines.ErrPageLoad, err)
	}
	defer page.Close()

	timeout := e.config.PageLoadTimeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, context.DeadlineExceeded
		}
		if remaining < timeout {
			timeout = remaining
		}
	}
	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		return nil, fmt.Errorf("%w: %v", engines.ErrPageLoad, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &engines.RenderOutput{}

	if req.CollectAnchors {
		anchors, err := e.probeAnchors(page, req.Page)
		if err != nil {
			// Anchor probing is best effort; the render itself proceeds.
			e.logger.Warn("anchor probing failed", "request_id", req.RequestID, "error", err)
		} else {
			out.AnchorPages = anchors
		}
	}

	reader, err := page.PDF(buildPrintOptions(req))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engines.ErrPDFGeneration, err)
	}
	pdf, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading PDF stream: %v", engines.ErrPDFGeneration, err)
	}

	out.PDF = pdf
	out.Pages = countPages(pdf)
	return out, nil
}

// Probe implements Engine with a CDP version round-trip, which verifies the
// browser process is alive without opening a tab.
func (e *Engine) Probe(ctx context.Context) error {
	e.mu.Lock()
	browser := e.browser
	e.mu.Unlock()
	if browser == nil {
		return engines.ErrNotInitialized
	}

	if _, err := browser.Context(ctx).Version(); err != nil {
		return fmt.Errorf("%w: %v", engines.ErrBrowserConnect, err)
	}
	return nil
}

// Dispose implements Engine. It closes the browser and reaps the launched
// process.
func (e *Engine) Dispose() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.browser == nil {
		return nil
	}

	err := e.browser.Close()
	if e.launched != nil {
		e.launched.Cleanup()
	}
	e.browser = nil
	e.launched = nil

	e.logger.Info("browser closed")
	return err
}

// writeTempHTML writes content to a temp .html file and returns its path
// with a cleanup func.
func writeTempHTML(content string) (string, func(), error) {
	f, err := os.CreateTemp("", "gutenberg-*.html")
	if err != nil {
		return "", nil, fmt.Errorf("creating temp document: %w", err)
	}
	path := f.Name()
	cleanup := func() { os.Remove(path) }

	if _, err := f.WriteString(content); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("writing temp document: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("writing temp document: %w", err)
	}
	return path, cleanup, nil
}
