package engines

import "context"

// Engine is the core interface that all PDF rendering backends must implement.
// It provides a unified abstraction for turning HTML content into a paginated
// PDF artifact, regardless of the underlying renderer (headless Chromium,
// a remote render service, etc.).
//
// All methods accept a context.Context for cancellation and timeout control.
// Implementations must respect context cancellation and return promptly when
// the context is cancelled.
//
// An Engine is owned exclusively by the manager for its lifetime: the manager
// calls Initialize once before the first Generate, and Dispose exactly once
// during cleanup. Generate and Probe may be called concurrently up to the
// configured admission limits.
type Engine interface {
	// Name returns the engine identifier (e.g., "chromium", "remote").
	// Names are unique within a manager.
	Name() string

	// Priority returns the declared priority used as a secondary ordering
	// hint by selection strategies. Lower values sort earlier.
	Priority() int

	// Capabilities reports the static feature set of this engine.
	Capabilities() Capabilities

	// Initialize prepares the engine for rendering (launches the browser,
	// verifies connectivity, etc.). It is called once by the manager before
	// the engine receives any Generate or Probe calls.
	Initialize(ctx context.Context) error

	// Generate renders the request's HTML content to a PDF.
	//
	// On success it returns the raw render output including the page count
	// and, if requested and supported, the anchor-to-page map. Errors are
	// returned as-is; classification (timeout vs. engine failure) and
	// conversion into caller-facing results is the manager's job.
	Generate(ctx context.Context, req *GenerationRequest) (*RenderOutput, error)

	// Probe performs a lightweight health check. It returns nil if the
	// engine is able to accept work, or an error describing the problem.
	// Probes must be cheap; they run on every health monitor tick.
	Probe(ctx context.Context) error

	// Dispose releases all resources held by the engine (browser processes,
	// connection pools). After Dispose returns the engine must not be used.
	Dispose() error
}

// Capabilities describes the static feature set of an engine.
// The manager consults these when ordering candidates: requests that
// collect anchor pages are routed to anchor-capable engines first.
type Capabilities struct {
	// SupportsAnchorProbing indicates the engine can report the final page
	// number of document anchors, which the two-stage renderer needs for
	// accurate TOC page numbers.
	SupportsAnchorProbing bool

	// SupportsHeaderFooter indicates the engine renders native header and
	// footer templates with page number placeholders.
	SupportsHeaderFooter bool

	// SupportsScaling indicates the engine honors the Scale page option.
	SupportsScaling bool
}
