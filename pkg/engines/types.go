package engines

import "time"

// PageFormat identifies a standard paper size.
type PageFormat string

// Supported paper formats. Dimensions are resolved by each engine;
// the orchestration layer treats the format as opaque.
const (
	FormatA4     PageFormat = "A4"
	FormatA3     PageFormat = "A3"
	FormatLetter PageFormat = "Letter"
	FormatLegal  PageFormat = "Legal"
)

// Orientation is the page orientation.
type Orientation string

const (
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

// Margins holds page margins in inches.
type Margins struct {
	Top    float64 `yaml:"top" json:"top"`
	Bottom float64 `yaml:"bottom" json:"bottom"`
	Left   float64 `yaml:"left" json:"left"`
	Right  float64 `yaml:"right" json:"right"`
}

// UniformMargins returns margins with the same value on all four sides.
func UniformMargins(inches float64) Margins {
	return Margins{Top: inches, Bottom: inches, Left: inches, Right: inches}
}

// PageOptions are the per-call engine options controlling the physical page.
type PageOptions struct {
	// Format is the paper size. Default: A4.
	Format PageFormat `yaml:"format" json:"format"`

	// Orientation is portrait or landscape. Default: portrait.
	Orientation Orientation `yaml:"orientation" json:"orientation"`

	// Margins are the page margins in inches.
	Margins Margins `yaml:"margins" json:"margins"`

	// Scale is the rendering scale factor (1.0 = 100%). Zero means 1.0.
	Scale float64 `yaml:"scale" json:"scale"`

	// PrintBackground controls whether CSS backgrounds are rendered.
	PrintBackground bool `yaml:"print_background" json:"print_background"`
}

// TOCOptions control table-of-contents generation.
type TOCOptions struct {
	// Enabled turns TOC generation on.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// MaxDepth is the deepest heading level included (1-6). Default: 3.
	MaxDepth int `yaml:"max_depth" json:"max_depth"`

	// IncludePageNumbers requests page-accurate TOC entries, which forces
	// the request through the two-stage renderer.
	IncludePageNumbers bool `yaml:"include_page_numbers" json:"include_page_numbers"`

	// Title is the TOC heading text. Default: "Table of Contents".
	Title string `yaml:"title" json:"title"`
}

// BookmarkOptions control PDF outline bookmarks.
type BookmarkOptions struct {
	Enabled  bool `yaml:"enabled" json:"enabled"`
	MaxDepth int  `yaml:"max_depth" json:"max_depth"`
}

// DocumentMetadata is optional metadata embedded in the output document.
type DocumentMetadata struct {
	Title    string `yaml:"title" json:"title,omitempty"`
	Author   string `yaml:"author" json:"author,omitempty"`
	Subject  string `yaml:"subject" json:"subject,omitempty"`
	Keywords string `yaml:"keywords" json:"keywords,omitempty"`
}

// GenerationRequest contains everything an engine needs to render a document.
// A request is immutable for the duration of one Generate call.
type GenerationRequest struct {
	// RequestID uniquely identifies the request for logging and tracing.
	// Assigned by the manager if empty.
	RequestID string

	// HTMLContent is the fully rendered document markup.
	HTMLContent string

	// OutputPath is where the PDF artifact is written. If empty, the PDF
	// bytes are returned in RenderOutput.PDF only.
	OutputPath string

	// Page holds the physical page options.
	Page PageOptions

	// TOC holds table-of-contents options.
	TOC TOCOptions

	// Bookmarks holds PDF outline options.
	Bookmarks BookmarkOptions

	// Metadata is optional document metadata.
	Metadata DocumentMetadata

	// HeaderTemplate and FooterTemplate are HTML fragments rendered in the
	// page chrome. Engines that support them substitute pageNumber and
	// totalPages placeholder classes.
	HeaderTemplate string
	FooterTemplate string

	// CollectAnchors requests an anchor-id to page-number map in the output.
	// Set by the two-stage renderer's pre-render pass.
	CollectAnchors bool

	// PreferredEngine optionally names the engine this request should be
	// routed to first, overriding the selection strategy order.
	PreferredEngine string
}

// RenderOutput is the raw result of a successful engine Generate call.
type RenderOutput struct {
	// PDF is the generated document.
	PDF []byte

	// Pages is the page count reported by the engine.
	Pages int

	// AnchorPages maps anchor ids to 1-based page numbers. Populated only
	// when the request set CollectAnchors and the engine supports probing.
	AnchorPages map[string]int
}

// Performance breaks down where the time of a generation went.
type Performance struct {
	// PreRenderTime is the stage-1 duration (zero for single-stage requests).
	PreRenderTime time.Duration `json:"pre_render_time"`

	// FinalRenderTime is the stage-2 (or only) render duration.
	FinalRenderTime time.Duration `json:"final_render_time"`

	// TotalTime is the end-to-end duration observed by the caller.
	TotalTime time.Duration `json:"total_time"`
}

// ResultMetadata describes a successful generation.
type ResultMetadata struct {
	// Pages is the page count of the produced document.
	Pages int `json:"pages"`

	// FileSize is the artifact size in bytes.
	FileSize int64 `json:"file_size"`

	// GenerationTime is the time spent in the winning engine.
	GenerationTime time.Duration `json:"generation_time"`

	// EngineUsed names the engine that produced the artifact.
	EngineUsed string `json:"engine_used"`

	// Performance is the optional stage timing breakdown.
	Performance *Performance `json:"performance,omitempty"`
}

// GenerationResult is the uniform outcome of a generation request.
// A result is either a success or a failure, never both: Success implies
// Metadata is set and Error is empty, and vice versa.
type GenerationResult struct {
	// Success reports whether an artifact was produced.
	Success bool `json:"success"`

	// OutputPath is where the artifact was written (success only).
	OutputPath string `json:"output_path,omitempty"`

	// PDF holds the artifact bytes when no OutputPath was requested.
	PDF []byte `json:"-"`

	// Metadata describes the artifact (success only).
	Metadata *ResultMetadata `json:"metadata,omitempty"`

	// Error is a human-readable failure description (failure only).
	Error string `json:"error,omitempty"`

	// AnchorPages maps anchor ids to final page numbers. Populated when the
	// request set CollectAnchors and the winning engine supports probing.
	AnchorPages map[string]int `json:"anchor_pages,omitempty"`

	// ReducedAccuracy is set when page-accurate TOC rendering was requested
	// but the pre-render pass failed and the document fell back to
	// single-stage rendering.
	ReducedAccuracy bool `json:"reduced_accuracy,omitempty"`
}

// Failure builds a failure result from an error message.
func Failure(msg string) *GenerationResult {
	return &GenerationResult{Success: false, Error: msg}
}
