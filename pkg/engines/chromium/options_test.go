package chromium

import (
	"testing"

	"typeset-hq/gutenberg/pkg/engines"
)

func TestResolvePaper(t *testing.T) {
	tests := []struct {
		name        string
		format      engines.PageFormat
		orientation engines.Orientation
		wantW       float64
		wantH       float64
	}{
		{
			name:        "a4 portrait",
			format:      engines.FormatA4,
			orientation: engines.OrientationPortrait,
			wantW:       8.27,
			wantH:       11.69,
		},
		{
			name:        "a4 landscape swaps dimensions",
			format:      engines.FormatA4,
			orientation: engines.OrientationLandscape,
			wantW:       11.69,
			wantH:       8.27,
		},
		{
			name:        "letter",
			format:      engines.FormatLetter,
			orientation: engines.OrientationPortrait,
			wantW:       8.5,
			wantH:       11,
		},
		{
			name:        "legal",
			format:      engines.FormatLegal,
			orientation: engines.OrientationPortrait,
			wantW:       8.5,
			wantH:       14,
		},
		{
			name:        "unknown format falls back to a4",
			format:      engines.PageFormat("Tabloid"),
			orientation: engines.OrientationPortrait,
			wantW:       8.27,
			wantH:       11.69,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolvePaper(tt.format, tt.orientation)
			if got.width != tt.wantW || got.height != tt.wantH {
				t.Errorf("resolvePaper() = %.2fx%.2f, want %.2fx%.2f",
					got.width, got.height, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestBuildPrintOptions(t *testing.T) {
	req := &engines.GenerationRequest{
		Page: engines.PageOptions{
			Format:          engines.FormatLetter,
			Orientation:     engines.OrientationPortrait,
			Margins:         engines.UniformMargins(0.5),
			Scale:           0.8,
			PrintBackground: true,
		},
		FooterTemplate: `<span class="pageNumber"></span>`,
	}

	opts := buildPrintOptions(req)

	if *opts.PaperWidth != 8.5 || *opts.PaperHeight != 11 {
		t.Errorf("paper = %gx%g, want 8.5x11", *opts.PaperWidth, *opts.PaperHeight)
	}
	if *opts.MarginTop != 0.5 || *opts.MarginBottom != 0.5 {
		t.Errorf("margins = %g/%g, want 0.5/0.5", *opts.MarginTop, *opts.MarginBottom)
	}
	if opts.Scale == nil || *opts.Scale != 0.8 {
		t.Errorf("scale not applied: %v", opts.Scale)
	}
	if !opts.PrintBackground {
		t.Error("PrintBackground not applied")
	}
	if !opts.DisplayHeaderFooter {
		t.Error("footer template should enable DisplayHeaderFooter")
	}
	if opts.HeaderTemplate != "<span></span>" {
		t.Errorf("empty header should become a no-op span, got %q", opts.HeaderTemplate)
	}
	if opts.FooterTemplate != req.FooterTemplate {
		t.Errorf("footer template not passed through: %q", opts.FooterTemplate)
	}
}

func TestBuildPrintOptionsDefaults(t *testing.T) {
	opts := buildPrintOptions(&engines.GenerationRequest{})

	// Unset format resolves to A4, no header/footer chrome, default scale.
	if *opts.PaperWidth != 8.27 {
		t.Errorf("default paper width = %g, want A4", *opts.PaperWidth)
	}
	if opts.DisplayHeaderFooter {
		t.Error("DisplayHeaderFooter should stay off without templates")
	}
	if opts.Scale != nil {
		t.Errorf("scale should stay unset for default 1.0, got %v", *opts.Scale)
	}
}

func TestCountPages(t *testing.T) {
	tests := []struct {
		name string
		pdf  string
		want int
	}{
		{
			name: "three pages with tree node",
			pdf:  "<</Type /Pages>> <</Type /Page>> <</Type /Page>> <</Type /Page>>",
			want: 3,
		},
		{
			name: "compact syntax",
			pdf:  "<</Type/Pages/Kids[]>> <</Type/Page>> <</Type/Page>>",
			want: 2,
		},
		{
			name: "no page objects",
			pdf:  "%PDF-1.7 garbage",
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := countPages([]byte(tt.pdf)); got != tt.want {
				t.Errorf("countPages() = %d, want %d", got, tt.want)
			}
		})
	}
}
