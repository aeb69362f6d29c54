package twostage

import (
	"strings"
	"testing"

	"typeset-hq/gutenberg/pkg/engines"
)

const sampleDoc = `<html><body>
<h1>Introduction</h1>
<p>intro text</p>
<h2>Background</h2>
<h3 id="custom-anchor">Details</h3>
<h4>Too Deep</h4>
<h2>Background</h2>
</body></html>`

func TestExtractHeadings(t *testing.T) {
	html, headings, err := extractHeadings(sampleDoc, 3)
	if err != nil {
		t.Fatalf("extractHeadings: %v", err)
	}

	want := []Heading{
		{Level: 1, Text: "Introduction", ID: "introduction"},
		{Level: 2, Text: "Background", ID: "background"},
		{Level: 3, Text: "Details", ID: "custom-anchor"},
		{Level: 2, Text: "Background", ID: "background-2"},
	}
	if len(headings) != len(want) {
		t.Fatalf("got %d headings, want %d: %+v", len(headings), len(want), headings)
	}
	for i, w := range want {
		if headings[i] != w {
			t.Errorf("heading[%d] = %+v, want %+v", i, headings[i], w)
		}
	}

	// Assigned ids must land in the document so TOC links resolve.
	for _, id := range []string{`id="introduction"`, `id="background"`, `id="background-2"`} {
		if !strings.Contains(html, id) {
			t.Errorf("document missing %s", id)
		}
	}
	// h4 is beyond max depth and must stay untouched.
	if strings.Contains(html, `<h4 id=`) {
		t.Error("h4 should not receive an anchor at depth 3")
	}
}

func TestExtractHeadingsDepthFiltering(t *testing.T) {
	doc := `<html><body><h1>A</h1><h2>B</h2><h2>C</h2><h3>D</h3><h3>E</h3><h3>F</h3><h3>G</h3></body></html>`

	tests := []struct {
		depth int
		want  int
	}{
		{depth: 1, want: 1},
		{depth: 2, want: 3},
		{depth: 3, want: 7},
	}
	for _, tt := range tests {
		_, headings, err := extractHeadings(doc, tt.depth)
		if err != nil {
			t.Fatalf("depth %d: %v", tt.depth, err)
		}
		if len(headings) != tt.want {
			t.Errorf("depth %d: got %d headings, want %d", tt.depth, len(headings), tt.want)
		}
	}
}

func TestInjectTOCWithPageNumbers(t *testing.T) {
	html, headings, err := extractHeadings(sampleDoc, 3)
	if err != nil {
		t.Fatalf("extractHeadings: %v", err)
	}

	anchors := map[string]int{
		"introduction":  1,
		"background":    2,
		"custom-anchor": 4,
		"background-2":  6,
	}
	out, err := injectTOC(html, headings, anchors, engines.TOCOptions{
		Enabled:            true,
		IncludePageNumbers: true,
		Title:              "Contents",
	})
	if err != nil {
		t.Fatalf("injectTOC: %v", err)
	}

	for _, want := range []string{
		`<nav class="toc">`,
		`<h1 class="toc-title">Contents</h1>`,
		`<a href="#introduction">Introduction</a><span class="toc-page">1</span>`,
		`<a href="#custom-anchor">Details</a><span class="toc-page">4</span>`,
		`toc-level-1`,
		`toc-level-3`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("TOC output missing %q", want)
		}
	}

	// TOC goes at the top of the body, before the first heading.
	if strings.Index(out, `<nav class="toc">`) > strings.Index(out, `<h1 id="introduction">`) {
		t.Error("TOC should precede document content")
	}
}

func TestInjectTOCWithoutPageNumbers(t *testing.T) {
	html, headings, err := extractHeadings(sampleDoc, 3)
	if err != nil {
		t.Fatalf("extractHeadings: %v", err)
	}

	out, err := injectTOC(html, headings, nil, engines.TOCOptions{Enabled: true})
	if err != nil {
		t.Fatalf("injectTOC: %v", err)
	}

	if strings.Contains(out, "toc-page") {
		t.Error("page cells should be absent without an anchor map")
	}
	if !strings.Contains(out, defaultTOCTitle) {
		t.Errorf("default title %q should be used", defaultTOCTitle)
	}
}

func TestInjectTOCReplacesPrevious(t *testing.T) {
	html, headings, err := extractHeadings(sampleDoc, 3)
	if err != nil {
		t.Fatalf("extractHeadings: %v", err)
	}

	first, err := injectTOC(html, headings, map[string]int{}, engines.TOCOptions{Enabled: true})
	if err != nil {
		t.Fatalf("first injectTOC: %v", err)
	}
	second, err := injectTOC(first, headings, map[string]int{"introduction": 1}, engines.TOCOptions{Enabled: true})
	if err != nil {
		t.Fatalf("second injectTOC: %v", err)
	}

	if got := strings.Count(second, `<nav class="toc">`); got != 1 {
		t.Errorf("document has %d TOC navs, want 1", got)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Introduction", "introduction"},
		{"Getting Started: A Guide", "getting-started-a-guide"},
		{"  Spaces  Everywhere  ", "spaces-everywhere"},
		{"!!!", "section"},
		{"C++ & Go", "c-go"},
	}
	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildTOCMarkupEscapesText(t *testing.T) {
	headings := []Heading{{Level: 1, Text: "<script>alert(1)</script>", ID: "x"}}
	out := buildTOCMarkup(headings, nil, engines.TOCOptions{Title: `A "Quoted" & <Title>`})

	if strings.Contains(out, "<script>") {
		t.Error("heading text must be escaped")
	}
	if !strings.Contains(out, "&quot;Quoted&quot; &amp; &lt;Title&gt;") {
		t.Errorf("title not escaped: %s", out)
	}
}
