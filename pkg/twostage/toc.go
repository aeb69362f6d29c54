package twostage

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"typeset-hq/gutenberg/pkg/engines"
)

// Heading is one document heading eligible for the table of contents.
type Heading struct {
	// Level is the heading level (1 for h1, 2 for h2, ...).
	Level int

	// Text is the heading's plain text.
	Text string

	// ID is the anchor id linking the TOC entry to the heading.
	ID string
}

// defaultTOCTitle is used when the request leaves the title empty.
const defaultTOCTitle = "Table of Contents"

// defaultTOCDepth is the deepest heading level included by default.
const defaultTOCDepth = 3

var slugStripRe = regexp.MustCompile(`[^a-z0-9]+`)

// slugify converts heading text into an anchor id.
func slugify(text string) string {
	slug := strings.ToLower(strings.TrimSpace(text))
	slug = slugStripRe.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "section"
	}
	return slug
}

// headingSelector builds the CSS selector for headings up to maxDepth.
func headingSelector(maxDepth int) string {
	if maxDepth < 1 || maxDepth > 6 {
		maxDepth = defaultTOCDepth
	}
	parts := make([]string, maxDepth)
	for i := 0; i < maxDepth; i++ {
		parts[i] = fmt.Sprintf("h%d", i+1)
	}
	return strings.Join(parts, ", ")
}

// extractHeadings parses the document, assigns an anchor id to every
// heading up to maxDepth that lacks one, and returns the (possibly
// modified) document plus the heading list in document order.
func extractHeadings(html string, maxDepth int) (string, []Heading, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", nil, fmt.Errorf("parsing document: %w", err)
	}

	var headings []Heading
	seen := make(map[string]int)

	doc.Find(headingSelector(maxDepth)).Each(func(_ int, s *goquery.Selection) {
		level := int(goquery.NodeName(s)[1] - '0')
		text := strings.TrimSpace(s.Text())

		id, ok := s.Attr("id")
		if !ok || id == "" {
			id = slugify(text)
			// Deduplicate repeated headings with a numeric suffix.
			if n := seen[id]; n > 0 {
				seen[id] = n + 1
				id = fmt.Sprintf("%s-%d", id, n+1)
			} else {
				seen[id] = 1
			}
			s.SetAttr("id", id)
		} else {
			seen[id]++
		}

		headings = append(headings, Heading{Level: level, Text: text, ID: id})
	})

	out, err := doc.Html()
	if err != nil {
		return "", nil, fmt.Errorf("serializing document: %w", err)
	}
	return out, headings, nil
}

// buildTOCMarkup renders the TOC nav element. When anchorPages is nil the
// entries carry no page numbers; placeholder mode (anchorPages non-nil but
// missing an id) renders an empty page cell so both passes paginate alike.
func buildTOCMarkup(headings []Heading, anchorPages map[string]int, opts engines.TOCOptions) string {
	title := opts.Title
	if title == "" {
		title = defaultTOCTitle
	}

	var b strings.Builder
	b.WriteString(`<nav class="toc">`)
	b.WriteString(fmt.Sprintf(`<h1 class="toc-title">%s</h1>`, escapeText(title)))
	b.WriteString(`<ul class="toc-list">`)

	for _, h := range headings {
		b.WriteString(fmt.Sprintf(`<li class="toc-entry toc-level-%d">`, h.Level))
		b.WriteString(fmt.Sprintf(`<a href="#%s">%s</a>`, h.ID, escapeText(h.Text)))
		if anchorPages != nil {
			if page, ok := anchorPages[h.ID]; ok {
				b.WriteString(fmt.Sprintf(`<span class="toc-page">%d</span>`, page))
			} else {
				b.WriteString(`<span class="toc-page"></span>`)
			}
		}
		b.WriteString(`</li>`)
	}

	b.WriteString(`</ul></nav>`)
	return b.String()
}

// injectTOC inserts the TOC nav at the top of the document body. Any TOC
// nav from a previous pass is replaced, so the pre-render and final pass
// operate on the same source document.
func injectTOC(html string, headings []Heading, anchorPages map[string]int, opts engines.TOCOptions) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parsing document: %w", err)
	}

	doc.Find("nav.toc").Remove()

	markup := buildTOCMarkup(headings, anchorPages, opts)
	doc.Find("body").PrependHtml(markup)

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("serializing document: %w", err)
	}
	return out, nil
}

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func escapeText(s string) string {
	return textEscaper.Replace(s)
}
