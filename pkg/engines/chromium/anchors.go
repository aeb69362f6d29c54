package chromium

import (
	"fmt"

	"github.com/go-rod/rod"

	"typeset-hq/gutenberg/pkg/engines"
)

// cssPixelsPerInch is the CSS reference pixel density used by Chromium's
// print layout.
const cssPixelsPerInch = 96.0

// anchorProbeJS maps every element carrying an id to the 1-based page its
// top edge lands on, given the printable page height in CSS pixels.
const anchorProbeJS = `(pageHeight) => {
	const pages = {};
	for (const el of document.querySelectorAll('[id]')) {
		const top = el.getBoundingClientRect().top + window.scrollY;
		pages[el.id] = Math.floor(top / pageHeight) + 1;
	}
	return pages;
}`

// probeAnchors estimates the final page number of every anchored element by
// dividing its document offset by the printable page height. The estimate
// matches Chromium's print pagination for flow content; elements split
// across a page boundary resolve to the page their top edge is on.
func (e *Engine) probeAnchors(page *rod.Page, opts engines.PageOptions) (map[string]int, error) {
	paper := resolvePaper(opts.Format, opts.Orientation)

	scale := opts.Scale
	if scale <= 0 {
		scale = 1.0
	}

	printableInches := paper.height - opts.Margins.Top - opts.Margins.Bottom
	if printableInches <= 0 {
		return nil, fmt.Errorf("margins leave no printable area on %s", opts.Format)
	}
	pageHeightPx := printableInches * cssPixelsPerInch / scale

	res, err := page.Eval(anchorProbeJS, pageHeightPx)
	if err != nil {
		return nil, fmt.Errorf("evaluating anchor probe: %w", err)
	}

	anchors := make(map[string]int)
	for id, pageNum := range res.Value.Map() {
		anchors[id] = pageNum.Int()
	}
	return anchors, nil
}
