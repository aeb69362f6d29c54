package chromium

import (
	"bytes"

	"github.com/go-rod/rod/lib/proto"

	"typeset-hq/gutenberg/pkg/engines"
)

// paperSize holds paper dimensions in inches, portrait orientation.
type paperSize struct {
	width  float64
	height float64
}

var paperSizes = map[engines.PageFormat]paperSize{
	engines.FormatA4:     {width: 8.27, height: 11.69},
	engines.FormatA3:     {width: 11.69, height: 16.54},
	engines.FormatLetter: {width: 8.5, height: 11},
	engines.FormatLegal:  {width: 8.5, height: 14},
}

// resolvePaper returns the paper dimensions for the requested format and
// orientation. Unknown formats fall back to A4.
func resolvePaper(format engines.PageFormat, orientation engines.Orientation) paperSize {
	size, ok := paperSizes[format]
	if !ok {
		size = paperSizes[engines.FormatA4]
	}
	if orientation == engines.OrientationLandscape {
		size.width, size.height = size.height, size.width
	}
	return size
}

// buildPrintOptions maps a generation request to CDP Page.printToPDF options.
func buildPrintOptions(req *engines.GenerationRequest) *proto.PagePrintToPDF {
	paper := resolvePaper(req.Page.Format, req.Page.Orientation)
	m := req.Page.Margins

	opts := &proto.PagePrintToPDF{
		PaperWidth:      floatPtr(paper.width),
		PaperHeight:     floatPtr(paper.height),
		MarginTop:       floatPtr(m.Top),
		MarginBottom:    floatPtr(m.Bottom),
		MarginLeft:      floatPtr(m.Left),
		MarginRight:     floatPtr(m.Right),
		PrintBackground: req.Page.PrintBackground,
	}

	if req.Page.Scale > 0 && req.Page.Scale != 1.0 {
		opts.Scale = floatPtr(req.Page.Scale)
	}

	if req.HeaderTemplate != "" || req.FooterTemplate != "" {
		opts.DisplayHeaderFooter = true
		opts.HeaderTemplate = orEmptySpan(req.HeaderTemplate)
		opts.FooterTemplate = orEmptySpan(req.FooterTemplate)
	}

	return opts
}

// orEmptySpan substitutes Chromium's no-op fragment for an empty template.
// Leaving a template empty while DisplayHeaderFooter is set makes Chromium
// render its default date/URL chrome.
func orEmptySpan(tpl string) string {
	if tpl == "" {
		return "<span></span>"
	}
	return tpl
}

// countPages counts the page objects in a PDF document. Chromium's Skia
// backend writes page dictionaries as plain "/Type /Page" entries, so a
// byte scan is sufficient; the page-tree node "/Type /Pages" is excluded
// by matching on the trailing delimiter.
func countPages(pdf []byte) int {
	n := 0
	for _, sep := range [][]byte{[]byte("/Type /Page"), []byte("/Type/Page")} {
		for idx := 0; ; {
			i := bytes.Index(pdf[idx:], sep)
			if i < 0 {
				break
			}
			idx += i + len(sep)
			// Skip "/Type /Pages" tree nodes.
			if idx < len(pdf) && pdf[idx] == 's' {
				continue
			}
			n++
		}
		if n > 0 {
			break
		}
	}
	return n
}

func floatPtr(v float64) *float64 { return &v }
