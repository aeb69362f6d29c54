package twostage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"typeset-hq/gutenberg/pkg/engines"
)

// cacheKey derives the pagination cache key from the document content and
// every option that can shift page boundaries. Two requests share a key
// only when their pre-render pass would measure identical pagination.
func cacheKey(html string, page engines.PageOptions, toc engines.TOCOptions) string {
	h := sha256.New()
	h.Write([]byte(html))
	fmt.Fprintf(h, "\x00%s|%s|%g,%g,%g,%g|%g|%t",
		page.Format, page.Orientation,
		page.Margins.Top, page.Margins.Bottom, page.Margins.Left, page.Margins.Right,
		page.Scale, page.PrintBackground,
	)
	fmt.Fprintf(h, "\x00%d|%s", toc.MaxDepth, toc.Title)
	return hex.EncodeToString(h.Sum(nil))
}
