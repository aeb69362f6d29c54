// Gutenberg is an HTML to PDF rendering service with engine failover.
//
// It orchestrates multiple rendering backends (headless Chromium, remote
// render services) behind a single interface, providing:
//   - Health-aware engine selection with automatic failover
//   - Per-engine concurrency limits and task timeouts
//   - Page-accurate table-of-contents rendering via a two-pass pipeline
//   - Pagination caching (in-memory or SQLite)
//
// Usage:
//
//	# Render a document with the default configuration
//	gutenberg render report.html -o report.pdf
//
//	# Render a batch of documents into a directory
//	gutenberg render docs/*.html --out-dir build/
//
//	# Render with a page-numbered table of contents
//	gutenberg render report.html -o report.pdf --toc --toc-page-numbers
//
//	# Show engine health and usage
//	gutenberg status --config /etc/gutenberg/config.yaml
//
//	# Show version information
//	gutenberg version
package main

func main() {
	Execute()
}
