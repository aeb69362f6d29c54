// Package twostage implements page-accurate table-of-contents rendering.
//
// A TOC with page numbers cannot be produced in a single pass: inserting
// the TOC shifts content, and the page each heading lands on is only known
// after layout. The renderer therefore runs a pre-render pass with a
// placeholder TOC to measure anchor positions, then a final pass with the
// real page numbers filled in. When the pre-render pass fails, the document
// degrades to a single pass without page numbers and the result is flagged
// ReducedAccuracy.
package twostage

import (
	"context"
	"log/slog"
	"time"

	"typeset-hq/gutenberg/pkg/engines"
	"typeset-hq/gutenberg/pkg/twostage/storage"
)

// Generator produces PDF artifacts from generation requests. The engine
// manager satisfies this interface.
type Generator interface {
	Generate(ctx context.Context, req *engines.GenerationRequest) *engines.GenerationResult
}

// Renderer drives the two-pass rendering flow on top of a Generator.
type Renderer struct {
	generator Generator
	cache     storage.Store
	logger    *slog.Logger
}

// New creates a two-stage renderer. A nil cache disables pagination
// caching; every page-accurate request then runs both passes.
func New(gen Generator, cache storage.Store) *Renderer {
	return &Renderer{
		generator: gen,
		cache:     cache,
		logger:    slog.Default().With("component", "twostage"),
	}
}

// Render produces the document. Requests without a page-accurate TOC run a
// single pass; requests with TOC.IncludePageNumbers run the two-pass flow.
// Like Generator.Generate, Render never returns a Go error.
func (r *Renderer) Render(ctx context.Context, req *engines.GenerationRequest) *engines.GenerationResult {
	start := time.Now()

	if !req.TOC.Enabled {
		result := r.generator.Generate(ctx, req)
		finishTiming(result, 0, time.Since(start))
		return result
	}

	maxDepth := req.TOC.MaxDepth
	if maxDepth == 0 {
		maxDepth = defaultTOCDepth
	}

	html, headings, err := extractHeadings(req.HTMLContent, maxDepth)
	if err != nil {
		return engines.Failure("extracting headings: " + err.Error())
	}

	if !req.TOC.IncludePageNumbers {
		return r.renderSinglePass(ctx, req, html, headings, start, false)
	}

	return r.renderTwoPass(ctx, req, html, headings, start)
}

// renderSinglePass injects a TOC without page numbers and renders once.
// reducedAccuracy marks results that wanted page numbers but lost them to a
// failed pre-render pass.
func (r *Renderer) renderSinglePass(ctx context.Context, req *engines.GenerationRequest, html string, headings []Heading, start time.Time, reducedAccuracy bool) *engines.GenerationResult {
	finalHTML, err := injectTOC(html, headings, nil, req.TOC)
	if err != nil {
		return engines.Failure("injecting table of contents: " + err.Error())
	}

	finalReq := cloneRequest(req)
	finalReq.HTMLContent = finalHTML

	result := r.generator.Generate(ctx, finalReq)
	result.ReducedAccuracy = result.ReducedAccuracy || (reducedAccuracy && result.Success)
	finishTiming(result, 0, time.Since(start))
	return result
}

// renderTwoPass measures pagination with a placeholder TOC, then renders
// the final document with real page numbers.
func (r *Renderer) renderTwoPass(ctx context.Context, req *engines.GenerationRequest, html string, headings []Heading, start time.Time) *engines.GenerationResult {
	key := cacheKey(html, req.Page, req.TOC)

	anchors, cached := r.cachedAnchors(ctx, key)
	var preRenderTime time.Duration

	if !cached {
		preStart := time.Now()
		anchors = r.preRender(ctx, req, html, headings, key)
		preRenderTime = time.Since(preStart)

		if anchors == nil {
			r.logger.Warn("pre-render pass failed, degrading to single pass",
				"request_id", req.RequestID,
			)
			return r.renderSinglePass(ctx, req, html, headings, start, true)
		}
	}

	finalHTML, err := injectTOC(html, headings, anchors, req.TOC)
	if err != nil {
		return engines.Failure("injecting table of contents: " + err.Error())
	}

	finalStart := time.Now()
	finalReq := cloneRequest(req)
	finalReq.HTMLContent = finalHTML

	result := r.generator.Generate(ctx, finalReq)
	finishTiming(result, preRenderTime, time.Since(start))
	if result.Success && result.Metadata != nil && result.Metadata.Performance != nil {
		result.Metadata.Performance.FinalRenderTime = time.Since(finalStart)
	}
	if result.Success {
		result.AnchorPages = anchors
	}
	return result
}

// preRender runs the measurement pass. It returns the anchor map, or nil
// when the pass failed or produced no anchors.
func (r *Renderer) preRender(ctx context.Context, req *engines.GenerationRequest, html string, headings []Heading, key string) map[string]int {
	// The placeholder TOC occupies the same layout slot as the final one,
	// so both passes paginate alike.
	preHTML, err := injectTOC(html, headings, map[string]int{}, req.TOC)
	if err != nil {
		r.logger.Warn("building pre-render document failed", "error", err)
		return nil
	}

	preReq := cloneRequest(req)
	preReq.HTMLContent = preHTML
	preReq.OutputPath = ""
	preReq.CollectAnchors = true

	result := r.generator.Generate(ctx, preReq)
	if !result.Success {
		r.logger.Warn("pre-render generation failed",
			"request_id", req.RequestID,
			"error", result.Error,
		)
		return nil
	}
	if len(result.AnchorPages) == 0 {
		r.logger.Warn("pre-render produced no anchor map; engine lacks probing support",
			"request_id", req.RequestID,
		)
		return nil
	}

	if r.cache != nil {
		entry := &storage.Entry{
			Key:         key,
			AnchorPages: result.AnchorPages,
		}
		if result.Metadata != nil {
			entry.Pages = result.Metadata.Pages
		}
		if err := r.cache.Put(ctx, entry); err != nil {
			r.logger.Warn("caching pagination failed", "error", err)
		}
	}

	return result.AnchorPages
}

// cachedAnchors looks up the pagination cache. Storage failures count as
// misses.
func (r *Renderer) cachedAnchors(ctx context.Context, key string) (map[string]int, bool) {
	if r.cache == nil {
		return nil, false
	}
	entry, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn("pagination cache lookup failed", "error", err)
		return nil, false
	}
	if entry == nil || len(entry.AnchorPages) == 0 {
		return nil, false
	}
	r.logger.Debug("pagination cache hit", "key", key, "pages", entry.Pages)
	return entry.AnchorPages, true
}

// cloneRequest shallow-copies a request so per-pass mutations never leak
// into the caller's request.
func cloneRequest(req *engines.GenerationRequest) *engines.GenerationRequest {
	out := *req
	return &out
}

// finishTiming attaches the stage timing breakdown to a successful result.
func finishTiming(result *engines.GenerationResult, preRender, total time.Duration) {
	if !result.Success || result.Metadata == nil {
		return
	}
	result.Metadata.Performance = &engines.Performance{
		PreRenderTime:   preRender,
		FinalRenderTime: total - preRender,
		TotalTime:       total,
	}
}
