// Package remote implements the Engine interface over an HTTP render
// service. The service receives the document and page options as JSON and
// responds with the PDF artifact, page count, and optional anchor map.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"typeset-hq/gutenberg/pkg/engines"
)

// DefaultName is the engine name used when the config leaves it empty.
const DefaultName = "remote"

const (
	renderPath = "/render"
	healthPath = "/healthz"

	// maxErrorBody caps how much of an error response is kept for
	// diagnostics.
	maxErrorBody = 512
)

// Config configures a remote render-service engine.
type Config struct {
	// Name overrides the engine name. Default: "remote".
	Name string

	// Priority is the declared selection priority. Lower sorts earlier.
	Priority int

	// BaseURL is the render service root, e.g. "https://render.internal:9222".
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// RequestTimeout bounds each HTTP call. Default: 60s.
	RequestTimeout time.Duration

	// MaxIdleConns configures the connection pool. Default: 10.
	MaxIdleConns int
}

// Engine renders HTML to PDF through a remote render service.
type Engine struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

var _ engines.Engine = (*Engine)(nil)

// New creates a remote engine with a pooled HTTP client.
func New(cfg Config) *Engine {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 10
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &Engine{
		config: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		logger: slog.Default().With("component", "engine.remote", "engine", cfg.Name),
	}
}

// renderRequest is the wire format sent to the render service.
type renderRequest struct {
	RequestID      string              `json:"request_id,omitempty"`
	HTML           string              `json:"html"`
	Page           engines.PageOptions `json:"page"`
	HeaderTemplate string              `json:"header_template,omitempty"`
	FooterTemplate string              `json:"footer_template,omitempty"`
	CollectAnchors bool                `json:"collect_anchors,omitempty"`
}

// renderResponse is the wire format returned by the render service.
type renderResponse struct {
	PDF         string         `json:"pdf"` // base64
	Pages       int            `json:"pages"`
	AnchorPages map[string]int `json:"anchor_pages,omitempty"`
}

// Name implements Engine.
func (e *Engine) Name() string { return e.config.Name }

// Priority implements Engine.
func (e *Engine) Priority() int { return e.config.Priority }

// Capabilities implements Engine. The wire protocol carries anchor maps and
// header/footer templates; scaling is applied service-side.
func (e *Engine) Capabilities() engines.Capabilities {
	return engines.Capabilities{
		SupportsAnchorProbing: true,
		SupportsHeaderFooter:  true,
		SupportsScaling:       true,
	}
}

// Initialize verifies the service is reachable. A failed first contact is
// returned as an error; the manager keeps the engine registered and the
// probe loop picks it up when it recovers.
func (e *Engine) Initialize(ctx context.Context) error {
	return e.Probe(ctx)
}

// Generate implements Engine by POSTing the document to the render service.
func (e *Engine) Generate(ctx context.Context, req *engines.GenerationRequest) (*engines.RenderOutput, error) {
	payload := renderRequest{
		RequestID:      req.RequestID,
		HTML:           req.HTMLContent,
		Page:           req.Page,
		HeaderTemplate: req.HeaderTemplate,
		FooterTemplate: req.FooterTemplate,
		CollectAnchors: req.CollectAnchors,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling render request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.BaseURL+renderPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating render request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	e.setAuth(httpReq)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, &engines.TimeoutError{Engine: e.config.Name, Timeout: e.config.RequestTimeout.String()}
		}
		return nil, fmt.Errorf("render service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, e.statusError(resp)
	}

	var rr renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fmt.Errorf("%w: decoding render response: %v", engines.ErrPDFGeneration, err)
	}

	pdf, err := base64.StdEncoding.DecodeString(rr.PDF)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding PDF payload: %v", engines.ErrPDFGeneration, err)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("%w: render service returned an empty document", engines.ErrPDFGeneration)
	}

	return &engines.RenderOutput{
		PDF:         pdf,
		Pages:       rr.Pages,
		AnchorPages: rr.AnchorPages,
	}, nil
}

// Probe implements Engine with a GET against the service health endpoint.
func (e *Engine) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.BaseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("creating probe request: %w", err)
	}
	e.setAuth(req)

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("render service unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &engines.RemoteStatusError{Engine: e.config.Name, StatusCode: resp.StatusCode}
	}
	return nil
}

// Dispose implements Engine by releasing pooled connections.
func (e *Engine) Dispose() error {
	e.client.CloseIdleConnections()
	e.logger.Info("render service connections closed")
	return nil
}

func (e *Engine) setAuth(req *http.Request) {
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}
}

// statusError builds a RemoteStatusError with a truncated response body.
func (e *Engine) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &engines.RemoteStatusError{
		Engine:     e.config.Name,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}
