// Package fetcher implements the HTTP-only acquisition path: a single GET
// whose HTML is parsed into a static dom.Snapshot. No browser, no JS.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/cartfinder/dom"
)

// Result is the outcome of an HTTP fetch.
type Result struct {
	Snapshot *dom.Snapshot
	// Sufficient is false when the page looks like a script-rendered shell
	// and should be escalated to the browser.
	Sufficient bool
	StatusCode int
	FinalURL   string
	Size       int
}

// Fetcher performs HTTP GETs and produces snapshots.
type Fetcher struct {
	client   *http.Client
	ua       string
	maxBytes int64
	logger   *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithTimeout sets the client timeout. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.client.Timeout = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.ua = ua }
}

// WithMaxBytes caps the body size read. Default: 10 MiB.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) { f.maxBytes = n }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// New creates a Fetcher with sensible defaults.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{Timeout: 30 * time.Second},
		ua:       "Mozilla/5.0 (compatible; cartfinder/1.0)",
		maxBytes: 10 << 20,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch GETs pageURL and parses the response into a snapshot.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetcher: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetcher: do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetcher: %s: status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("fetcher: read body: %w", err)
	}

	finalURL := resp.Request.URL.String()
	snap, err := dom.ParseHTML(body, finalURL)
	if err != nil {
		return nil, fmt.Errorf("fetcher: %w", err)
	}

	res := &Result{
		Snapshot:   snap,
		Sufficient: IsSufficient(body, snap),
		StatusCode: resp.StatusCode,
		FinalURL:   finalURL,
		Size:       len(body),
	}

	f.logger.Debug("fetcher: fetched",
		"url", pageURL, "status", resp.StatusCode,
		"size", len(body), "sufficient", res.Sufficient)

	return res, nil
}
