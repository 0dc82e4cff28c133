package cartfinder

import (
	"context"
	"fmt"

	"github.com/hazyhaar/cartfinder/config"
	"github.com/hazyhaar/cartfinder/dom"
	"github.com/hazyhaar/cartfinder/idgen"
	"github.com/hazyhaar/cartfinder/report"
	"github.com/hazyhaar/cartfinder/selector"
	"github.com/hazyhaar/cartfinder/store"
)

// ModeHTML marks reports ranked from caller-supplied HTML.
const ModeHTML = "html"

// ScanRequest is the transport-neutral scan input. HTML wins over URL
// fetching; URL is then only the base for resolving links.
type ScanRequest struct {
	URL   string   `json:"url,omitempty"`
	HTML  string   `json:"html,omitempty"`
	Mode  string   `json:"mode,omitempty"`
	Kinds []string `json:"kinds,omitempty"`
}

// Scan dispatches a request to ScanHTML or ScanURL.
func (s *Service) Scan(ctx context.Context, req ScanRequest) (*report.Report, error) {
	kinds, err := ParseKinds(req.Kinds)
	if err != nil {
		return nil, err
	}
	switch {
	case req.HTML != "":
		return s.ScanHTML(ctx, []byte(req.HTML), req.URL, kinds)
	case req.URL != "":
		return s.ScanURL(ctx, req.URL, req.Mode, kinds)
	}
	return nil, ErrNoInput
}

// ScanHTML ranks a static HTML document. pageURL resolves relative media
// sources and may be empty.
func (s *Service) ScanHTML(ctx context.Context, html []byte, pageURL string, kinds []selector.Kind) (*report.Report, error) {
	snap, err := dom.ParseHTML(html, pageURL)
	if err != nil {
		return nil, fmt.Errorf("cartfinder: %w", err)
	}
	return s.rank(ctx, snap, ModeHTML, kinds)
}

// ScanURL acquires pageURL with mode (static, browser or auto; empty uses
// the configured mode) and ranks it. Auto fetches over HTTP first and
// escalates to Chrome when the static snapshot cannot serve the requested
// kinds.
func (s *Service) ScanURL(ctx context.Context, pageURL, mode string, kinds []selector.Kind) (*report.Report, error) {
	if pageURL == "" {
		return nil, ErrNoInput
	}
	if mode == "" {
		mode = s.cfg.Mode
	}

	snap, used, err := s.acquire(ctx, pageURL, mode, kinds)
	if err != nil {
		return nil, err
	}
	return s.rank(ctx, snap, used, kinds)
}

func (s *Service) acquire(ctx context.Context, pageURL, mode string, kinds []selector.Kind) (*dom.Snapshot, string, error) {
	switch mode {
	case config.ModeStatic:
		res, err := s.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %w", ErrAcquire, err)
		}
		return res.Snapshot, config.ModeStatic, nil

	case config.ModeBrowser:
		snap, err := s.captureOnce(ctx, pageURL)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %w", ErrAcquire, err)
		}
		return snap, config.ModeBrowser, nil

	case config.ModeAuto:
		res, err := s.fetcher.Fetch(ctx, pageURL)
		switch {
		case err != nil:
			s.logger.Info("cartfinder: static fetch failed, escalating", "url", pageURL, "error", err)
		case !res.Sufficient:
			s.logger.Info("cartfinder: static page insufficient, escalating", "url", pageURL)
		case !res.Snapshot.HasGeometry() && s.needsGeometry(kinds):
			s.logger.Info("cartfinder: static page has no geometry, escalating", "url", pageURL)
		default:
			return res.Snapshot, config.ModeStatic, nil
		}
		snap, berr := s.captureOnce(ctx, pageURL)
		if berr != nil {
			if err == nil {
				// The static snapshot is still better than nothing.
				s.logger.Warn("cartfinder: browser failed, using static snapshot", "url", pageURL, "error", berr)
				return res.Snapshot, config.ModeStatic, nil
			}
			return nil, "", fmt.Errorf("%w: %w", ErrAcquire, berr)
		}
		return snap, config.ModeBrowser, nil
	}
	return nil, "", fmt.Errorf("%w: %q", ErrBadMode, mode)
}

// needsGeometry reports whether any of kinds can only be ranked with
// layout boxes.
func (s *Service) needsGeometry(kinds []selector.Kind) bool {
	if len(kinds) == 0 {
		kinds = selector.Kinds
	}
	for _, k := range kinds {
		if needs, _ := s.finder.NeedsGeometry(k); needs {
			return true
		}
	}
	return false
}

func (s *Service) captureOnce(ctx context.Context, pageURL string) (*dom.Snapshot, error) {
	page, err := s.pages.Open(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer page.Close()
	return page.Capture(ctx)
}

// rank builds, persists and publishes a report.
func (s *Service) rank(ctx context.Context, snap *dom.Snapshot, mode string, kinds []selector.Kind) (*report.Report, error) {
	r, err := s.reports.Build(snap, s.ids(), mode, kinds)
	if err != nil {
		return nil, err
	}
	if err := s.publish(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info("cartfinder: scanned",
		"id", r.ID, "url", r.URL, "mode", mode,
		"product_page", r.ProductPage, "elapsed", r.Elapsed)
	return r, nil
}

// publish stores the report and fans it out. Sink failures are logged by
// the router and do not fail the scan.
func (s *Service) publish(ctx context.Context, r *report.Report) error {
	if s.store != nil {
		if err := s.store.Insert(ctx, r); err != nil {
			return err
		}
	}
	_ = s.sinks.Send(ctx, r)
	return nil
}

// History lists stored scans, newest first.
func (s *Service) History(ctx context.Context, f store.Filter) ([]store.Summary, error) {
	if s.store == nil {
		return nil, ErrNoHistory
	}
	return s.store.List(ctx, f)
}

// Report returns one stored scan. UUID ids match in any accepted spelling.
func (s *Service) Report(ctx context.Context, id string) (*report.Report, error) {
	if s.store == nil {
		return nil, ErrNoHistory
	}
	if c, err := idgen.Parse(id); err == nil {
		id = c
	}
	return s.store.Get(ctx, id)
}
