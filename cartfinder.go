// Package cartfinder finds the add-to-cart, cart and checkout buttons of a
// web page.
//
// A page is acquired as a dom.Snapshot (static HTTP fetch, live Chrome
// capture, or HTML supplied by the caller), ranked by one scoring engine
// per selector kind, and turned into a report.Report that is persisted and
// fanned out to sinks.
//
// Usage:
//
//	svc, err := cartfinder.New(cfg, cartfinder.WithStore(st), cartfinder.WithLogger(logger))
//	defer svc.Close()
//	rep, err := svc.ScanURL(ctx, "https://shop.example/p/1", config.ModeAuto, nil)
//	r.Mount("/", svc.Routes())
//	svc.RegisterMCP(mcpServer)
package cartfinder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/cartfinder/browser"
	"github.com/hazyhaar/cartfinder/config"
	"github.com/hazyhaar/cartfinder/dom"
	"github.com/hazyhaar/cartfinder/fetcher"
	"github.com/hazyhaar/cartfinder/idgen"
	"github.com/hazyhaar/cartfinder/report"
	"github.com/hazyhaar/cartfinder/selector"
	"github.com/hazyhaar/cartfinder/sink"
	"github.com/hazyhaar/cartfinder/store"
)

var (
	// ErrNoInput is returned when a scan has neither a URL nor HTML.
	ErrNoInput = errors.New("cartfinder: url or html required")
	// ErrBadMode is returned for an unknown acquisition mode.
	ErrBadMode = errors.New("cartfinder: unknown mode")
	// ErrAcquire wraps failures to fetch or render the page.
	ErrAcquire = errors.New("cartfinder: acquire page")
	// ErrNoHistory is returned by history queries when no store is configured.
	ErrNoHistory = errors.New("cartfinder: history disabled")
)

// Page is a live page that can be captured repeatedly.
type Page interface {
	Capture(ctx context.Context) (*dom.Snapshot, error)
	// Mutations returns a counter that grows when the DOM changes.
	Mutations(ctx context.Context) (int64, error)
	Close() error
}

// PageOpener opens live pages. browser.Manager is the production
// implementation.
type PageOpener interface {
	Open(ctx context.Context, pageURL string) (Page, error)
}

// Service ties acquisition, ranking, persistence and delivery together.
// It is safe for concurrent use.
type Service struct {
	cfg     *config.Config
	finder  *selector.Finder
	reports *report.Builder
	fetcher *fetcher.Fetcher
	pages   PageOpener
	manager *browser.Manager
	store   *store.Store
	sinks   *sink.Router
	ids     idgen.Generator
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithStore persists every report in st.
func WithStore(st *store.Store) Option {
	return func(s *Service) { s.store = st }
}

// WithSinks delivers every report through r. By default the sinks of the
// configuration are used.
func WithSinks(r *sink.Router) Option {
	return func(s *Service) { s.sinks = r }
}

// WithPageOpener replaces the Chrome-backed page opener.
func WithPageOpener(p PageOpener) Option {
	return func(s *Service) { s.pages = p }
}

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f *fetcher.Fetcher) Option {
	return func(s *Service) { s.fetcher = f }
}

// WithIDGenerator sets the scan ID generator. Default: UUIDv7.
func WithIDGenerator(g idgen.Generator) Option {
	return func(s *Service) { s.ids = g }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds a Service from cfg. A nil cfg uses config.Default(). Chrome is
// only started when a scan needs it.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Service{cfg: cfg, ids: idgen.Default, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}

	selOpts, err := cfg.SelectorOptions()
	if err != nil {
		return nil, err
	}
	s.finder, err = selector.New(append(selOpts, selector.WithLogger(s.logger))...)
	if err != nil {
		return nil, fmt.Errorf("cartfinder: %w", err)
	}
	s.reports = report.NewBuilder(s.finder)
	s.reports.Limit = cfg.Limit

	if s.fetcher == nil {
		s.fetcher = fetcher.New(
			fetcher.WithTimeout(cfg.Fetch.Timeout),
			fetcher.WithUserAgent(cfg.Fetch.UserAgent),
			fetcher.WithMaxBytes(cfg.Fetch.MaxBytes),
			fetcher.WithLogger(s.logger),
		)
	}

	if s.pages == nil {
		level, err := browser.ParseStealth(cfg.Browser.Stealth)
		if err != nil {
			return nil, err
		}
		s.manager = browser.NewManager(browser.Config{
			RemoteURL:        cfg.Browser.Remote,
			ResourceBlocking: cfg.Browser.ResourceBlocking,
			Stealth:          level,
			XvfbDisplay:      cfg.Browser.XvfbDisplay,
			NavTimeout:       cfg.Browser.NavTimeout,
			Settle:           cfg.Browser.Settle,
			Logger:           s.logger,
		})
		s.pages = chromePages{s.manager}
	}

	if s.sinks == nil {
		s.sinks, err = sink.FromConfig(cfg.Sinks, s.logger)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Finder returns the ranking facade.
func (s *Service) Finder() *selector.Finder { return s.finder }

// Close stops Chrome if it was started and closes the sinks.
func (s *Service) Close() error {
	var firstErr error
	if s.manager != nil {
		firstErr = s.manager.Close()
	}
	if err := s.sinks.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// chromePages adapts browser.Manager to PageOpener.
type chromePages struct {
	m *browser.Manager
}

func (c chromePages) Open(ctx context.Context, pageURL string) (Page, error) {
	tab, err := c.m.OpenTab(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return tab, nil
}

// ParseKinds validates kind names. An empty list selects every kind.
func ParseKinds(names []string) ([]selector.Kind, error) {
	if len(names) == 0 {
		return selector.Kinds, nil
	}
	kinds := make([]selector.Kind, 0, len(names))
	for _, n := range names {
		k, err := selector.ParseKind(n)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}
