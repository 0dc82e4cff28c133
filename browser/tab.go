package browser

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/cartfinder/dom"
)

//go:embed capture.js
var captureJS string

//go:embed mutations.js
var mutationsJS string

// Tab is a stealth page navigated to one URL.
type Tab struct {
	Page    *rod.Page
	PageURL string
	router  *rod.HijackRouter
}

// OpenTab creates a stealth tab, applies resource blocking and navigates
// to pageURL. Load timeouts are logged and do not fail the call.
func (m *Manager) OpenTab(ctx context.Context, pageURL string) (*Tab, error) {
	b, err := m.Browser()
	if err != nil {
		return nil, err
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	t := &Tab{Page: page, PageURL: pageURL}
	if len(m.cfg.ResourceBlocking) > 0 {
		t.router = blockResources(page, m.cfg.ResourceBlocking)
	}

	navCtx, cancel := context.WithTimeout(ctx, m.cfg.NavTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		t.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		m.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	if m.cfg.Settle > 0 {
		select {
		case <-time.After(m.cfg.Settle):
		case <-ctx.Done():
			t.Close()
			return nil, ctx.Err()
		}
	}
	return t, nil
}

// Capture reads every element with its computed signals in one
// evaluation, so the snapshot is a consistent view of the page.
func (t *Tab) Capture(ctx context.Context) (*dom.Snapshot, error) {
	res, err := t.Page.Context(ctx).Eval(captureJS)
	if err != nil {
		return nil, fmt.Errorf("browser: capture: %w", err)
	}
	snap, err := dom.Decode([]byte(res.Value.Str()))
	if err != nil {
		return nil, fmt.Errorf("browser: capture: %w", err)
	}
	return snap, nil
}

// Mutations returns the number of DOM mutation records seen since the
// first call. The first call installs the observer and returns 0.
func (t *Tab) Mutations(ctx context.Context) (int64, error) {
	res, err := t.Page.Context(ctx).Eval(mutationsJS)
	if err != nil {
		return 0, fmt.Errorf("browser: mutations: %w", err)
	}
	return int64(res.Value.Int()), nil
}

// Close closes the tab and stops request interception.
func (t *Tab) Close() error {
	if t.router != nil {
		t.router.Stop()
	}
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
