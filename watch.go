package cartfinder

import (
	"context"
	"fmt"

	"github.com/hazyhaar/cartfinder/config"
	"github.com/hazyhaar/cartfinder/report"
	"github.com/hazyhaar/cartfinder/selector"
	"github.com/hazyhaar/cartfinder/watch"
)

// watchMaxFailures ends a watch once the page stops answering.
const watchMaxFailures = 3

// Watch keeps pageURL open in Chrome and re-ranks it whenever the DOM
// settles after a change: the page mutation counter is polled every watch
// interval, and a pass runs once the counter reads the same at both ends
// of the debounce window.
// Every pass is a full, independent ranking. A report is published and
// handed to emit for the first pass and whenever the top candidate of any
// kind changes. Watch returns nil when ctx is cancelled.
func (s *Service) Watch(ctx context.Context, pageURL string, kinds []selector.Kind, emit func(*report.Report)) error {
	if pageURL == "" {
		return ErrNoInput
	}
	page, err := s.pages.Open(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAcquire, err)
	}
	defer page.Close()

	pass := func(ctx context.Context) (*report.Report, error) {
		snap, err := page.Capture(ctx)
		if err != nil {
			return nil, err
		}
		return s.reports.Build(snap, s.ids(), config.ModeBrowser, kinds)
	}
	deliver := func(ctx context.Context, r *report.Report) error {
		if err := s.publish(ctx, r); err != nil {
			return err
		}
		if emit != nil {
			emit(r)
		}
		return nil
	}

	last, err := pass(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAcquire, err)
	}
	if err := deliver(ctx, last); err != nil {
		return err
	}

	w := watch.New(page.Mutations, watch.Options{
		Interval:    s.cfg.Watch.Interval,
		Debounce:    s.cfg.Watch.Debounce,
		MaxFailures: watchMaxFailures,
		Logger:      s.logger,
	})
	err = w.OnChange(ctx, func(ctx context.Context) error {
		r, err := pass(ctx)
		if err != nil {
			return err
		}
		if r.Fingerprint() == last.Fingerprint() {
			s.logger.Debug("cartfinder: watch pass unchanged", "url", pageURL)
			return nil
		}
		if err := deliver(ctx, r); err != nil {
			return err
		}
		last = r
		return nil
	})

	st := w.Stats()
	s.logger.Info("cartfinder: watch ended", "url", pageURL,
		"checks", st.Checks, "changes", st.ChangesDetected, "passes", st.Runs, "avg_pass", st.AvgRunTime)
	if err != nil {
		return fmt.Errorf("cartfinder: watch: %w", err)
	}
	return nil
}
