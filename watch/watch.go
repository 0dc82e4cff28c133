// Package watch provides a generic "poll a version counter, detect change,
// debounce, act" loop. Service.Watch drives it with the mutation counter of
// a live page.
//
// Typical usage:
//
//	w := watch.New(page.Mutations, watch.Options{Interval: 2*time.Second, Debounce: 500*time.Millisecond})
//	err := w.OnChange(ctx, func(ctx context.Context) error { return rerank(ctx) })
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// ErrDetector is returned by OnChange when the detector failed
// Options.MaxFailures times in a row.
var ErrDetector = errors.New("watch: detector failing")

// Detector reads a version token. Two calls that return different values
// mean "something changed".
type Detector func(ctx context.Context) (int64, error)

// Options tunes the watcher behaviour.
type Options struct {
	// Interval is the polling frequency. Default: 1s.
	Interval time.Duration
	// Debounce is the quiet period after a change is detected before the
	// action fires. The version is read again when the window ends, and a
	// new value restarts the window, so the action only runs once the
	// version holds still for a whole Debounce. 0 means fire immediately.
	Debounce time.Duration
	// MaxFailures stops the loop after that many consecutive detector
	// errors. 0 keeps polling forever.
	MaxFailures int
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher polls a Detector and runs an action when the version changes.
type Watcher struct {
	detect Detector
	opts   Options

	// version is the last version the action succeeded for.
	version atomic.Int64

	checks   atomic.Int64
	changes  atomic.Int64
	errors   atomic.Int64
	runs     atomic.Int64
	runNanos atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Checks          int64         `json:"checks"`
	ChangesDetected int64         `json:"changes_detected"`
	Errors          int64         `json:"errors"`
	Runs            int64         `json:"runs"`
	AvgRunTime      time.Duration `json:"avg_run_time"`
}

// New creates a Watcher. Call OnChange to start the loop.
func New(detect Detector, opts Options) *Watcher {
	opts.defaults()
	return &Watcher{detect: detect, opts: opts}
}

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	s := Stats{
		Checks:          w.checks.Load(),
		ChangesDetected: w.changes.Load(),
		Errors:          w.errors.Load(),
		Runs:            w.runs.Load(),
	}
	if s.Runs > 0 {
		s.AvgRunTime = time.Duration(w.runNanos.Load() / s.Runs)
	}
	return s
}

// Version returns the last version the action succeeded for.
func (w *Watcher) Version() int64 { return w.version.Load() }

// OnChange seeds the version, then polls at opts.Interval until ctx is
// cancelled. When the detector reports a new version and the debounce
// window passes without further changes, action is called.
//
// If action returns an error the version is NOT advanced and the action
// is retried on the next poll. OnChange returns nil on cancellation and
// ErrDetector once MaxFailures is reached.
func (w *Watcher) OnChange(ctx context.Context, action func(context.Context) error) error {
	log := w.opts.Logger

	v, err := w.detect(ctx)
	if err != nil {
		return fmt.Errorf("watch: initial version: %w", err)
	}
	w.version.Store(v)

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()
	pending, hasPending := int64(0), false
	failures := 0

	log.Debug("watch: started", "interval", w.opts.Interval, "debounce", w.opts.Debounce)

	for {
		select {
		case <-ctx.Done():
			log.Debug("watch: stopped")
			return nil

		case <-ticker.C:
			w.checks.Add(1)
			cur, err := w.detect(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.errors.Add(1)
				failures++
				log.Warn("watch: version check failed", "error", err, "failures", failures)
				if w.opts.MaxFailures > 0 && failures >= w.opts.MaxFailures {
					return fmt.Errorf("%w: %w", ErrDetector, err)
				}
				continue
			}
			failures = 0
			if cur == w.version.Load() || (hasPending && cur == pending) {
				continue
			}
			w.changes.Add(1)
			pending, hasPending = cur, true

			if w.opts.Debounce <= 0 {
				w.fire(ctx, action, pending)
				hasPending = false
				continue
			}
			// Restart only when the pending version moved, not on every poll.
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(w.opts.Debounce)
			debounceCh = debounceTimer.C
			log.Debug("watch: change detected, debouncing", "pending_version", cur)

		case <-debounceCh:
			debounceCh = nil
			if !hasPending {
				continue
			}
			// Changes that landed between polls must also push the window.
			w.checks.Add(1)
			cur, err := w.detect(ctx)
			switch {
			case err != nil && ctx.Err() != nil:
				return nil
			case err != nil:
				log.Debug("watch: confirm check failed, firing pending", "error", err)
			case cur == w.version.Load():
				hasPending = false
				continue
			case cur != pending:
				w.changes.Add(1)
				pending = cur
				debounceTimer.Reset(w.opts.Debounce)
				debounceCh = debounceTimer.C
				log.Debug("watch: still changing, debouncing", "pending_version", cur)
				continue
			}
			w.fire(ctx, action, pending)
			hasPending = false
		}
	}
}

func (w *Watcher) fire(ctx context.Context, action func(context.Context) error, ver int64) {
	start := time.Now()
	if err := action(ctx); err != nil {
		w.errors.Add(1)
		w.opts.Logger.Warn("watch: action failed", "error", err, "version", ver)
		return
	}
	elapsed := time.Since(start)
	w.runs.Add(1)
	w.runNanos.Add(int64(elapsed))
	w.version.Store(ver)
	w.opts.Logger.Debug("watch: action complete", "version", ver, "duration", elapsed)
}
