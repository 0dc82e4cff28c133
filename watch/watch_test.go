package watch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// counter is a Detector whose version the test controls.
type counter struct {
	v    atomic.Int64
	fail atomic.Bool
}

func (c *counter) detect(context.Context) (int64, error) {
	if c.fail.Load() {
		return 0, errors.New("page gone")
	}
	return c.v.Load(), nil
}

func start(t *testing.T, w *Watcher, action func(context.Context) error) (cancel func(), done <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan error, 1)
	go func() { ch <- w.OnChange(ctx, action) }()
	t.Cleanup(cancel)
	return cancel, ch
}

func TestOnChange_FiresOnVersionChange(t *testing.T) {
	var c counter
	var runs atomic.Int32
	w := New(c.detect, Options{Interval: 20 * time.Millisecond})

	start(t, w, func(context.Context) error {
		runs.Add(1)
		return nil
	})
	time.Sleep(50 * time.Millisecond)

	c.v.Store(1)
	time.Sleep(80 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Fatalf("expected 1 run, got %d", got)
	}

	c.v.Store(2)
	time.Sleep(80 * time.Millisecond)
	if got := runs.Load(); got != 2 {
		t.Fatalf("expected 2 runs, got %d", got)
	}

	time.Sleep(80 * time.Millisecond)
	if got := runs.Load(); got != 2 {
		t.Fatalf("expected still 2, got %d", got)
	}
}

func TestOnChange_Debounce(t *testing.T) {
	var c counter
	var runs atomic.Int32
	w := New(c.detect, Options{
		Interval: 20 * time.Millisecond,
		Debounce: 100 * time.Millisecond,
	})

	start(t, w, func(context.Context) error {
		runs.Add(1)
		return nil
	})
	time.Sleep(50 * time.Millisecond)

	for i := 1; i <= 5; i++ {
		c.v.Store(int64(i))
		time.Sleep(15 * time.Millisecond)
	}
	if got := runs.Load(); got != 0 {
		t.Fatalf("expected 0 runs during debounce, got %d", got)
	}

	time.Sleep(200 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Fatalf("expected exactly 1 debounced run, got %d", got)
	}
	if v := w.Version(); v != 5 {
		t.Fatalf("expected version 5, got %d", v)
	}
}

func TestOnChange_DebounceShorterThanInterval(t *testing.T) {
	var n atomic.Int64
	var bursting atomic.Bool
	bursting.Store(true)
	detect := func(context.Context) (int64, error) {
		if bursting.Load() {
			return n.Add(1), nil
		}
		return n.Load(), nil
	}
	var runs atomic.Int32
	w := New(detect, Options{
		Interval: 50 * time.Millisecond,
		Debounce: 10 * time.Millisecond,
	})
	start(t, w, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	time.Sleep(300 * time.Millisecond)
	if got := runs.Load(); got != 0 {
		t.Fatalf("expected 0 runs while the version keeps moving, got %d", got)
	}

	bursting.Store(false)
	time.Sleep(150 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Fatalf("expected exactly 1 run after the burst, got %d", got)
	}
	if v := w.Version(); v != n.Load() {
		t.Fatalf("expected version %d, got %d", n.Load(), v)
	}
}

func TestOnChange_ErrorDoesNotAdvanceVersion(t *testing.T) {
	var c counter
	var calls atomic.Int32
	w := New(c.detect, Options{Interval: 20 * time.Millisecond})

	start(t, w, func(context.Context) error {
		if calls.Add(1) == 1 {
			return context.DeadlineExceeded
		}
		return nil
	})
	time.Sleep(50 * time.Millisecond)

	c.v.Store(1)
	time.Sleep(120 * time.Millisecond)

	if got := calls.Load(); got < 2 {
		t.Fatalf("expected at least 2 calls (1 fail + 1 success), got %d", got)
	}
	if v := w.Version(); v != 1 {
		t.Fatalf("expected version 1, got %d", v)
	}
}

func TestOnChange_CancelReturnsNil(t *testing.T) {
	var c counter
	w := New(c.detect, Options{Interval: 10 * time.Millisecond})
	cancel, done := start(t, w, func(context.Context) error { return nil })

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("OnChange: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("OnChange did not return after cancel")
	}
}

func TestOnChange_MaxFailures(t *testing.T) {
	var c counter
	w := New(c.detect, Options{Interval: 5 * time.Millisecond, MaxFailures: 3})
	_, done := start(t, w, func(context.Context) error { return nil })

	time.Sleep(20 * time.Millisecond)
	c.fail.Store(true)

	select {
	case err := <-done:
		if !errors.Is(err, ErrDetector) {
			t.Fatalf("expected ErrDetector, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("OnChange did not give up")
	}
	if s := w.Stats(); s.Errors < 3 {
		t.Fatalf("expected >= 3 errors, got %d", s.Errors)
	}
}

func TestOnChange_InitialFailure(t *testing.T) {
	var c counter
	c.fail.Store(true)
	w := New(c.detect, Options{})
	if err := w.OnChange(context.Background(), func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected initial version error")
	}
}

func TestStats(t *testing.T) {
	var c counter
	w := New(c.detect, Options{Interval: 20 * time.Millisecond})
	start(t, w, func(context.Context) error { return nil })
	time.Sleep(50 * time.Millisecond)

	c.v.Store(1)
	time.Sleep(80 * time.Millisecond)

	s := w.Stats()
	if s.Checks == 0 {
		t.Fatal("expected checks > 0")
	}
	if s.ChangesDetected == 0 {
		t.Fatal("expected changes > 0")
	}
	if s.Runs == 0 {
		t.Fatal("expected runs > 0")
	}
}
