package sink

import (
	"context"

	"github.com/hazyhaar/cartfinder/report"
)

// ReportFunc receives each report in-process.
type ReportFunc func(ctx context.Context, r *report.Report) error

// Callback delivers reports through a Go function call. A nil function
// drops every report.
type Callback struct {
	fn ReportFunc
}

// NewCallback creates a Callback sink.
func NewCallback(fn ReportFunc) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) Send(ctx context.Context, r *report.Report) error {
	if c.fn == nil {
		return nil
	}
	return c.fn(ctx, r)
}

func (c *Callback) Close() error { return nil }
