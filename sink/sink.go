// Package sink delivers scan reports to output backends.
package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/cartfinder/report"
)

// Sink is the output interface.
type Sink interface {
	Send(ctx context.Context, r *report.Report) error
	Close() error
}

// Config describes one backend, as read from the configuration file.
type Config struct {
	Type    string `yaml:"type" json:"type"` // stdout | webhook
	URL     string `yaml:"url" json:"url,omitempty"`
	Retries int    `yaml:"retries" json:"retries,omitempty"`
}

// FromConfig builds a Router over the configured backends. An empty list
// yields a Router with no sinks.
func FromConfig(cfgs []Config, logger *slog.Logger) (*Router, error) {
	var sinks []Sink
	for _, c := range cfgs {
		switch c.Type {
		case "stdout":
			sinks = append(sinks, NewStdout(nil))
		case "webhook":
			if c.URL == "" {
				return nil, fmt.Errorf("sink: webhook without url")
			}
			opts := []WebhookOption{WithWebhookLogger(logger)}
			if c.Retries > 0 {
				opts = append(opts, WithWebhookRetries(c.Retries))
			}
			sinks = append(sinks, NewWebhook(c.URL, opts...))
		default:
			return nil, fmt.Errorf("sink: unknown type %q", c.Type)
		}
	}
	return NewRouter(logger, sinks...), nil
}

type envelope struct {
	Type string         `json:"type"`
	Data *report.Report `json:"data"`
}
