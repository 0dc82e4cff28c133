package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/hazyhaar/cartfinder/probe"
)

// Extractor computes one raw feature value for an element. An error
// degrades the value to 0 for that candidate; it never aborts the pass.
type Extractor func(p probe.Probe, h probe.Handle) (float64, error)

// Feature is a named, weighted signal.
type Feature struct {
	Name    string
	Weight  float64
	Extract Extractor
}

// AcceptFunc decides whether an enumerated element may become a candidate.
type AcceptFunc func(p probe.Probe, cat probe.Category, h probe.Handle) bool

// Config parameterizes one engine instance.
type Config struct {
	Name       string
	Categories []probe.Category
	// Accept filters enumerated elements. Default: AcceptButtonLike.
	Accept AcceptFunc
	// RequireLayout rejects elements without a layout box before any
	// feature is computed.
	RequireLayout bool
	Features      []Feature
	// Threshold is the exclusive score cutoff; nil means DefaultThreshold.
	// A pointer so that a cutoff of 0 stays expressible.
	Threshold *float64
}

func (c *Config) defaults() {
	if len(c.Categories) == 0 {
		c.Categories = probe.DefaultCategories
	}
	if c.Accept == nil {
		c.Accept = AcceptButtonLike
	}
	t := DefaultThreshold
	if c.Threshold != nil {
		t = *c.Threshold
	}
	c.Threshold = &t
}

// weightTolerance bounds the drift allowed when weights are summed.
const weightTolerance = 1e-6

// Validate checks feature names and that weights sum to 1.
func (c Config) Validate() error {
	if len(c.Features) == 0 {
		return fmt.Errorf("scoring: %s: no features", c.Name)
	}
	seen := make(map[string]bool, len(c.Features))
	var sum float64
	for _, f := range c.Features {
		if f.Name == "" {
			return fmt.Errorf("scoring: %s: unnamed feature", c.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("scoring: %s: duplicate feature %q", c.Name, f.Name)
		}
		seen[f.Name] = true
		if f.Extract == nil {
			return fmt.Errorf("scoring: %s: feature %q has no extractor", c.Name, f.Name)
		}
		if f.Weight < 0 {
			return fmt.Errorf("scoring: %s: negative weight for %q", c.Name, f.Name)
		}
		sum += f.Weight
	}
	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("scoring: %s: weights sum to %.6f, must sum to 1", c.Name, sum)
	}
	if t := c.Threshold; t != nil && (*t < 0 || *t >= 1) {
		return fmt.Errorf("scoring: %s: threshold %v out of [0,1)", c.Name, *t)
	}
	return nil
}

// AcceptButtonLike accepts every element except inputs whose type is not
// button, submit or image.
func AcceptButtonLike(p probe.Probe, cat probe.Category, h probe.Handle) bool {
	if cat != probe.CategoryInput {
		return true
	}
	switch probe.InputType(p, h) {
	case "button", "submit", "image":
		return true
	}
	return false
}

// Engine ranks candidates for one configuration.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// New validates cfg and returns an Engine.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, logger: logger}, nil
}

// Config returns the engine configuration with defaults applied.
func (e *Engine) Config() Config {
	c := e.cfg
	t := *c.Threshold
	c.Threshold = &t
	return c
}

// Rank runs one full pass against p.
func (e *Engine) Rank(p probe.Probe) Result {
	pool := e.Candidates(p)
	if len(pool) == 0 {
		e.logger.Debug("scoring: empty pool", "engine", e.cfg.Name)
		return Result{}
	}

	res := Select(pool, *e.cfg.Threshold, p.IsVisible)
	e.logger.Debug("scoring: ranked",
		"engine", e.cfg.Name, "pool", len(pool), "kept", len(res))
	return res
}

// Candidates builds the pool and scores it, in discovery order, before the
// threshold and the visibility gate apply.
func (e *Engine) Candidates(p probe.Probe) []Candidate {
	pool, features := e.pool(p)
	if len(pool) == 0 {
		return nil
	}
	for _, f := range features {
		// The pool is non-empty, so Normalize cannot fail here.
		_ = Normalize(f.Values)
	}
	Score(pool, features)
	return pool
}

// pool enumerates candidates and extracts every raw feature value.
func (e *Engine) pool(p probe.Probe) ([]Candidate, []FeatureSpec) {
	var pool []Candidate
	features := make([]FeatureSpec, len(e.cfg.Features))
	for i, f := range e.cfg.Features {
		features[i] = FeatureSpec{Name: f.Name, Weight: f.Weight}
	}
	degraded := make([]degradation, len(e.cfg.Features))

	for _, cat := range e.cfg.Categories {
		for _, h := range p.Enumerate(cat) {
			if !e.cfg.Accept(p, cat, h) {
				continue
			}
			if e.cfg.RequireLayout && !p.HasLayoutBox(h) {
				continue
			}

			pool = append(pool, Candidate{Element: h})
			for i, f := range e.cfg.Features {
				v, err := f.Extract(p, h)
				if err != nil {
					degraded[i].add(err)
					v = 0
				}
				features[i].Values = append(features[i].Values, v)
			}
		}
	}

	for i, d := range degraded {
		if d.count == 0 {
			continue
		}
		level := slog.LevelWarn
		if errors.Is(d.first, probe.ErrNoBody) {
			level = slog.LevelDebug
		}
		e.logger.Log(context.Background(), level, "scoring: feature degraded",
			"engine", e.cfg.Name, "feature", e.cfg.Features[i].Name,
			"candidates", d.count, "error", d.first)
	}

	return pool, features
}

type degradation struct {
	count int
	first error
}

func (d *degradation) add(err error) {
	if d.count == 0 {
		d.first = err
	}
	d.count++
}
