// Package selector exposes the three commerce button finders (add to
// cart, cart, checkout) on top of one scoring engine per kind.
package selector

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/cartfinder/feature"
	"github.com/hazyhaar/cartfinder/probe"
	"github.com/hazyhaar/cartfinder/scoring"
)

// ErrUnknownKind is returned for a kind with no configured engine.
var ErrUnknownKind = errors.New("selector: unknown kind")

// Finder ranks button candidates. It is safe for concurrent use.
type Finder struct {
	engines map[Kind]*scoring.Engine
	logger  *slog.Logger
}

// Option configures a Finder.
type Option func(*options)

type options struct {
	specs  map[Kind]Spec
	logger *slog.Logger
}

// WithSpec replaces the configuration of one kind.
func WithSpec(s Spec) Option {
	return func(o *options) { o.specs[s.Kind] = s }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New builds a Finder from the default specs and any overrides.
func New(opts ...Option) (*Finder, error) {
	o := options{specs: DefaultSpecs(), logger: slog.Default()}
	for _, fn := range opts {
		fn(&o)
	}

	f := &Finder{engines: make(map[Kind]*scoring.Engine, len(o.specs)), logger: o.logger}
	for kind, spec := range o.specs {
		cfg, err := spec.EngineConfig()
		if err != nil {
			return nil, err
		}
		eng, err := scoring.New(cfg, o.logger)
		if err != nil {
			return nil, fmt.Errorf("selector: %s: %w", kind, err)
		}
		f.engines[kind] = eng
	}
	return f, nil
}

// PossibleButtons returns every qualifying candidate for kind, best first.
func (f *Finder) PossibleButtons(p probe.Probe, kind Kind) (scoring.Result, error) {
	eng, ok := f.engines[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return eng.Rank(p), nil
}

// NeedsGeometry reports whether kind can only clear its threshold with
// help from layout features: the weights of its non-geometric features
// sum to at most the cutoff. Such a kind finds nothing on a snapshot
// without geometry.
func (f *Finder) NeedsGeometry(kind Kind) (bool, error) {
	eng, ok := f.engines[kind]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	cfg := eng.Config()
	var reach float64
	for _, ft := range cfg.Features {
		if !feature.Geometric(ft.Name) {
			reach += ft.Weight
		}
	}
	return reach <= *cfg.Threshold+1e-9, nil
}

// BestButton returns the top-ranked candidate for kind. The boolean is
// false when no element qualified.
func (f *Finder) BestButton(p probe.Probe, kind Kind) (scoring.Candidate, bool, error) {
	res, err := f.PossibleButtons(p, kind)
	if err != nil {
		return scoring.Candidate{}, false, err
	}
	c, ok := res.Top()
	return c, ok, nil
}

// IsLikelyProductPage reports whether the page carries a distinguishable
// add-to-cart button. Two top candidates with the same text and the same
// score are ambiguous and count as not a product page.
func (f *Finder) IsLikelyProductPage(p probe.Probe) bool {
	res, err := f.PossibleButtons(p, KindAddToCart)
	if err != nil {
		f.logger.Warn("selector: product page check", "error", err)
		return false
	}
	return distinguishable(p, res)
}

func distinguishable(p probe.Probe, res scoring.Result) bool {
	switch len(res) {
	case 0:
		return false
	case 1:
		return true
	}
	a, b := res[0], res[1]
	return p.Text(a.Element) != p.Text(b.Element) || a.Score != b.Score
}
