package selector

import (
	"fmt"
	"regexp"

	"github.com/hazyhaar/cartfinder/feature"
	"github.com/hazyhaar/cartfinder/probe"
	"github.com/hazyhaar/cartfinder/scoring"
)

// Kind names a commerce action.
type Kind string

const (
	KindAddToCart Kind = "add_to_cart"
	KindCart      Kind = "cart"
	KindCheckout  Kind = "checkout"
)

// Kinds lists every selector kind in a stable order.
var Kinds = []Kind{KindAddToCart, KindCart, KindCheckout}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Default match patterns.
const (
	AddToCartPattern = `(?i)(add[ -]?\w*[ -]?to[ -]?(bag|cart|tote|basket|shop|trolley))|(buy[ -]?now)|(shippingATCButton)`
	CartPattern      = `(?i)(edit|view|shopping|addedto|my|go)[ -]?(\w[ -]?)*(bag|cart|tote|basket|trolley)|(bag|cart|tote|basket|trolley)`
	CheckoutPattern  = `(?i)(proceed|continue)[ -]?(to)?[ -]?(check[ -]?out|pay)|check[ -]?out`
	HeaderPattern    = `(?i)header`
)

// Spec is the declarative description of one kind: which pattern drives
// the text feature, which features are weighted how, and whether a layout
// box is required up front.
type Spec struct {
	Kind          Kind
	Pattern       string
	RegionPattern string
	Weights       []Weight
	RequireLayout bool
	// Threshold is the exclusive cutoff used as is; 0 keeps every
	// candidate with a positive score.
	Threshold float64
}

// Weight binds a feature name to its weight.
type Weight struct {
	Feature string
	Weight  float64
}

// DefaultSpecs returns the built-in configuration of every kind.
func DefaultSpecs() map[Kind]Spec {
	return map[Kind]Spec{
		KindAddToCart: {
			Kind:    KindAddToCart,
			Pattern: AddToCartPattern,
			Weights: []Weight{
				{feature.NameColorDistance, 0.1},
				{feature.NameTextMatch, 0.6},
				{feature.NameArea, 0.3},
			},
			RequireLayout: true,
			Threshold:     scoring.DefaultThreshold,
		},
		// Cart icons are often styled without a conventional box, so no
		// layout pre-filter. Visibility is both a weighted feature and the
		// post-score gate.
		KindCart: {
			Kind:          KindCart,
			Pattern:       CartPattern,
			RegionPattern: HeaderPattern,
			Weights: []Weight{
				{feature.NameTextMatch, 0.18},
				{feature.NameX, 0.17},
				{feature.NameNegY, 0.17},
				{feature.NameNegArea, 0.16},
				{feature.NameVisibility, 0.16},
				{feature.NameInHeader, 0.16},
			},
			Threshold: scoring.DefaultThreshold,
		},
		KindCheckout: {
			Kind:    KindCheckout,
			Pattern: CheckoutPattern,
			Weights: []Weight{
				{feature.NameColorDistance, 0.1},
				{feature.NameTextMatch, 0.7},
				{feature.NameArea, 0.2},
			},
			RequireLayout: true,
			Threshold:     scoring.DefaultThreshold,
		},
	}
}

// EngineConfig compiles a Spec into a scoring.Config.
func (s Spec) EngineConfig() (scoring.Config, error) {
	re, err := regexp.Compile(s.Pattern)
	if err != nil {
		return scoring.Config{}, fmt.Errorf("selector: %s: pattern: %w", s.Kind, err)
	}
	region := s.RegionPattern
	if region == "" {
		region = HeaderPattern
	}
	regionRe, err := regexp.Compile(region)
	if err != nil {
		return scoring.Config{}, fmt.Errorf("selector: %s: region pattern: %w", s.Kind, err)
	}

	extractors := map[string]scoring.Extractor{
		feature.NameColorDistance: feature.ColorDistance,
		feature.NameTextMatch:     feature.TextMatch(re),
		feature.NameArea:          feature.Area,
		feature.NameX:             feature.X,
		feature.NameNegY:          feature.NegY,
		feature.NameNegArea:       feature.NegArea,
		feature.NameVisibility:    feature.Visibility,
		feature.NameInHeader:      feature.InHeader(regionRe),
	}

	threshold := s.Threshold
	cfg := scoring.Config{
		Name:          string(s.Kind),
		Categories:    probe.DefaultCategories,
		Accept:        scoring.AcceptButtonLike,
		RequireLayout: s.RequireLayout,
		Threshold:     &threshold,
	}
	for _, w := range s.Weights {
		ex, ok := extractors[w.Feature]
		if !ok {
			return scoring.Config{}, fmt.Errorf("selector: %s: unknown feature %q", s.Kind, w.Feature)
		}
		cfg.Features = append(cfg.Features, scoring.Feature{Name: w.Feature, Weight: w.Weight, Extract: ex})
	}
	return cfg, nil
}
