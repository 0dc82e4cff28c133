// Package feature provides the raw-signal extractors the selector kinds
// combine: color contrast against the page, pattern matches on text and
// attributes, geometry, visibility and header ancestry.
package feature

import (
	"fmt"
	"regexp"

	"github.com/hazyhaar/cartfinder/probe"
	"github.com/hazyhaar/cartfinder/scoring"
)

// Names of the built-in features. Configuration files refer to them.
const (
	NameColorDistance = "color_distance"
	NameTextMatch     = "text_match"
	NameArea          = "area"
	NameX             = "x"
	NameNegY          = "neg_y"
	NameNegArea       = "neg_area"
	NameVisibility    = "visibility"
	NameInHeader      = "in_header"
)

// Geometric reports whether the named feature is computed from the layout
// box. Those features are constant, and so normalize to 0, on a snapshot
// without geometry.
func Geometric(name string) bool {
	switch name {
	case NameArea, NameNegArea, NameX, NameNegY:
		return true
	}
	return false
}

// ColorDistance is the Euclidean RGB distance between the element's
// background and the body's background.
func ColorDistance(p probe.Probe, h probe.Handle) (float64, error) {
	body, ok := p.Body()
	if !ok {
		return 0, probe.ErrNoBody
	}
	elem, err := probe.ParseColor(p.BackgroundColor(h))
	if err != nil {
		return 0, fmt.Errorf("feature: element background: %w", err)
	}
	page, err := probe.ParseColor(p.BackgroundColor(body))
	if err != nil {
		return 0, fmt.Errorf("feature: body background: %w", err)
	}
	return elem.Distance(page), nil
}

// TextMatch returns an extractor yielding 1 when the element's text, any
// of its attribute values, any attribute value of its parent, or its
// media source matches re; otherwise 0.
func TextMatch(re *regexp.Regexp) scoring.Extractor {
	return func(p probe.Probe, h probe.Handle) (float64, error) {
		if matches(re, p, h) {
			return 1, nil
		}
		return 0, nil
	}
}

func matches(re *regexp.Regexp, p probe.Probe, h probe.Handle) bool {
	if re.MatchString(p.Text(h)) {
		return true
	}
	if AnyAttributeMatches(p, h, re) {
		return true
	}
	if parent, ok := p.Parent(h); ok && AnyAttributeMatches(p, parent, re) {
		return true
	}
	if src, ok := p.Source(h); ok && re.MatchString(src) {
		return true
	}
	return false
}

// AnyAttributeMatches reports whether any attribute value of h matches re.
func AnyAttributeMatches(p probe.Probe, h probe.Handle, re *regexp.Regexp) bool {
	for _, a := range p.Attributes(h) {
		if re.MatchString(a.Value) {
			return true
		}
	}
	return false
}

// Area is the bounding box area.
func Area(p probe.Probe, h probe.Handle) (float64, error) {
	return p.BoundingBox(h).Area(), nil
}

// NegArea favours small elements.
func NegArea(p probe.Probe, h probe.Handle) (float64, error) {
	return -p.BoundingBox(h).Area(), nil
}

// X favours elements towards the right edge.
func X(p probe.Probe, h probe.Handle) (float64, error) {
	return p.BoundingBox(h).X, nil
}

// NegY favours elements towards the top.
func NegY(p probe.Probe, h probe.Handle) (float64, error) {
	return -p.BoundingBox(h).Y, nil
}

// Visibility is 1 for a visible element, 0 otherwise.
func Visibility(p probe.Probe, h probe.Handle) (float64, error) {
	return indicator(p.IsVisible(h)), nil
}

// InHeader returns an extractor yielding 1 when an ancestor of the element
// below the body has an attribute value matching re.
func InHeader(re *regexp.Regexp) scoring.Extractor {
	return func(p probe.Probe, h probe.Handle) (float64, error) {
		return indicator(InRegion(p, h, re)), nil
	}
}

// InRegion walks from the parent of h towards the body and reports
// whether any ancestor has a matching attribute value. The body itself is
// not tested. The walk ends at the document root if no body is reached.
func InRegion(p probe.Probe, h probe.Handle, re *regexp.Regexp) bool {
	body, hasBody := p.Body()
	e, ok := p.Parent(h)
	for ok {
		if hasBody && e == body {
			return false
		}
		if AnyAttributeMatches(p, e, re) {
			return true
		}
		e, ok = p.Parent(e)
	}
	return false
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
