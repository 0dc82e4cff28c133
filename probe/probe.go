// Package probe defines the page-inspection contract consumed by the
// scoring engine. Implementations expose raw per-element signals; they
// never score anything themselves.
package probe

import (
	"errors"
	"strings"
)

var (
	// ErrNoBody is returned when the page has no body element to read a
	// background color from.
	ErrNoBody = errors.New("probe: no body element")

	// ErrBadColor is returned when a color string cannot be parsed.
	ErrBadColor = errors.New("probe: invalid color")
)

// Handle is an opaque reference to a page element. Two handles are the
// same element iff they are equal. Handles are only meaningful for the
// Probe that produced them.
type Handle int

// Category is an element tag name to enumerate (e.g. "button").
type Category string

const (
	CategoryButton         Category = "button"
	CategoryInput          Category = "input"
	CategoryLink           Category = "a"
	CategoryAddToCartLabel Category = "add-to-cart-button"
)

// DefaultCategories is the enumeration order used by every selector kind.
// Pool order, and therefore tie-break order, follows it.
var DefaultCategories = []Category{
	CategoryButton,
	CategoryInput,
	CategoryLink,
	CategoryAddToCartLabel,
}

// Box is an element's bounding box in viewport coordinates.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns Width*Height.
func (b Box) Area() float64 { return b.Width * b.Height }

// Attribute is one name/value pair of an element.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Probe reads raw signals from one consistent view of a page.
type Probe interface {
	// Enumerate returns the elements of a category in document order.
	Enumerate(cat Category) []Handle
	// IsVisible reports whether the element is currently rendered and shown.
	IsVisible(h Handle) bool
	// HasLayoutBox reports whether the element participates in layout
	// (offsetParent is non-null in a browser).
	HasLayoutBox(h Handle) bool
	// BackgroundColor returns the computed CSS background color string.
	BackgroundColor(h Handle) string
	// Body returns the document body, if any.
	Body() (Handle, bool)
	BoundingBox(h Handle) Box
	Attributes(h Handle) []Attribute
	// Text returns the rendered text of the element.
	Text(h Handle) string
	// Parent returns the parent element; false at the document root or
	// for a detached element.
	Parent(h Handle) (Handle, bool)
	// Source returns the resolved media source URL for img/input/iframe-like
	// elements.
	Source(h Handle) (string, bool)
}

// Attr returns the value of the named attribute and whether it is present.
// Attribute names compare case-insensitively.
func Attr(p Probe, h Handle, name string) (string, bool) {
	for _, a := range p.Attributes(h) {
		if strings.EqualFold(a.Name, name) {
			return a.Value, true
		}
	}
	return "", false
}

// InputType returns the behavioral type of an input element the way a
// browser reports it: lower-cased, "text" when absent.
func InputType(p Probe, h Handle) string {
	t, ok := Attr(p, h, "type")
	t = strings.ToLower(strings.TrimSpace(t))
	if !ok || t == "" {
		return "text"
	}
	return t
}
