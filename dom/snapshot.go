// Package dom holds an immutable, serializable picture of the page
// elements the scorer cares about. A Snapshot implements probe.Probe, so a
// live page is captured once and every feature of a pass reads the same
// state.
package dom

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/hazyhaar/cartfinder/probe"
)

// NoNode marks an absent parent or body.
const NoNode = -1

// Node is one captured element.
type Node struct {
	ID     int    `json:"id"`
	Tag    string `json:"tag"`
	Parent int    `json:"parent"`
	// Order is the element's position in document order.
	Order      int               `json:"order"`
	Attrs      []probe.Attribute `json:"attrs,omitempty"`
	Text       string            `json:"text,omitempty"`
	Visible    bool              `json:"visible"`
	Layout     bool              `json:"layout"`
	Background string            `json:"background,omitempty"`
	Box        probe.Box         `json:"box"`
	Src        string            `json:"src,omitempty"`
	XPath      string            `json:"xpath,omitempty"`
	// HTML is a truncated outerHTML of the element, for reporting.
	HTML string `json:"html,omitempty"`
}

// Snapshot is a captured page. Node IDs are indexes into Nodes.
type Snapshot struct {
	URL    string `json:"url"`
	BodyID int    `json:"body"`
	Nodes  []Node `json:"nodes"`
}

var _ probe.Probe = (*Snapshot)(nil)

// Decode parses and validates a JSON snapshot.
func Decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("dom: decode: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Snapshot) validate() error {
	for i, node := range s.Nodes {
		if node.ID != i {
			return fmt.Errorf("dom: node %d has id %d", i, node.ID)
		}
		// Parents precede children, which keeps every ancestor walk finite.
		if node.Parent < NoNode || node.Parent >= i {
			return fmt.Errorf("dom: node %d has invalid parent %d", i, node.Parent)
		}
	}
	if s.BodyID < NoNode || s.BodyID >= len(s.Nodes) {
		return fmt.Errorf("dom: invalid body %d", s.BodyID)
	}
	return nil
}

// Node returns the captured node for h.
func (s *Snapshot) Node(h probe.Handle) (Node, bool) {
	i := int(h)
	if i < 0 || i >= len(s.Nodes) {
		return Node{}, false
	}
	return s.Nodes[i], true
}

func (s *Snapshot) Enumerate(cat probe.Category) []probe.Handle {
	var found []Node
	for _, n := range s.Nodes {
		if n.Tag == string(cat) {
			found = append(found, n)
		}
	}
	slices.SortStableFunc(found, func(a, b Node) int { return a.Order - b.Order })

	out := make([]probe.Handle, len(found))
	for i, n := range found {
		out[i] = probe.Handle(n.ID)
	}
	return out
}

// HasGeometry reports whether any candidate element carries a non-empty
// box. Static parses only know inline geometry, so most of them have none.
func (s *Snapshot) HasGeometry() bool {
	for _, n := range s.Nodes {
		if n.Box != (probe.Box{}) && slices.Contains(probe.DefaultCategories, probe.Category(n.Tag)) {
			return true
		}
	}
	return false
}

func (s *Snapshot) IsVisible(h probe.Handle) bool {
	n, ok := s.Node(h)
	return ok && n.Visible
}

func (s *Snapshot) HasLayoutBox(h probe.Handle) bool {
	n, ok := s.Node(h)
	return ok && n.Layout
}

func (s *Snapshot) BackgroundColor(h probe.Handle) string {
	n, _ := s.Node(h)
	return n.Background
}

func (s *Snapshot) Body() (probe.Handle, bool) {
	if s.BodyID == NoNode || s.BodyID >= len(s.Nodes) {
		return 0, false
	}
	return probe.Handle(s.BodyID), true
}

func (s *Snapshot) BoundingBox(h probe.Handle) probe.Box {
	n, _ := s.Node(h)
	return n.Box
}

func (s *Snapshot) Attributes(h probe.Handle) []probe.Attribute {
	n, _ := s.Node(h)
	return n.Attrs
}

func (s *Snapshot) Text(h probe.Handle) string {
	n, _ := s.Node(h)
	return n.Text
}

func (s *Snapshot) Parent(h probe.Handle) (probe.Handle, bool) {
	n, ok := s.Node(h)
	if !ok || n.Parent == NoNode {
		return 0, false
	}
	return probe.Handle(n.Parent), true
}

func (s *Snapshot) Source(h probe.Handle) (string, bool) {
	n, _ := s.Node(h)
	return n.Src, n.Src != ""
}
