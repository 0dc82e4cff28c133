package dom

import "github.com/hazyhaar/cartfinder/probe"

// Builder assembles a Snapshot node by node in document order. It is
// meant for tests and for adapters that already walk a tree.
type Builder struct {
	snap Snapshot
}

// NewBuilder returns an empty Builder for pageURL.
func NewBuilder(pageURL string) *Builder {
	return &Builder{snap: Snapshot{URL: pageURL, BodyID: NoNode}}
}

// Add appends n under parent (NoNode for a root) and returns its handle.
// ID, Parent and Order are assigned; a "body" tag becomes the body if none
// is set yet.
func (b *Builder) Add(parent int, n Node) probe.Handle {
	n.ID = len(b.snap.Nodes)
	n.Parent = parent
	n.Order = n.ID
	b.snap.Nodes = append(b.snap.Nodes, n)
	if n.Tag == "body" && b.snap.BodyID == NoNode {
		b.snap.BodyID = n.ID
	}
	return probe.Handle(n.ID)
}

// Snapshot returns the built snapshot. The Builder must not be reused.
func (b *Builder) Snapshot() *Snapshot {
	s := b.snap
	return &s
}

// Attrs builds an attribute list from name/value pairs.
func Attrs(kv ...string) []probe.Attribute {
	out := make([]probe.Attribute, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, probe.Attribute{Name: kv[i], Value: kv[i+1]})
	}
	return out
}
