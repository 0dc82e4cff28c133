package dom

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/cartfinder/probe"
)

// transparent is what getComputedStyle reports for an unset background.
const transparent = "rgba(0, 0, 0, 0)"

// maxSnippet caps the outerHTML kept per candidate.
const maxSnippet = 512

var colorTokenRe = regexp.MustCompile(`rgba?\([^)]*\)|#[0-9a-fA-F]{3,6}\b|\btransparent\b`)

// ParseHTML builds a Snapshot from static markup. There is no layout
// engine behind it, so geometry and colors come from inline styles and
// width/height attributes only; elements without them have an empty box
// and a transparent background. Text is kept for candidate tags only.
func ParseHTML(data []byte, pageURL string) (*Snapshot, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("dom: parse html: %w", err)
	}

	base, _ := url.Parse(pageURL)
	p := &parser{
		b:    NewBuilder(pageURL),
		base: base,
		text: make(map[string]bool),
	}
	for _, c := range probe.DefaultCategories {
		p.text[string(c)] = true
	}

	p.walk(doc, NoNode, inherited{})
	return p.b.Snapshot(), nil
}

type parser struct {
	b    *Builder
	base *url.URL
	text map[string]bool
}

// inherited carries the ancestor state that affects rendering.
type inherited struct {
	displayNone bool
	invisible   bool
}

func (p *parser) walk(n *html.Node, parent int, in inherited) {
	if n.Type != html.ElementNode && n.Type != html.DocumentNode {
		return
	}

	id := parent
	if n.Type == html.ElementNode {
		style := parseStyle(attr(n, "style"))

		if style["display"] == "none" || hasAttr(n, "hidden") || nonRendered(n) {
			in.displayNone = true
		}
		switch style["visibility"] {
		case "hidden", "collapse":
			in.invisible = true
		case "visible":
			in.invisible = false
		}

		node := Node{
			Tag:        n.Data,
			Attrs:      attrs(n),
			Visible:    !in.displayNone && !in.invisible,
			Layout:     !in.displayNone,
			Background: background(style),
			Box:        box(n, style),
			Src:        p.source(n),
			XPath:      xpath(n),
		}
		if p.text[n.Data] {
			node.Text = innerText(n)
			node.HTML = snippet(n)
		}
		id = int(p.b.Add(parent, node))
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c, id, in)
	}
}

func nonRendered(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Head, atom.Script, atom.Style, atom.Template, atom.Noscript:
		return true
	case atom.Input:
		return strings.EqualFold(attr(n, "type"), "hidden")
	}
	return false
}

func (p *parser) source(n *html.Node) string {
	switch n.DataAtom {
	case atom.Img, atom.Input, atom.Iframe, atom.Video, atom.Audio, atom.Source, atom.Embed, atom.Script:
	default:
		return ""
	}
	src := strings.TrimSpace(attr(n, "src"))
	if src == "" {
		return ""
	}
	if p.base == nil {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return p.base.ResolveReference(ref).String()
}

func attrs(n *html.Node) []probe.Attribute {
	if len(n.Attr) == 0 {
		return nil
	}
	out := make([]probe.Attribute, len(n.Attr))
	for i, a := range n.Attr {
		out[i] = probe.Attribute{Name: a.Key, Value: a.Val}
	}
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// parseStyle splits an inline style declaration into lower-cased
// property/value pairs.
func parseStyle(s string) map[string]string {
	out := make(map[string]string)
	for _, decl := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "!important"))
		out[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(strings.TrimSpace(v))
	}
	return out
}

func background(style map[string]string) string {
	if c := style["background-color"]; c != "" {
		return c
	}
	if c := colorTokenRe.FindString(style["background"]); c != "" {
		return c
	}
	return transparent
}

func box(n *html.Node, style map[string]string) probe.Box {
	return probe.Box{
		X:      px(style["left"]),
		Y:      px(style["top"]),
		Width:  firstPx(style["width"], attr(n, "width")),
		Height: firstPx(style["height"], attr(n, "height")),
	}
}

func firstPx(vals ...string) float64 {
	for _, v := range vals {
		if f := px(v); f != 0 {
			return f
		}
	}
	return 0
}

// px reads "12px" or "12"; other units yield 0.
func px(v string) float64 {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

// innerText approximates the rendered text: hidden and non-rendered
// subtrees are skipped and whitespace is collapsed.
func innerText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		case html.ElementNode:
			if nonRendered(n) || hasAttr(n, "hidden") || parseStyle(attr(n, "style"))["display"] == "none" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func snippet(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	s := buf.String()
	if len(s) > maxSnippet {
		s = strings.ToValidUTF8(s[:maxSnippet], "")
	}
	return s
}

// xpath builds an index-qualified path like /html/body/div[2]/button.
func xpath(n *html.Node) string {
	var parts []string
	for node := n; node != nil && node.Type == html.ElementNode; node = node.Parent {
		idx := 0
		for sib := node.PrevSibling; sib != nil; sib = sib.PrevSibling {
			if sib.Type == html.ElementNode && sib.Data == node.Data {
				idx++
			}
		}
		part := node.Data
		if idx > 0 {
			part = fmt.Sprintf("%s[%d]", node.Data, idx+1)
		}
		parts = append(parts, part)
	}
	slices.Reverse(parts)
	return "/" + strings.Join(parts, "/")
}
