// Package report turns ranked candidates into a publishable scan report:
// one ranked list per selector kind plus the product-page verdict, with
// element text sanitized and rendered as a Markdown label.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/cartfinder/dom"
	"github.com/hazyhaar/cartfinder/selector"
)

// Report is the outcome of one scan of one page.
type Report struct {
	ID          string        `json:"id"`
	URL         string        `json:"url"`
	Mode        string        `json:"mode"`
	ProductPage bool          `json:"product_page"`
	Kinds       []KindResult  `json:"kinds"`
	Elapsed     time.Duration `json:"elapsed_ns"`
	CreatedAt   time.Time     `json:"created_at"`
}

// KindResult holds the ranking for one selector kind.
type KindResult struct {
	Kind    selector.Kind `json:"kind"`
	Entries []Entry       `json:"entries"`
	// Unavailable is set when the snapshot cannot support this kind, so
	// an empty Entries is not a verdict.
	Unavailable string `json:"unavailable,omitempty"`
}

// UnavailableNoGeometry marks a kind that relies on layout features
// ranked on a snapshot without geometry.
const UnavailableNoGeometry = "no layout geometry in snapshot"

// Entry is one ranked element.
type Entry struct {
	Rank     int                `json:"rank"`
	Score    float64            `json:"score"`
	Tag      string             `json:"tag"`
	Text     string             `json:"text,omitempty"`
	Label    string             `json:"label,omitempty"`
	XPath    string             `json:"xpath,omitempty"`
	Features map[string]float64 `json:"features,omitempty"`
}

// Unavailable returns the reason kind could not be ranked, if any.
func (r *Report) Unavailable(kind selector.Kind) string {
	for _, k := range r.Kinds {
		if k.Kind == kind {
			return k.Unavailable
		}
	}
	return ""
}

// Best returns the top entry for kind, if any.
func (r *Report) Best(kind selector.Kind) (Entry, bool) {
	for _, k := range r.Kinds {
		if k.Kind == kind && len(k.Entries) > 0 {
			return k.Entries[0], true
		}
	}
	return Entry{}, false
}

// Fingerprint identifies the top candidate of every kind. Two reports of
// the same page with equal fingerprints picked the same elements.
func (r *Report) Fingerprint() string {
	var sb strings.Builder
	for _, k := range r.Kinds {
		sb.WriteString(string(k.Kind))
		sb.WriteByte('=')
		if len(k.Entries) > 0 {
			sb.WriteString(k.Entries[0].XPath)
		}
		sb.WriteByte(';')
	}
	return sb.String()
}

// Builder ranks snapshots and assembles reports. It is safe for
// concurrent use.
type Builder struct {
	finder *selector.Finder
	strict *bluemonday.Policy
	ugc    *bluemonday.Policy
	md     *converter.Converter
	// Limit caps the entries kept per kind; 0 keeps all.
	Limit int
}

// NewBuilder returns a Builder ranking with finder.
func NewBuilder(finder *selector.Finder) *Builder {
	return &Builder{
		finder: finder,
		strict: bluemonday.StrictPolicy(),
		ugc:    bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

// Build ranks snap for each kind. id and mode are recorded as given.
func (b *Builder) Build(snap *dom.Snapshot, id, mode string, kinds []selector.Kind) (*Report, error) {
	start := time.Now()
	if len(kinds) == 0 {
		kinds = selector.Kinds
	}

	r := &Report{
		ID:          id,
		URL:         snap.URL,
		Mode:        mode,
		ProductPage: b.finder.IsLikelyProductPage(snap),
		CreatedAt:   start.UTC(),
	}
	for _, kind := range kinds {
		res, err := b.finder.PossibleButtons(snap, kind)
		if err != nil {
			return nil, fmt.Errorf("report: %w", err)
		}
		if b.Limit > 0 && len(res) > b.Limit {
			res = res[:b.Limit]
		}

		kr := KindResult{Kind: kind, Entries: make([]Entry, 0, len(res))}
		if !snap.HasGeometry() {
			if needs, _ := b.finder.NeedsGeometry(kind); needs {
				kr.Unavailable = UnavailableNoGeometry
			}
		}
		for i, c := range res {
			n, _ := snap.Node(c.Element)
			kr.Entries = append(kr.Entries, Entry{
				Rank:     i + 1,
				Score:    c.Score,
				Tag:      n.Tag,
				Text:     b.Text(n.Text),
				Label:    b.Label(n, snap.URL),
				XPath:    n.XPath,
				Features: c.Features,
			})
		}
		r.Kinds = append(r.Kinds, kr)
	}
	r.Elapsed = time.Since(start)
	return r, nil
}

// Text strips all markup from s and collapses whitespace.
func (b *Builder) Text(s string) string {
	return strings.Join(strings.Fields(b.strict.Sanitize(s)), " ")
}

// Label renders the element's HTML snippet as single-line Markdown,
// falling back to its text.
func (b *Builder) Label(n dom.Node, pageURL string) string {
	if n.HTML == "" {
		return b.Text(n.Text)
	}
	clean := b.ugc.Sanitize(n.HTML)
	md, err := b.md.ConvertString(clean, converter.WithDomain(pageURL))
	if err != nil || strings.TrimSpace(md) == "" {
		return b.Text(n.Text)
	}
	return strings.Join(strings.Fields(md), " ")
}
