package fetcher

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/cartfinder/dom"
	"github.com/hazyhaar/cartfinder/probe"
)

// spaIndicators mark an empty client-rendered shell.
var spaIndicators = [][]byte{
	[]byte(`<div id="root"></div>`),
	[]byte(`<div id="app"></div>`),
	[]byte(`<div id="__next"></div>`),
	[]byte(`<noscript>you need to enable javascript`),
	[]byte(`<noscript>enable javascript`),
}

// IsSufficient reports whether a static parse of the page is good enough
// to rank, so that no browser is needed. The page must carry some visible
// text relative to its markup, must not be a known SPA shell, and must
// expose at least one clickable control.
func IsSufficient(body []byte, snap *dom.Snapshot) bool {
	if len(body) < 256 {
		return false
	}

	lower := bytes.ToLower(body)
	for _, ind := range spaIndicators {
		if bytes.Contains(lower, ind) {
			return false
		}
	}

	text, markup := textMarkupRatio(body)
	total := text + markup
	if total == 0 || text < 100 {
		return false
	}
	if float64(text)/float64(total) < 0.05 {
		return false
	}

	return snap != nil && hasControls(snap)
}

func hasControls(snap *dom.Snapshot) bool {
	return len(snap.Enumerate(probe.CategoryButton)) > 0 ||
		len(snap.Enumerate(probe.CategoryInput)) > 0
}

// textMarkupRatio counts non-whitespace text bytes against everything
// else. Script and style contents count as markup.
func textMarkupRatio(body []byte) (text, markup int) {
	z := html.NewTokenizer(bytes.NewReader(body))
	var raw int
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return text, markup
		}
		tok := z.Raw()
		switch tt {
		case html.StartTagToken:
			name, _ := z.TagName()
			if n := string(name); n == "script" || n == "style" {
				raw++
			}
			markup += len(tok)
		case html.EndTagToken:
			name, _ := z.TagName()
			if n := string(name); (n == "script" || n == "style") && raw > 0 {
				raw--
			}
			markup += len(tok)
		case html.TextToken:
			if raw > 0 {
				markup += len(tok)
				continue
			}
			n := len(strings.Join(strings.Fields(string(tok)), ""))
			text += n
			markup += len(tok) - n
		default:
			markup += len(tok)
		}
	}
}
