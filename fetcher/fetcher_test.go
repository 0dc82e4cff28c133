package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/cartfinder/dom"
	"github.com/hazyhaar/cartfinder/probe"
)

const productPage = `<!DOCTYPE html>
<html>
<head><title>Blue Kettle</title><style>.x{color:red}</style></head>
<body>
<main>
<h1>Blue Kettle 1.7L</h1>
<p>Our best-selling kettle boils water in under three minutes and switches off automatically. Stainless steel body, cool-touch handle, removable limescale filter and a two-year warranty make it a kitchen staple.</p>
<button type="button" style="width: 200px; height: 40px">Add to cart</button>
</main>
</body>
</html>`

const spaShell = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Shop</title></head>
<body>
<div id="root"></div>
<script src="/static/js/main.chunk.js"></script>
<script>window.__STATE__ = {"items": [1, 2, 3], "filler": "................................................................"}</script>
</body>
</html>`

func parse(t *testing.T, s string) *dom.Snapshot {
	t.Helper()
	snap, err := dom.ParseHTML([]byte(s), "https://shop.test/")
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func TestIsSufficient_ProductPage(t *testing.T) {
	if !IsSufficient([]byte(productPage), parse(t, productPage)) {
		t.Error("expected sufficient for static product page")
	}
}

func TestIsSufficient_SPAShell(t *testing.T) {
	if IsSufficient([]byte(spaShell), parse(t, spaShell)) {
		t.Error("expected insufficient for SPA shell")
	}
}

func TestIsSufficient_NoControls(t *testing.T) {
	page := strings.Replace(productPage, `<button type="button" style="width: 200px; height: 40px">Add to cart</button>`, "", 1)
	if IsSufficient([]byte(page), parse(t, page)) {
		t.Error("expected insufficient without any button")
	}
}

func TestIsSufficient_TooShort(t *testing.T) {
	page := `<html><body><button>hi</button></body></html>`
	if IsSufficient([]byte(page), parse(t, page)) {
		t.Error("expected insufficient for very short content")
	}
}

func TestTextMarkupRatio(t *testing.T) {
	text, markup := textMarkupRatio([]byte(`<div>Hello World</div><script>var a = 1;</script>`))
	if text != len("HelloWorld") {
		t.Errorf("text: got %d, want %d", text, len("HelloWorld"))
	}
	if markup == 0 {
		t.Error("expected non-zero markup count")
	}
}

func TestFetch(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(productPage))
	}))
	defer srv.Close()

	f := New(WithUserAgent("test-agent"))
	res, err := f.Fetch(context.Background(), srv.URL+"/p/1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if ua != "test-agent" {
		t.Errorf("user agent: got %q", ua)
	}
	if res.StatusCode != http.StatusOK || !res.Sufficient {
		t.Fatalf("result: %+v", res)
	}
	if res.Snapshot.URL != srv.URL+"/p/1" {
		t.Fatalf("snapshot url: %q", res.Snapshot.URL)
	}
	if n := len(res.Snapshot.Enumerate(probe.CategoryButton)); n != 1 {
		t.Fatalf("buttons: got %d", n)
	}
}

func TestFetch_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	if _, err := New().Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404")
	}
}
