package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/cartfinder/selector"
)

func TestDefaults(t *testing.T) {
	c := Default()
	if c.Listen != ":8086" || c.Mode != ModeAuto || c.DB == "" {
		t.Fatalf("defaults: %+v", c)
	}
	if c.Watch.Debounce != 500*time.Millisecond || c.Browser.NavTimeout != 30*time.Second {
		t.Fatalf("durations: %+v %+v", c.Watch, c.Browser)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	yml := `
listen: ":9000"
mode: static
watch:
  interval: 5s
browser:
  stealth: headful
  resource_blocking: [images]
kinds:
  cart:
    threshold: 0.4
    weights:
      text_match: 0.5
      in_header: 0.5
sinks:
  - type: stdout
  - type: webhook
    url: https://hooks.test/x
`
	path := filepath.Join(t.TempDir(), "cartfinder.yaml")
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Listen != ":9000" || c.Mode != ModeStatic {
		t.Fatalf("top level: %+v", c)
	}
	if c.Watch.Interval != 5*time.Second || c.Watch.Debounce != 500*time.Millisecond {
		t.Fatalf("watch: %+v", c.Watch)
	}
	if len(c.Browser.ResourceBlocking) != 1 || c.Browser.Stealth != "headful" {
		t.Fatalf("browser: %+v", c.Browser)
	}
	if len(c.Sinks) != 2 || c.Sinks[1].URL != "https://hooks.test/x" {
		t.Fatalf("sinks: %+v", c.Sinks)
	}

	opts, err := c.SelectorOptions()
	if err != nil || len(opts) != 1 {
		t.Fatalf("options: %d %v", len(opts), err)
	}
	f, err := selector.New(opts...)
	if err != nil {
		t.Fatalf("finder: %v", err)
	}
	if f == nil {
		t.Fatal("nil finder")
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"mode":         "mode: turbo",
		"stealth":      "browser: {stealth: invisible}",
		"unknown kind": "kinds: {wishlist: {threshold: 0.2}}",
		"weight sum":   "kinds: {checkout: {weights: {text_match: 0.3}}}",
		"feature":      "kinds: {checkout: {weights: {sparkle: 1.0}}}",
		"pattern":      "kinds: {add_to_cart: {pattern: \"(unclosed\"}}",
		"yaml":         "listen: [",
	}
	for name, yml := range cases {
		if _, err := Parse([]byte(yml)); err == nil {
			t.Errorf("%s: expected error", name)
		} else if !strings.HasPrefix(err.Error(), "config: ") {
			t.Errorf("%s: error not prefixed: %v", name, err)
		}
	}
}

func TestKindOverride_RequireLayout(t *testing.T) {
	off := false
	spec := KindOverride{RequireLayout: &off}.apply(selector.DefaultSpecs()[selector.KindAddToCart])
	if spec.RequireLayout {
		t.Fatal("require_layout override ignored")
	}
	if spec.Pattern != selector.AddToCartPattern {
		t.Fatal("pattern should keep default")
	}
}

func TestKindOverride_ZeroThreshold(t *testing.T) {
	c, err := Parse([]byte("kinds: {checkout: {threshold: 0}, cart: {pattern: basket}}"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	defaults := selector.DefaultSpecs()
	if got := c.Kinds["checkout"].apply(defaults[selector.KindCheckout]).Threshold; got != 0 {
		t.Fatalf("explicit zero threshold: got %v", got)
	}
	if got := c.Kinds["cart"].apply(defaults[selector.KindCart]).Threshold; got != defaults[selector.KindCart].Threshold {
		t.Fatalf("omitted threshold: got %v", got)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}
