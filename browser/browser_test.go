package browser

import (
	"strings"
	"testing"
)

func TestShouldBlock(t *testing.T) {
	set := map[string]bool{"images": true, "fonts": true, "xhr": true}
	cases := map[string]bool{
		"Image":      true,
		"Font":       true,
		"Stylesheet": false,
		"Media":      false,
		"XHR":        true,
		"Document":   false,
	}
	for typ, want := range cases {
		if got := shouldBlock(set, typ); got != want {
			t.Errorf("%s: got %v, want %v", typ, got, want)
		}
	}
}

func TestParseStealth(t *testing.T) {
	if l, err := ParseStealth(""); err != nil || l != LevelHeadless {
		t.Fatalf("default: %v %v", l, err)
	}
	if l, err := ParseStealth("headful"); err != nil || l != LevelHeadful {
		t.Fatalf("headful: %v %v", l, err)
	}
	if _, err := ParseStealth("ghost"); err == nil {
		t.Fatal("expected error")
	}
}

func TestManager_Closed(t *testing.T) {
	m := NewManager(Config{})
	m.Close()
	if _, err := m.Browser(); err == nil {
		t.Fatal("expected error from closed manager")
	}
}

func TestCaptureScriptShape(t *testing.T) {
	if captureJS == "" || mutationsJS == "" {
		t.Fatal("embedded scripts missing")
	}
	// SVG elements have no offsetParent property at all.
	if strings.Contains(captureJS, "offsetParent !== null") || !strings.Contains(captureJS, "offsetParent != null") {
		t.Fatal("layout check must treat an undefined offsetParent as no layout box")
	}
}
