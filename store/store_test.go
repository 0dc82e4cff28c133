package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/cartfinder/report"
	"github.com/hazyhaar/cartfinder/selector"
)

func sampleReport(id, url string, at time.Time) *report.Report {
	return &report.Report{
		ID:          id,
		URL:         url,
		Mode:        "static",
		ProductPage: true,
		CreatedAt:   at,
		Kinds: []report.KindResult{
			{Kind: selector.KindAddToCart, Entries: []report.Entry{
				{Rank: 1, Score: 0.9, Tag: "button", Text: "Add to cart", XPath: "/html/body/button"},
			}},
			{Kind: selector.KindCart, Entries: []report.Entry{}},
		},
	}
}

func TestInsertGet(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := s.Insert(ctx, sampleReport("scan-1", "https://shop.test/p", at)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.Get(ctx, "scan-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.URL != "https://shop.test/p" || !got.ProductPage {
		t.Fatalf("report: %+v", got)
	}
	e, ok := got.Best(selector.KindAddToCart)
	if !ok || e.Text != "Add to cart" || e.Score != 0.9 {
		t.Fatalf("entry: %+v ok=%v", e, ok)
	}
	if !got.CreatedAt.Equal(at) {
		t.Fatalf("created_at: got %v, want %v", got.CreatedAt, at)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := OpenMemory(t)
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestInsert_Duplicate(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()
	r := sampleReport("dup", "https://shop.test/", time.Now())
	if err := s.Insert(ctx, r); err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(ctx, r); err == nil {
		t.Fatal("expected primary key violation")
	}
}

func TestInsert_EmptyID(t *testing.T) {
	s := OpenMemory(t)
	if err := s.Insert(context.Background(), sampleReport("", "u", time.Now())); err == nil {
		t.Fatal("expected error")
	}
}

func TestList(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	s.Insert(ctx, sampleReport("a", "https://one.test/", base))
	s.Insert(ctx, sampleReport("b", "https://two.test/", base.Add(time.Minute)))
	s.Insert(ctx, sampleReport("c", "https://one.test/", base.Add(2*time.Minute)))

	all, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" || all[2].ID != "a" {
		t.Fatalf("order: %+v", all)
	}
	if all[0].BestAdd != "/html/body/button" || all[0].BestCart != "" {
		t.Fatalf("best columns: %+v", all[0])
	}

	one, err := s.List(ctx, Filter{URL: "https://one.test/", Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(one) != 1 || one[0].ID != "c" {
		t.Fatalf("filtered: %+v", one)
	}

	none, err := s.List(ctx, Filter{URL: "https://none.test/"})
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("empty: %+v %v", none, err)
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "scans.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	if err := s.Insert(context.Background(), sampleReport("f", "u", time.Now())); err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func TestIsBusy(t *testing.T) {
	if isBusy(nil) || isBusy(errors.New("constraint failed")) {
		t.Fatal("false positive")
	}
	if !isBusy(errors.New("database is locked (5) (SQLITE_BUSY)")) {
		t.Fatal("false negative")
	}
}
