// Package store keeps the history of scan reports in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/cartfinder/report"
	"github.com/hazyhaar/cartfinder/selector"
)

// ErrNotFound is returned when no scan has the requested ID.
var ErrNotFound = errors.New("store: scan not found")

// Schema is the DDL for the scan history.
const Schema = `
CREATE TABLE IF NOT EXISTS scans (
	id            TEXT PRIMARY KEY,
	url           TEXT NOT NULL,
	mode          TEXT NOT NULL,
	product_page  INTEGER NOT NULL DEFAULT 0,
	best_add      TEXT NOT NULL DEFAULT '',
	best_cart     TEXT NOT NULL DEFAULT '',
	best_checkout TEXT NOT NULL DEFAULT '',
	report        TEXT NOT NULL,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scans_url ON scans(url, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_scans_created ON scans(created_at DESC);
`

// Store is the scan history database handle.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path.
func Open(path string) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Summary is a scan row without its full report.
type Summary struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Mode         string    `json:"mode"`
	ProductPage  bool      `json:"product_page"`
	BestAdd      string    `json:"best_add,omitempty"`
	BestCart     string    `json:"best_cart,omitempty"`
	BestCheckout string    `json:"best_checkout,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Filter narrows List.
type Filter struct {
	URL   string
	Limit int
}

// Insert stores a report. The report ID must be set.
func (s *Store) Insert(ctx context.Context, r *report.Report) error {
	if r.ID == "" {
		return fmt.Errorf("store: insert: empty id")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}

	err = exec(ctx, s.db, `
		INSERT INTO scans
			(id, url, mode, product_page, best_add, best_cart, best_checkout, report, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		r.ID, r.URL, r.Mode, boolInt(r.ProductPage),
		bestXPath(r, selector.KindAddToCart), bestXPath(r, selector.KindCart), bestXPath(r, selector.KindCheckout),
		string(data), r.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store: insert %s: %w", r.ID, err)
	}
	return nil
}

// Get returns the full report of a scan.
func (s *Store) Get(ctx context.Context, id string) (*report.Report, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT report FROM scans WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", id, err)
	}

	var r report.Report
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", id, err)
	}
	return &r, nil
}

// List returns scan summaries, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Summary, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	query := `SELECT id, url, mode, product_page, best_add, best_cart, best_checkout, created_at FROM scans`
	var args []any
	if f.URL != "" {
		query += ` WHERE url = ?`
		args = append(args, f.URL)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, f.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var sm Summary
		var product int
		var created int64
		if err := rows.Scan(&sm.ID, &sm.URL, &sm.Mode, &product,
			&sm.BestAdd, &sm.BestCart, &sm.BestCheckout, &created); err != nil {
			return nil, fmt.Errorf("store: list scan: %w", err)
		}
		sm.ProductPage = product != 0
		sm.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, sm)
	}
	return out, rows.Err()
}

func bestXPath(r *report.Report, kind selector.Kind) string {
	e, ok := r.Best(kind)
	if !ok {
		return ""
	}
	return e.XPath
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
