package cartfinder

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/cartfinder/kit"
	"github.com/hazyhaar/cartfinder/selector"
	"github.com/hazyhaar/cartfinder/shield"
	"github.com/hazyhaar/cartfinder/store"
)

// maxHTMLUpload caps a raw HTML body posted to /api/scan.
const maxHTMLUpload = 10 << 20

// Routes returns the HTTP API:
//
//	GET  /health
//	POST /api/scan          JSON ScanRequest, or a text/html body with ?url=&kind=&kind=
//	GET  /api/scans         ?url=&limit=
//	GET  /api/scans/{id}
func (s *Service) Routes() chi.Router {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultAPIStack(s.logger) {
		r.Use(mw)
	}

	scan := s.endpoint("scan", func(ctx context.Context, req any) (any, error) {
		return s.Scan(ctx, req.(ScanRequest))
	})
	history := s.endpoint("history", func(ctx context.Context, req any) (any, error) {
		return s.History(ctx, req.(store.Filter))
	})
	get := s.endpoint("report", func(ctx context.Context, req any) (any, error) {
		return s.Report(ctx, req.(string))
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/scan", handleScan(scan))

	r.Get("/api/scans", func(w http.ResponseWriter, r *http.Request) {
		list, err := history(r.Context(), store.Filter{
			URL:   r.URL.Query().Get("url"),
			Limit: queryInt(r, "limit", 50),
		})
		if err != nil {
			writeError(w, statusOf(err), err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	})

	r.Get("/api/scans/{id}", func(w http.ResponseWriter, r *http.Request) {
		rep, err := get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, statusOf(err), err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	})

	return r
}

// handleScan decodes a JSON ScanRequest or a raw text/html body.
func handleScan(scan kit.Endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScanRequest
		if strings.HasPrefix(r.Header.Get("Content-Type"), "text/html") {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxHTMLUpload))
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			q := r.URL.Query()
			req = ScanRequest{URL: q.Get("url"), HTML: string(body), Kinds: q["kind"]}
		} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		rep, err := scan(r.Context(), req)
		if err != nil {
			shield.GetLogger(r.Context()).Warn("cartfinder: scan failed", "url", req.URL, "error", err)
			writeError(w, statusOf(err), err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrNoInput), errors.Is(err, ErrBadMode), errors.Is(err, selector.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNoHistory):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrAcquire):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
