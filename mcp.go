package cartfinder

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/cartfinder/kit"
	"github.com/hazyhaar/cartfinder/report"
	"github.com/hazyhaar/cartfinder/selector"
	"github.com/hazyhaar/cartfinder/store"
)

// RegisterMCP registers the cartfinder tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerFindButtonTool(srv)
	s.registerProductPageTool(srv)
	s.registerHistoryTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	sc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sc["required"] = required
	}
	return sc
}

var pageProperties = map[string]any{
	"url":  map[string]any{"type": "string", "description": "Page URL to scan (base URL when html is given)"},
	"html": map[string]any{"type": "string", "description": "Raw HTML to rank instead of fetching the URL"},
	"mode": map[string]any{"type": "string", "enum": []any{"static", "browser", "auto"}, "description": "Acquisition mode (default from config)"},
}

func (s *Service) endpoint(name string, ep kit.Endpoint) kit.Endpoint {
	return kit.Chain(kit.Logging(s.logger, name))(ep)
}

// --- find_button ---

type findButtonRequest struct {
	ScanRequest
	Kind string `json:"kind"`
	All  bool   `json:"all,omitempty"`
}

type findButtonResponse struct {
	ScanID     string         `json:"scan_id"`
	URL        string         `json:"url"`
	Kind       selector.Kind  `json:"kind"`
	Found      bool           `json:"found"`
	Best       *report.Entry  `json:"best,omitempty"`
	Candidates []report.Entry `json:"candidates,omitempty"`
}

func (s *Service) registerFindButtonTool(srv *mcp.Server) {
	props := map[string]any{
		"kind": map[string]any{"type": "string", "enum": []any{"add_to_cart", "cart", "checkout"}, "description": "Which button to find"},
		"all":  map[string]any{"type": "boolean", "description": "Return every qualifying candidate, best first"},
	}
	for k, v := range pageProperties {
		props[k] = v
	}
	tool := &mcp.Tool{
		Name:        "cartfinder_find_button",
		Description: "Find the add-to-cart, cart or checkout button of a page. Returns the best candidate with its XPath, score and feature breakdown.",
		InputSchema: inputSchema(props, []string{"kind"}),
	}

	ep := s.endpoint("find_button", func(ctx context.Context, req any) (any, error) {
		r := req.(*findButtonRequest)
		kind, err := selector.ParseKind(r.Kind)
		if err != nil {
			return nil, err
		}
		r.Kinds = []string{string(kind)}
		rep, err := s.Scan(ctx, r.ScanRequest)
		if err != nil {
			return nil, err
		}

		resp := findButtonResponse{ScanID: rep.ID, URL: rep.URL, Kind: kind}
		if best, ok := rep.Best(kind); ok {
			resp.Found = true
			resp.Best = &best
		}
		if r.All && len(rep.Kinds) > 0 {
			resp.Candidates = rep.Kinds[0].Entries
		}
		return resp, nil
	})

	kit.RegisterMCPTool(srv, tool, ep, kit.DecodeJSON[findButtonRequest]())
}

// --- product_page ---

type productPageResponse struct {
	ScanID      string        `json:"scan_id"`
	URL         string        `json:"url"`
	ProductPage bool          `json:"product_page"`
	AddToCart   *report.Entry `json:"add_to_cart,omitempty"`
}

func (s *Service) registerProductPageTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "cartfinder_product_page",
		Description: "Decide whether a page is a product page: true when it has one distinguishable add-to-cart button.",
		InputSchema: inputSchema(pageProperties, nil),
	}

	ep := s.endpoint("product_page", func(ctx context.Context, req any) (any, error) {
		r := req.(*ScanRequest)
		r.Kinds = []string{string(selector.KindAddToCart)}
		rep, err := s.Scan(ctx, *r)
		if err != nil {
			return nil, err
		}
		resp := productPageResponse{ScanID: rep.ID, URL: rep.URL, ProductPage: rep.ProductPage}
		if best, ok := rep.Best(selector.KindAddToCart); ok {
			resp.AddToCart = &best
		}
		return resp, nil
	})

	kit.RegisterMCPTool(srv, tool, ep, kit.DecodeJSON[ScanRequest]())
}

// --- history ---

type historyRequest struct {
	ID    string `json:"id,omitempty"`
	URL   string `json:"url,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

func (s *Service) registerHistoryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "cartfinder_history",
		Description: "List past scans (newest first), optionally for one URL, or fetch one full report by id.",
		InputSchema: inputSchema(map[string]any{
			"id":    map[string]any{"type": "string", "description": "Scan ID; returns the full report"},
			"url":   map[string]any{"type": "string", "description": "Only scans of this URL"},
			"limit": map[string]any{"type": "integer", "description": "Max results (default 50)"},
		}, nil),
	}

	ep := s.endpoint("history", func(ctx context.Context, req any) (any, error) {
		r := req.(*historyRequest)
		if r.ID != "" {
			rep, err := s.Report(ctx, r.ID)
			if err != nil {
				return nil, fmt.Errorf("scan %s: %w", r.ID, err)
			}
			return rep, nil
		}
		list, err := s.History(ctx, store.Filter{URL: r.URL, Limit: r.Limit})
		if err != nil {
			return nil, err
		}
		return map[string]any{"scans": list}, nil
	})

	kit.RegisterMCPTool(srv, tool, ep, kit.DecodeJSON[historyRequest]())
}
