package cartfinder

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testImpl = &mcp.Implementation{Name: "cartfinder-test", Version: "0.1.0"}

// mcpSession registers the tools on a fresh server and returns a connected
// client session.
func mcpSession(t *testing.T) (*fixture, *mcp.ClientSession) {
	t.Helper()
	f := newFixture(t, nil, nil)

	srv := mcp.NewServer(testImpl, nil)
	f.svc.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() {
		_ = srv.Run(ctx, serverT)
	}()

	client := mcp.NewClient(testImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return f, session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) (string, bool) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	return tc.Text, result.IsError
}

func TestMCP_ListTools(t *testing.T) {
	_, session := mcpSession(t)
	res, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	names := map[string]bool{}
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"cartfinder_find_button", "cartfinder_product_page", "cartfinder_history"} {
		if !names[want] {
			t.Errorf("missing tool %s", want)
		}
	}
}

func TestMCP_FindButton(t *testing.T) {
	_, session := mcpSession(t)

	text, isErr := callTool(t, session, "cartfinder_find_button", map[string]any{
		"html": productHTML,
		"url":  "https://shop.test/p/1",
		"kind": "checkout",
	})
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	var resp findButtonResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Found || resp.Best != nil {
		t.Fatalf("checkout should not be found: %+v", resp)
	}

	text, _ = callTool(t, session, "cartfinder_find_button", map[string]any{
		"html": productHTML,
		"kind": "add_to_cart",
		"all":  true,
	})
	resp = findButtonResponse{}
	json.Unmarshal([]byte(text), &resp)
	if !resp.Found || resp.Best.Text != "Add to Cart" || resp.Best.XPath == "" {
		t.Fatalf("add to cart: %+v", resp)
	}
	if len(resp.Candidates) == 0 {
		t.Fatal("expected candidates with all=true")
	}
}

func TestMCP_FindButton_BadKind(t *testing.T) {
	_, session := mcpSession(t)
	text, isErr := callTool(t, session, "cartfinder_find_button", map[string]any{
		"html": productHTML,
		"kind": "wishlist",
	})
	if !isErr || !strings.Contains(text, "unknown kind") {
		t.Fatalf("expected unknown kind error, got %q (error=%v)", text, isErr)
	}
}

func TestMCP_ProductPage(t *testing.T) {
	_, session := mcpSession(t)
	text, isErr := callTool(t, session, "cartfinder_product_page", map[string]any{"html": productHTML})
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	var resp productPageResponse
	json.Unmarshal([]byte(text), &resp)
	if !resp.ProductPage || resp.AddToCart == nil {
		t.Fatalf("response: %+v", resp)
	}
}

func TestMCP_History(t *testing.T) {
	_, session := mcpSession(t)
	callTool(t, session, "cartfinder_product_page", map[string]any{"html": productHTML, "url": "https://shop.test/p/9"})

	text, isErr := callTool(t, session, "cartfinder_history", map[string]any{"url": "https://shop.test/p/9"})
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	var list struct {
		Scans []struct {
			ID string `json:"id"`
		} `json:"scans"`
	}
	json.Unmarshal([]byte(text), &list)
	if len(list.Scans) != 1 {
		t.Fatalf("history: %s", text)
	}

	text, isErr = callTool(t, session, "cartfinder_history", map[string]any{"id": list.Scans[0].ID})
	if isErr || !strings.Contains(text, `"product_page":true`) {
		t.Fatalf("report: %s", text)
	}

	text, isErr = callTool(t, session, "cartfinder_history", map[string]any{"id": "missing"})
	if !isErr || !strings.Contains(text, "not found") {
		t.Fatalf("missing: %s", text)
	}
}
