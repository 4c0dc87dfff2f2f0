package mcpserver

import (
	"context"
	"errors"
	"testing"

	"ShopSage/internal/modules/assistant/application/dto/request"
	"ShopSage/internal/modules/assistant/application/dto/respond"
	"ShopSage/internal/modules/assistant/infrastructure/graphdb"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAsk struct{ err error }

func (f fakeAsk) Ask(ctx context.Context, req request.AskRequest) (*respond.AskRespond, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &respond.AskRespond{Question: req.Question, Answer: "answer to " + req.Question}, nil
}

func (fakeAsk) Test(ctx context.Context) (*respond.TestRespond, error) { return nil, nil }
func (fakeAsk) Memory() *respond.MemoryRespond                          { return nil }

type fakeGraph struct{ blocks []string }

func (fakeGraph) Rebuild(ctx context.Context) (*respond.GraphRebuildRespond, error) { return nil, nil }

func (f fakeGraph) Search(ctx context.Context, q string) (*respond.GraphSearchRespond, error) {
	return &respond.GraphSearchRespond{Intent: graphdb.Classify(q), Blocks: f.blocks}, nil
}

func call(args any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestHandleAsk(t *testing.T) {
	h := NewToolHandler(fakeAsk{}, fakeGraph{})
	res, err := h.handleAsk(context.Background(), call(map[string]any{"question": " price of rice? "}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "answer to price of rice?", text(t, res))

	res, err = h.handleAsk(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = h.handleAsk(context.Background(), call("not a map"))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = NewToolHandler(fakeAsk{err: errors.New("generation failure")}, nil).
		handleAsk(context.Background(), call(map[string]any{"question": "q"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleSearchGraph(t *testing.T) {
	h := NewToolHandler(nil, fakeGraph{blocks: []string{"Shop: Test Shop"}})
	res, err := h.handleSearchGraph(context.Background(), call(map[string]any{"question": "test shop"}))
	require.NoError(t, err)
	out := text(t, res)
	assert.Contains(t, out, string(graphdb.IntentShop))
	assert.Contains(t, out, "Shop: Test Shop")

	res, err = NewToolHandler(nil, fakeGraph{}).handleSearchGraph(context.Background(), call(map[string]any{"question": "rice"}))
	require.NoError(t, err)
	assert.Equal(t, "No product_search matches found.", text(t, res))
}

func TestNewServer(t *testing.T) {
	assert.NotNil(t, NewServer(ServerConfig{Name: "shopsage", Version: "test"}, fakeAsk{}, fakeGraph{}))
	assert.NotNil(t, NewServer(ServerConfig{Name: "shopsage", Version: "test"}, nil, nil))
}
