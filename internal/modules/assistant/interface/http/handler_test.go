package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ShopSage/internal/modules/assistant/application/dto/request"
	"ShopSage/internal/modules/assistant/application/dto/respond"
	"ShopSage/internal/modules/assistant/infrastructure/graphdb"
	"ShopSage/internal/modules/assistant/infrastructure/memory"
	"ShopSage/pkg/back"
	"ShopSage/pkg/xerr"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAsk struct {
	err error
}

func (f *fakeAsk) Ask(ctx context.Context, req request.AskRequest) (*respond.AskRespond, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &respond.AskRespond{Question: req.Question, Answer: "Cheese Koththu is 1,750 LKR."}, nil
}

func (f *fakeAsk) Test(ctx context.Context) (*respond.TestRespond, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &respond.TestRespond{Response: "ok"}, nil
}

func (f *fakeAsk) Memory() *respond.MemoryRespond {
	return &respond.MemoryRespond{Turns: []memory.Turn{}}
}

type fakeIndex struct {
	lastSince string
}

func (f *fakeIndex) Load(ctx context.Context) error { return nil }

func (f *fakeIndex) Refresh(ctx context.Context, req request.RefreshIndexRequest) (*respond.RefreshRespond, error) {
	f.lastSince = req.Since
	if req.Since == "bad" {
		return nil, xerr.New(xerr.BadRequest, "since must be RFC3339")
	}
	return &respond.RefreshRespond{Records: 2, Chunks: 3}, nil
}

func (f *fakeIndex) RefreshSince(ctx context.Context, since time.Time) (*respond.RefreshRespond, error) {
	return &respond.RefreshRespond{Since: since}, nil
}

func (f *fakeIndex) Rebuild(ctx context.Context) (*respond.RebuildRespond, error) {
	return &respond.RebuildRespond{Documents: 4}, nil
}

func (f *fakeIndex) Status() *respond.IndexStatusRespond {
	return &respond.IndexStatusRespond{SemanticEnabled: true}
}

type fakeGraph struct{}

func (fakeGraph) Rebuild(ctx context.Context) (*respond.GraphRebuildRespond, error) {
	return nil, xerr.New(xerr.ServiceUnavailable, "graph store is not enabled")
}

func (fakeGraph) Search(ctx context.Context, q string) (*respond.GraphSearchRespond, error) {
	return &respond.GraphSearchRespond{Intent: graphdb.Classify(q), Blocks: []string{}}, nil
}

func newTestEngine(ask *fakeAsk) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewAssistantHandler(ask)
	r.POST("/ask", h.Ask)
	r.GET("/test", h.Test)
	return r
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAssistantHandler_Ask(t *testing.T) {
	w := do(newTestEngine(&fakeAsk{}), http.MethodPost, "/ask", map[string]string{"question": "What is the price of Cheese Koththu?"})
	require.Equal(t, http.StatusOK, w.Code)
	var got respond.AskRespond
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "What is the price of Cheese Koththu?", got.Question)
	assert.Contains(t, got.Answer, "LKR")
}

func TestAssistantHandler_AskErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		body   any
		status int
	}{
		{"bad json", nil, "not an object", http.StatusBadRequest},
		{"generation failure", xerr.New(xerr.InternalServerError, "generation failure: quota"), map[string]string{"question": "q"}, http.StatusInternalServerError},
		{"timeout", xerr.New(xerr.GatewayTimeout, "deadline exceeded"), map[string]string{"question": "q"}, http.StatusGatewayTimeout},
		{"plain error", fmt.Errorf("boom"), map[string]string{"question": "q"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(newTestEngine(&fakeAsk{err: tt.err}), http.MethodPost, "/ask", tt.body)
			assert.Equal(t, tt.status, w.Code)
			var got respond.ErrorRespond
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.NotEmpty(t, got.Error)
		})
	}
}

func TestAssistantHandler_Test(t *testing.T) {
	w := do(newTestEngine(&fakeAsk{}), http.MethodGet, "/test", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"response":"ok"}`, w.Body.String())
}

func TestAdminHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	idx := &fakeIndex{}
	h := NewAdminHandler(idx, fakeGraph{}, &fakeAsk{}, nil)
	r := gin.New()
	r.POST("/admin/index/refresh", h.RefreshIndex)
	r.GET("/admin/index/status", h.IndexStatus)
	r.POST("/admin/graph/rebuild", h.RebuildGraph)
	r.POST("/admin/graph/search", h.SearchGraph)

	decode := func(w *httptest.ResponseRecorder) back.Response {
		var resp back.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp
	}

	resp := decode(do(r, http.MethodPost, "/admin/index/refresh", map[string]string{"since": "2024-05-01T00:00:00Z"}))
	assert.Equal(t, xerr.OK, resp.Code)
	assert.Equal(t, "2024-05-01T00:00:00Z", idx.lastSince)

	resp = decode(do(r, http.MethodPost, "/admin/index/refresh", map[string]string{"since": "bad"}))
	assert.Equal(t, xerr.BadRequest, resp.Code)

	resp = decode(do(r, http.MethodGet, "/admin/index/status", nil))
	assert.Equal(t, xerr.OK, resp.Code)

	resp = decode(do(r, http.MethodPost, "/admin/graph/rebuild", nil))
	assert.Equal(t, xerr.ServiceUnavailable, resp.Code)

	resp = decode(do(r, http.MethodPost, "/admin/graph/search", map[string]string{"question": "which store sells rice"}))
	assert.Equal(t, xerr.OK, resp.Code)
	data, _ := json.Marshal(resp.Data)
	assert.Contains(t, string(data), string(graphdb.IntentShop))
}
