package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcphost/bridge/pkg/bridge"
	"github.com/mcphost/bridge/pkg/protocol"
)

type stubRouter struct{}

func (stubRouter) Handle(_ context.Context, body []byte) []byte {
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	_ = json.Unmarshal(body, &req)
	if req.ID == nil {
		return nil
	}
	resp, _ := protocol.NewResultResponse(req.ID, map[string]any{"method": req.Method})
	raw, _ := resp.Marshal()
	return raw
}

func newTestServer(t *testing.T, cfg Config) (*Server, *bridge.Dispatcher) {
	t.Helper()
	d := bridge.New(stubRouter{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	d.Start(ctx)
	t.Cleanup(d.Stop)
	return New(cfg, d), d
}

func TestOptionsPreflight(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestGetIsMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPostRoundTrip(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	body := `{"jsonrpc":"2.0","id":1,"method":"ping"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp protocol.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "1", string(resp.ID))
}

func TestPostNotificationYieldsNoContent(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	body := `{"jsonrpc":"2.0","method":"ping"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}

func TestPostRequiresBearerTokenWhenConfigured(t *testing.T) {
	s, _ := newTestServer(t, Config{APIKey: "umcp_secret"})
	body := `{"jsonrpc":"2.0","id":1,"method":"ping"}`

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp protocol.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeInvalidRequest, resp.Error.Code)
	assert.Equal(t, "null", string(resp.ID))
}

func TestPostAcceptsMatchingBearerToken(t *testing.T) {
	s, _ := newTestServer(t, Config{APIKey: "umcp_secret"})
	body := `{"jsonrpc":"2.0","id":1,"method":"ping"}`

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer umcp_secret")
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
