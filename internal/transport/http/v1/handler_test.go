package v1

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/gurrpi/codechain-agent-hub/internal/agent"
	"github.com/gurrpi/codechain-agent-hub/internal/frontend"
	"github.com/gurrpi/codechain-agent-hub/internal/logs"
	"github.com/gurrpi/codechain-agent-hub/internal/rpc"
	"github.com/gurrpi/codechain-agent-hub/tests/helpers"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noAgents struct{}

func (noAgents) GetAgent(name string) (agent.Handle, bool) {
	return nil, false
}

func (noAgents) GetConnectionCount() int {
	return 2
}

type contextFactory struct {
	db frontend.DBService
}

func (f contextFactory) NewContext() frontend.Context {
	return frontend.Context{
		DB:         f.db,
		Agents:     noAgents{},
		Logs:       logs.NewPlaceholder(),
		LogOptions: logs.DefaultQueryOptions(),
	}
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	db := helpers.NewTestSQLiteStore(t)
	return NewHandler(frontend.NewRouter(), contextFactory{db: db}, noAgents{}, Options{}, nil)
}

func postRPC(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.ServeRPC(c))
	return rec
}

func TestServeRPCPing(t *testing.T) {
	h := newTestHandler(t)
	rec := postRPC(t, h, `{"jsonrpc":"2.0","id":1,"method":"ping"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":"pong"}`, rec.Body.String())
}

func TestServeRPCErrors(t *testing.T) {
	h := newTestHandler(t)

	rec := postRPC(t, h, `{"jsonrpc":"2.0","id":1,"method":"node_stop","params":["ghost"]}`)
	var resp rpc.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeAgentNotFound, resp.Error.Code)
	assert.Equal(t, rpc.KindAgentNotFound, resp.Error.Data.Kind)

	rec = postRPC(t, h, `not json`)
	resp = rpc.Response{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, rpc.CodeParseError, resp.Error.Code)
}

func TestServeRPCNotification(t *testing.T) {
	h := newTestHandler(t)
	rec := postRPC(t, h, `{"jsonrpc":"2.0","method":"ping"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestServeRPCDashboardFromStore(t *testing.T) {
	h := newTestHandler(t)
	rec := postRPC(t, h, `{"jsonrpc":"2.0","id":"n","method":"dashboard_getNetwork"}`)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"n","result":{"nodes":[],"connections":[]}}`, rec.Body.String())
}

func TestServeRPCRejectsOversizedBody(t *testing.T) {
	h := NewHandler(frontend.NewRouter(), contextFactory{db: helpers.NewTestSQLiteStore(t)}, noAgents{}, Options{MaxMessageSize: 16}, nil)
	rec := postRPC(t, h, `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, h.Health(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(2), body["agents"])
	assert.Equal(t, float64(9), body["methods"])
}

func TestServeWebSocket(t *testing.T) {
	h := newTestHandler(t)
	e := echo.New()
	h.RegisterRoutes(e)
	server := httptest.NewServer(e)
	defer server.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","id":1,"method":"log_getTypes"}`)))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","method":"ping"}`)))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","id":2,"method":"log_get","params":[{"itemPerPage":5}]}`)))

	got := map[string]rpc.Response{}
	for len(got) < 2 {
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		var resp rpc.Response
		require.NoError(t, ws.ReadJSON(&resp))
		got[string(resp.ID)] = resp
	}

	assert.JSONEq(t, `{"types":["miner","tendermint","engine"]}`, string(got["1"].Result))
	var page frontend.LogGetResponse
	require.NoError(t, json.Unmarshal(got["2"].Result, &page))
	assert.Len(t, page.Logs, 5)
}
