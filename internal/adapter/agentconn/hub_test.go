package agentconn

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/gurrpi/codechain-agent-hub/internal/domain"
	"github.com/gurrpi/codechain-agent-hub/internal/rpc"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	connected    chan domain.AgentHello
	disconnected chan string
	logs         chan []domain.LogEntry
}

func newRecordingListener() *recordingListener {
	return &recordingListener{
		connected:    make(chan domain.AgentHello, 8),
		disconnected: make(chan string, 8),
		logs:         make(chan []domain.LogEntry, 8),
	}
}

func (l *recordingListener) AgentConnected(ctx context.Context, hello domain.AgentHello) {
	l.connected <- hello
}

func (l *recordingListener) AgentDisconnected(ctx context.Context, name string) {
	l.disconnected <- name
}

func (l *recordingListener) AgentLogs(ctx context.Context, name string, entries []domain.LogEntry) error {
	l.logs <- entries
	return nil
}

func newTestHub(t *testing.T) (*Hub, *recordingListener, string) {
	t.Helper()
	hub := NewHub(DefaultConfig(), nil)
	listener := newRecordingListener()
	hub.SetListener(listener)

	e := echo.New()
	e.GET("/agents/ws", hub.HandleWebSocket)
	server := httptest.NewServer(e)
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return hub, listener, "ws" + strings.TrimPrefix(server.URL, "http") + "/agents/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(v))
}

func read(t *testing.T, ws *websocket.Conn) message {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg message
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func hello(t *testing.T, ws *websocket.Conn, name string) message {
	t.Helper()
	send(t, ws, map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  MethodHello,
		"params":  []any{map[string]string{"name": name, "address": "127.0.0.1:3485"}},
	})
	return read(t, ws)
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for listener")
		var zero T
		return zero
	}
}

func TestHelloRegistersAgent(t *testing.T) {
	hub, listener, url := newTestHub(t)
	ws := dial(t, url)

	resp := hello(t, ws, "node1")
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Result))

	got := waitFor(t, listener.connected)
	assert.Equal(t, "node1", got.Name)
	assert.Equal(t, "127.0.0.1:3485", got.Address)

	assert.Equal(t, []string{"node1"}, hub.Names())
	assert.Equal(t, 1, hub.GetConnectionCount())
	_, ok := hub.Lookup("node1")
	assert.True(t, ok)
}

func TestHelloRejectsInvalidNames(t *testing.T) {
	_, listener, url := newTestHub(t)

	ws := dial(t, url)
	resp := hello(t, ws, "")
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeInvalidParams, resp.Error.Code)

	resp = hello(t, ws, "node1")
	require.Nil(t, resp.Error)
	waitFor(t, listener.connected)

	resp = hello(t, ws, "node1")
	require.NotNil(t, resp.Error, "second hello on one link")
	assert.Equal(t, rpc.CodeInvalidRequest, resp.Error.Code)

	other := dial(t, url)
	resp = hello(t, other, "node1")
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, ErrDuplicateName.Error())
}

func TestRequestsBeforeHelloAreRejected(t *testing.T) {
	hub, _, url := newTestHub(t)
	ws := dial(t, url)

	send(t, ws, map[string]any{"jsonrpc": "2.0", "id": 9, "method": MethodAppendLogs, "params": []any{[]any{}}})
	resp := read(t, ws)
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeInvalidRequest, resp.Error.Code)

	send(t, ws, map[string]any{"jsonrpc": "2.0", "id": 10, "method": "shell_stopCodeChain"})
	resp = read(t, ws)
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeMethodNotFound, resp.Error.Code)

	assert.Zero(t, hub.GetConnectionCount())
}

func TestCallRoundTrip(t *testing.T) {
	hub, listener, url := newTestHub(t)
	ws := dial(t, url)
	require.Nil(t, hello(t, ws, "node1").Error)
	waitFor(t, listener.connected)

	caller, ok := hub.Lookup("node1")
	require.True(t, ok)

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		var text string
		err := caller.Call(context.Background(), "shell_getCodeChainLog", []any{}, &text)
		done <- outcome{text, err}
	}()

	req := read(t, ws)
	assert.Equal(t, "shell_getCodeChainLog", req.Method)
	assert.JSONEq(t, `[]`, string(req.Params))
	send(t, ws, map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": "line1\nline2"})

	got := waitFor(t, done)
	require.NoError(t, got.err)
	assert.Equal(t, "line1\nline2", got.text)

	go func() {
		done <- outcome{err: caller.Call(context.Background(), "shell_stopCodeChain", []any{}, nil)}
	}()
	req = read(t, ws)
	send(t, ws, map[string]any{
		"jsonrpc": "2.0",
		"id":      req.ID,
		"error":   map[string]any{"code": -32000, "message": "codechain is not running"},
	})

	got = waitFor(t, done)
	var remote *RemoteError
	require.True(t, errors.As(got.err, &remote))
	assert.Equal(t, -32000, remote.Code)
	assert.Equal(t, "codechain is not running", remote.Message)
}

func TestCallHonoursContext(t *testing.T) {
	hub, listener, url := newTestHub(t)
	ws := dial(t, url)
	require.Nil(t, hello(t, ws, "node1").Error)
	waitFor(t, listener.connected)

	caller, _ := hub.Lookup("node1")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := caller.Call(ctx, "agent_getInfo", []any{}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAppendLogsNotification(t *testing.T) {
	_, listener, url := newTestHub(t)
	ws := dial(t, url)
	require.Nil(t, hello(t, ws, "node1").Error)
	waitFor(t, listener.connected)

	send(t, ws, map[string]any{
		"jsonrpc": "2.0",
		"method":  MethodAppendLogs,
		"params": []any{[]map[string]any{
			{"level": "warn", "target": "miner", "message": "sealing"},
		}},
	})

	entries := waitFor(t, listener.logs)
	require.Len(t, entries, 1)
	assert.Equal(t, "node1", entries[0].NodeName)
	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].Timestamp.IsZero())
	assert.Equal(t, domain.LogLevelWarn, entries[0].Level)
	assert.Equal(t, "sealing", entries[0].Message)
}

func TestDisconnectUnregistersAgent(t *testing.T) {
	hub, listener, url := newTestHub(t)
	ws := dial(t, url)
	require.Nil(t, hello(t, ws, "node1").Error)
	waitFor(t, listener.connected)

	caller, _ := hub.Lookup("node1")
	done := make(chan error, 1)
	go func() {
		done <- caller.Call(context.Background(), "agent_getInfo", []any{}, nil)
	}()
	read(t, ws)
	require.NoError(t, ws.Close())

	assert.Equal(t, "node1", waitFor(t, listener.disconnected))
	assert.ErrorIs(t, waitFor(t, done), ErrConnClosed)
	_, ok := hub.Lookup("node1")
	assert.False(t, ok)
	assert.Empty(t, hub.Names())

	// The name is free again.
	again := dial(t, url)
	require.Nil(t, hello(t, again, "node1").Error)
}

func TestMessageDecoding(t *testing.T) {
	var msg message
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":3,"result":{"a":1}}`), &msg))
	assert.Empty(t, msg.Method)
	assert.Equal(t, "3", string(msg.ID))
	assert.JSONEq(t, `{"a":1}`, string(msg.Result))
}
