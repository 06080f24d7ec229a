// Package client is a JSON-RPC client for the hub's dashboard websocket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/gurrpi/codechain-agent-hub/internal/rpc"
)

// Client represents a WebSocket client. Calls are issued one at a time.
type Client struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	nextID uint64
}

// NewClient connects to the hub's /ws endpoint.
func NewClient(ctx context.Context, addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

// Call invokes method with positional params and decodes the result into
// result when it is non-nil. Hub errors are returned as *rpc.Error.
func (c *Client) Call(ctx context.Context, method string, result any, params ...any) error {
	if params == nil {
		params = []any{}
	}
	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := json.RawMessage(strconv.FormatUint(c.nextID, 10))
	req := rpc.Request{JSONRPC: rpc.Version, ID: id, Method: method, Params: rawParams}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(time.Minute)
	}
	c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	c.conn.SetReadDeadline(deadline)
	for {
		var resp rpc.Response
		if err := c.conn.ReadJSON(&resp); err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if !bytes.Equal(resp.ID, id) {
			continue
		}
		if resp.Error != nil {
			return resp.Error.Err()
		}
		if result == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
		return nil
	}
}
