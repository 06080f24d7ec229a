package agentconn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/gurrpi/codechain-agent-hub/internal/rpc"
)

// ErrConnClosed is returned for calls on a link that went away.
var ErrConnClosed = errors.New("agent connection closed")

// RemoteError is an error object returned by a node controller.
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

// message is any JSON-RPC frame on the agent link: a request or
// notification from the controller, or a response to one of our calls.
type message struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      json.RawMessage  `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *rpc.ErrorObject `json:"error,omitempty"`
}

// Conn is one node controller link.
type Conn struct {
	ID          string
	Name        string
	Address     string
	ConnectedAt time.Time

	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	writeMu   sync.Mutex

	nextID  atomic.Uint64
	mu      sync.Mutex
	pending map[string]chan *message
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{
		ID:          uuid.New().String(),
		ConnectedAt: time.Now(),
		ws:          ws,
		send:        make(chan []byte, 256),
		done:        make(chan struct{}),
		pending:     make(map[string]chan *message),
	}
}

// Call sends a request to the controller and waits for its response. A
// non-nil result receives the decoded result value.
func (c *Conn) Call(ctx context.Context, method string, params any, result any) error {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	id := strconv.FormatUint(c.nextID.Add(1), 10)
	data, err := json.Marshal(rpc.Request{
		JSONRPC: rpc.Version,
		ID:      json.RawMessage(id),
		Method:  method,
		Params:  rawParams,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	ch := make(chan *message, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.enqueue(ctx, data); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrConnClosed
	case resp := <-ch:
		if resp.Error != nil {
			return &RemoteError{Code: resp.Error.Code, Message: resp.Error.Message}
		}
		if result == nil || len(resp.Result) == 0 || bytes.Equal(resp.Result, []byte("null")) {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	}
}

// Notify sends a notification to the controller.
func (c *Conn) Notify(ctx context.Context, method string, params any) error {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	data, err := json.Marshal(rpc.Request{JSONRPC: rpc.Version, Method: method, Params: rawParams})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.enqueue(ctx, data)
}

func (c *Conn) enqueue(ctx context.Context, data []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolve hands a response to the call waiting for it. Responses nobody waits
// for are dropped.
func (c *Conn) resolve(msg *message) bool {
	id := string(bytes.TrimSpace(msg.ID))
	c.mu.Lock()
	ch, ok := c.pending[id]
	c.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- msg:
	default:
	}
	return true
}

// Done is closed once the link is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// WriteMessage writes a frame with proper locking.
func (c *Conn) WriteMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(messageType, data)
}

// Close closes the link. Pending and future calls fail with ErrConnClosed.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}
