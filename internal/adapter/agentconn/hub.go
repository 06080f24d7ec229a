// Package agentconn accepts websocket links from node controllers and lets
// the hub call them with JSON-RPC.
package agentconn

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/gurrpi/codechain-agent-hub/internal/agent"
	"github.com/gurrpi/codechain-agent-hub/internal/domain"
	"github.com/gurrpi/codechain-agent-hub/internal/rpc"
	"go.uber.org/zap"
)

// Methods a controller may call on the hub.
const (
	MethodHello      = "agent_hello"
	MethodAppendLogs = "hub_appendLogs"
)

// ErrDuplicateName is returned when a second controller claims a connected name.
var ErrDuplicateName = errors.New("agent name already connected")

// Listener is told about controller lifecycle and pushed logs.
type Listener interface {
	AgentConnected(ctx context.Context, hello domain.AgentHello)
	AgentDisconnected(ctx context.Context, name string)
	AgentLogs(ctx context.Context, name string, entries []domain.LogEntry) error
}

// Config holds link timing and size limits.
type Config struct {
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64
}

// DefaultConfig returns the default link settings.
func DefaultConfig() Config {
	return Config{
		PingInterval:   30 * time.Second,
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		MaxMessageSize: 1 << 20,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	return c
}

// Hub tracks connected controllers by node name.
type Hub struct {
	cfg      Config
	logger   *zap.Logger
	upgrader websocket.Upgrader
	router   *rpc.Router[*Conn]

	mu       sync.RWMutex
	conns    map[string]*Conn
	listener Listener
}

// NewHub creates a Hub.
func NewHub(cfg Config, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	h := &Hub{
		cfg:    cfg,
		logger: logger,
		conns:  make(map[string]*Conn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	b := rpc.NewBuilder[*Conn]()
	b.MustRegister(MethodHello, rpc.Func1(h.hello))
	b.MustRegister(MethodAppendLogs, rpc.Func1(h.appendLogs))
	h.router = b.Build()
	return h
}

// SetListener installs the lifecycle listener. Call before serving.
func (h *Hub) SetListener(l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listener = l
}

func (h *Hub) getListener() Listener {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.listener
}

// Register binds a handshaken link to its node name.
func (h *Hub) Register(conn *Conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.conns[conn.Name]; exists {
		return ErrDuplicateName
	}
	h.conns[conn.Name] = conn
	return nil
}

// Unregister drops a link. It returns false when the link was not the one
// registered under its name.
func (h *Hub) Unregister(conn *Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.conns[conn.Name]; ok && current == conn {
		delete(h.conns, conn.Name)
		return true
	}
	return false
}

// Lookup implements agent.Directory.
func (h *Hub) Lookup(name string) (agent.Caller, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conn, ok := h.conns[name]
	if !ok {
		return nil, false
	}
	return conn, true
}

// Names implements agent.Directory.
func (h *Hub) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.conns))
	for name := range h.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetConnectionCount returns the number of registered links.
func (h *Hub) GetConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close closes every link.
func (h *Hub) Close() {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()
	for _, conn := range conns {
		conn.Close()
	}
}

type helloReply struct {
	OK bool `json:"ok"`
}

func (h *Hub) hello(ctx context.Context, conn *Conn, hello domain.AgentHello) (helloReply, error) {
	if conn.Name != "" {
		return helloReply{}, rpc.InvalidRequest("agent_hello already received")
	}
	if hello.Name == "" {
		return helloReply{}, rpc.InvalidParams(errors.New("name is required"))
	}
	conn.Name = hello.Name
	conn.Address = hello.Address
	if err := h.Register(conn); err != nil {
		conn.Name = ""
		conn.Address = ""
		return helloReply{}, rpc.InvalidParams(err)
	}

	h.logger.Info("agent connected",
		zap.String("node", hello.Name),
		zap.String("address", hello.Address),
		zap.String("conn_id", conn.ID))
	if l := h.getListener(); l != nil {
		// The listener may call back into this link, which needs the read
		// loop running.
		go l.AgentConnected(context.Background(), hello)
	}
	return helloReply{OK: true}, nil
}

func (h *Hub) appendLogs(ctx context.Context, conn *Conn, entries []domain.LogEntry) (rpc.Empty, error) {
	if conn.Name == "" {
		return rpc.Empty{}, rpc.InvalidRequest("agent_hello required")
	}
	now := time.Now()
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.New().String()
		}
		if entries[i].NodeName == "" {
			entries[i].NodeName = conn.Name
		}
		if entries[i].Timestamp.IsZero() {
			entries[i].Timestamp = now
		}
	}
	l := h.getListener()
	if l == nil || len(entries) == 0 {
		return rpc.Empty{}, nil
	}
	return rpc.Empty{}, l.AgentLogs(ctx, conn.Name, entries)
}
