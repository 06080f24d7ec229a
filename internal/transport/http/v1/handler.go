// Package v1 provides the hub's HTTP and websocket endpoints.
package v1

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/gurrpi/codechain-agent-hub/internal/frontend"
	"github.com/gurrpi/codechain-agent-hub/internal/rpc"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ContextFactory builds a fresh frontend context per request.
type ContextFactory interface {
	NewContext() frontend.Context
}

// AgentCounter reports how many node controllers are connected.
type AgentCounter interface {
	GetConnectionCount() int
}

// Options tunes the dashboard websocket.
type Options struct {
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64
}

// Handler handles HTTP requests.
type Handler struct {
	router   *rpc.Router[frontend.Context]
	contexts ContextFactory
	agents   AgentCounter
	opts     Options
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new handler.
func NewHandler(router *rpc.Router[frontend.Context], contexts ContextFactory, agents AgentCounter, opts Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 60 * time.Second
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 1 << 20
	}
	return &Handler{
		router:   router,
		contexts: contexts,
		agents:   agents,
		opts:     opts,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// The dashboard is served from another origin.
				return true
			},
		},
	}
}

// RegisterRoutes registers the dashboard routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/rpc", h.ServeRPC)
	e.GET("/ws", h.ServeWebSocket)
	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	agents := 0
	if h.agents != nil {
		agents = h.agents.GetConnectionCount()
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": "0.1.0",
		"agents":  agents,
		"methods": len(h.router.Methods()),
	})
}
