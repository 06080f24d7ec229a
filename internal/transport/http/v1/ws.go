package v1

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// dashboardConn serializes writes on one dashboard websocket.
type dashboardConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (d *dashboardConn) write(messageType int, data []byte, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ws.SetWriteDeadline(time.Now().Add(timeout))
	return d.ws.WriteMessage(messageType, data)
}

// ServeWebSocket speaks JSON-RPC over a websocket. Every inbound message is
// served in its own goroutine, so replies may arrive out of order.
// GET /ws
func (h *Handler) ServeWebSocket(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("failed to upgrade dashboard websocket", zap.Error(err))
		return err
	}
	ws.SetReadLimit(h.opts.MaxMessageSize)
	conn := &dashboardConn{ws: ws}

	ctx, cancel := context.WithCancel(context.Background())
	go h.pingLoop(ctx, conn)
	go h.readLoop(ctx, cancel, conn)
	return nil
}

func (h *Handler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *dashboardConn) {
	var inflight sync.WaitGroup
	defer func() {
		cancel()
		inflight.Wait()
		conn.ws.Close()
	}()

	conn.ws.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
	conn.ws.SetPongHandler(func(string) error {
		conn.ws.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
		return nil
	})

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("dashboard websocket error", zap.Error(err))
			}
			return
		}
		conn.ws.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))

		inflight.Add(1)
		go func(data []byte) {
			defer inflight.Done()
			out := h.router.Serve(ctx, data, h.contexts.NewContext)
			if out == nil {
				return
			}
			if err := conn.write(websocket.TextMessage, out, h.opts.WriteTimeout); err != nil {
				h.logger.Debug("failed to write dashboard reply", zap.Error(err))
			}
		}(data)
	}
}

func (h *Handler) pingLoop(ctx context.Context, conn *dashboardConn) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.write(websocket.PingMessage, nil, h.opts.WriteTimeout); err != nil {
				return
			}
		}
	}
}
