package agentconn

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/gurrpi/codechain-agent-hub/internal/rpc"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// HandleWebSocket upgrades a controller connection and runs its pumps.
func (h *Hub) HandleWebSocket(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("failed to upgrade agent websocket", zap.Error(err))
		return err
	}
	ws.SetReadLimit(h.cfg.MaxMessageSize)

	conn := newConn(ws)
	go h.writePump(conn)
	go h.readPump(conn)
	return nil
}

func (h *Hub) readPump(conn *Conn) {
	defer func() {
		conn.Close()
		if conn.Name == "" || !h.Unregister(conn) {
			return
		}
		h.logger.Info("agent disconnected", zap.String("node", conn.Name), zap.String("conn_id", conn.ID))
		if l := h.getListener(); l != nil {
			l.AgentDisconnected(context.Background(), conn.Name)
		}
	}()

	conn.ws.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	conn.ws.SetPongHandler(func(string) error {
		conn.ws.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
		return nil
	})

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("agent websocket error", zap.String("conn_id", conn.ID), zap.Error(err))
			}
			return
		}
		conn.ws.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
		h.handleMessage(conn, data)
	}
}

func (h *Hub) writePump(conn *Conn) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case data := <-conn.send:
			conn.ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Warn("failed to write agent message", zap.String("conn_id", conn.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-conn.done:
			conn.ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// handleMessage routes responses to pending calls and requests to the
// controller-facing method table.
func (h *Hub) handleMessage(conn *Conn, data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		h.reply(conn, rpc.NewErrorResponse(nil, rpc.ParseError(err)))
		return
	}
	if msg.Method == "" {
		if !conn.resolve(&msg) {
			h.logger.Debug("dropping unmatched agent response", zap.String("conn_id", conn.ID), zap.ByteString("id", msg.ID))
		}
		return
	}

	req := rpc.Request{JSONRPC: msg.JSONRPC, ID: msg.ID, Method: msg.Method, Params: msg.Params}
	resp := h.router.Handle(context.Background(), &req, conn)
	if resp != nil {
		h.reply(conn, resp)
	}
}

func (h *Hub) reply(conn *Conn, resp *rpc.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		h.logger.Error("failed to encode agent reply", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.WriteTimeout)
	defer cancel()
	if err := conn.enqueue(ctx, data); err != nil {
		h.logger.Warn("failed to queue agent reply", zap.String("conn_id", conn.ID), zap.Error(err))
	}
}
