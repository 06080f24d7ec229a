package v1

import (
	"io"
	"net/http"

	"github.com/gurrpi/codechain-agent-hub/internal/rpc"
	"github.com/labstack/echo/v4"
)

// ServeRPC handles one JSON-RPC request or batch.
// POST /rpc
func (h *Handler) ServeRPC(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, h.opts.MaxMessageSize+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
	}
	if int64(len(body)) > h.opts.MaxMessageSize {
		return c.JSON(http.StatusRequestEntityTooLarge, rpc.NewErrorResponse(nil, rpc.InvalidRequest("request too large")))
	}

	out := h.router.Serve(c.Request().Context(), body, h.contexts.NewContext)
	if out == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSONBlob(http.StatusOK, out)
}
