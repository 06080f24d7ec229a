// Package http provides the HTTP server implementation for the hub.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	v1 "github.com/gurrpi/codechain-agent-hub/internal/transport/http/v1"
)

// AgentEndpoint accepts node controller links.
type AgentEndpoint interface {
	HandleWebSocket(c echo.Context) error
}

// NewServer creates the hub's HTTP server: the dashboard JSON-RPC endpoints,
// the agent link endpoint and metrics.
func NewServer(handler *v1.Handler, agents AgentEndpoint, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(requestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Register Routes
	handler.RegisterRoutes(e)
	e.GET("/agents/ws", agents.HandleWebSocket)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogError:   true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.Error(v.Error))
			return nil
		},
	})
}
