package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gurrpi/codechain-agent-hub/internal/adapter/agentconn"
	"github.com/gurrpi/codechain-agent-hub/internal/agent"
	"github.com/gurrpi/codechain-agent-hub/internal/config"
	"github.com/gurrpi/codechain-agent-hub/internal/frontend"
	"github.com/gurrpi/codechain-agent-hub/internal/logging"
	"github.com/gurrpi/codechain-agent-hub/internal/logs"
	"github.com/gurrpi/codechain-agent-hub/internal/repository"
	"github.com/gurrpi/codechain-agent-hub/internal/service"
	handler "github.com/gurrpi/codechain-agent-hub/internal/transport/http"
	v1 "github.com/gurrpi/codechain-agent-hub/internal/transport/http/v1"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("hub stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting hub",
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("log_source", cfg.LogSource),
		zap.Duration("agent_timeout", cfg.AgentTimeout))

	// Initialize store
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer db.Close()

	// Agent links and proxies
	hub := agentconn.NewHub(agentconn.Config{
		PingInterval:   cfg.WSPingInterval,
		WriteTimeout:   cfg.WSWriteTimeout,
		ReadTimeout:    cfg.WSReadTimeout,
		MaxMessageSize: cfg.WSMaxMessageSize,
	}, logger.Named("agentconn"))
	agents := agent.NewService(hub, cfg.AgentTimeout, logger.Named("agent"))

	var logSource logs.Source = logs.NewPlaceholder()
	if cfg.LogSource == config.LogSourceStore {
		logSource = logs.NewStoreSource(db)
	}

	// Initialize service
	svc := service.New(db, agents, logSource, service.Config{
		RefreshInterval: cfg.AgentRefreshInterval,
		RefreshTimeout:  cfg.AgentTimeout,
		LogOptions: logs.QueryOptions{
			DefaultItemPerPage: cfg.LogPageSize,
			MaxItemPerPage:     cfg.LogMaxPageSize,
		},
	}, logger.Named("service"))
	hub.SetListener(svc)

	// Initialize handlers
	router := frontend.NewRouter()
	h := v1.NewHandler(router, svc, hub, v1.Options{
		PingInterval:   cfg.WSPingInterval,
		WriteTimeout:   cfg.WSWriteTimeout,
		ReadTimeout:    cfg.WSReadTimeout,
		MaxMessageSize: cfg.WSMaxMessageSize,
	}, logger.Named("http"))
	server := handler.NewServer(h, hub, logger.Named("http"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		logger.Info("hub API started", zap.String("addr", addr), zap.Strings("methods", router.Methods()))
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		svc.RunStateRefresher(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down hub")

		// Graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		hub.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to shutdown server gracefully", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("hub stopped")
	return nil
}
