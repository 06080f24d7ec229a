// Package service ties the agent links, the store and the frontend together.
package service

import (
	"context"
	"time"

	"github.com/gurrpi/codechain-agent-hub/internal/agent"
	"github.com/gurrpi/codechain-agent-hub/internal/domain"
	"github.com/gurrpi/codechain-agent-hub/internal/frontend"
	"github.com/gurrpi/codechain-agent-hub/internal/logs"
	"github.com/gurrpi/codechain-agent-hub/internal/repository"
	"go.uber.org/zap"
)

// Agents is the live node set.
type Agents interface {
	GetAgent(name string) (agent.Handle, bool)
	Names() []string
}

// Config tunes the service.
type Config struct {
	RefreshInterval time.Duration
	RefreshTimeout  time.Duration
	RefreshWorkers  int
	LogOptions      logs.QueryOptions
}

// Service implements the frontend collaborators on top of the store and the
// agent links. It also listens to agent link events.
type Service struct {
	store     store.Store
	agents    Agents
	logSource logs.Source
	config    Config
	logger    *zap.Logger
}

// New creates a Service. RefreshWorkers defaults to 8.
func New(store store.Store, agents Agents, logSource logs.Source, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RefreshWorkers <= 0 {
		cfg.RefreshWorkers = 8
	}
	return &Service{
		store:     store,
		agents:    agents,
		logSource: logSource,
		config:    cfg,
		logger:    logger,
	}
}

// NewContext builds the per-request frontend context.
func (s *Service) NewContext() frontend.Context {
	return frontend.Context{
		DB:         s.store,
		Agents:     s.agents,
		Logs:       s.logSource,
		LogOptions: s.config.LogOptions,
		Logger:     s.logger,
	}
}

// AgentConnected records a newly connected node and pulls its state.
func (s *Service) AgentConnected(ctx context.Context, hello domain.AgentHello) {
	if err := s.refreshNode(ctx, hello.Name); err == nil {
		return
	}
	state := &domain.AgentQueryResult{
		Name:      hello.Name,
		Status:    domain.NodeStatusError,
		Address:   hello.Address,
		UpdatedAt: time.Now(),
	}
	if err := s.store.UpsertAgentState(ctx, state); err != nil {
		s.logger.Error("failed to record connected agent", zap.String("node", hello.Name), zap.Error(err))
	}
}

// AgentDisconnected marks a node unreachable.
func (s *Service) AgentDisconnected(ctx context.Context, name string) {
	if err := s.store.SetAgentStatus(ctx, name, domain.NodeStatusError); err != nil {
		s.logger.Error("failed to mark agent disconnected", zap.String("node", name), zap.Error(err))
	}
}

// AgentLogs stores log entries pushed by a node.
func (s *Service) AgentLogs(ctx context.Context, name string, entries []domain.LogEntry) error {
	if err := s.store.AppendLogs(ctx, entries); err != nil {
		s.logger.Warn("failed to store agent logs",
			zap.String("node", name),
			zap.Int("count", len(entries)),
			zap.Error(err))
		return err
	}
	return nil
}
