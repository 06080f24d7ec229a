// Package frontend holds the JSON-RPC methods served to the dashboard and the
// hubctl CLI.
package frontend

import (
	"context"

	"github.com/gurrpi/codechain-agent-hub/internal/agent"
	"github.com/gurrpi/codechain-agent-hub/internal/domain"
	"github.com/gurrpi/codechain-agent-hub/internal/logs"
	"go.uber.org/zap"
)

// DBService is the persistence the frontend methods read and write.
type DBService interface {
	GetAgentsState(ctx context.Context) ([]domain.AgentQueryResult, error)
	GetConnections(ctx context.Context) ([]domain.Connection, error)
	GetAgentQueryResult(ctx context.Context, name string) (*domain.AgentQueryResult, error)
	GetAgentExtra(ctx context.Context, name string) (*domain.AgentExtra, error)
	SaveStartOption(ctx context.Context, name, env, args string) error
}

// AgentService resolves connected nodes.
type AgentService interface {
	GetAgent(name string) (agent.Handle, bool)
}

// Context is built fresh for every request.
type Context struct {
	DB         DBService
	Agents     AgentService
	Logs       logs.Source
	LogOptions logs.QueryOptions
	Logger     *zap.Logger
}

func (c Context) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
