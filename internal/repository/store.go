// Package store defines the hub's persistence interface and its SQLite and
// Postgres implementations.
package store

import (
	"context"
	"time"

	"github.com/gurrpi/codechain-agent-hub/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// Node state operations. Lists are ordered by node name.
	UpsertAgentState(ctx context.Context, state *domain.AgentQueryResult) error
	SetAgentStatus(ctx context.Context, name string, status domain.NodeStatus) error
	GetAgentsState(ctx context.Context) ([]domain.AgentQueryResult, error)
	GetAgentQueryResult(ctx context.Context, name string) (*domain.AgentQueryResult, error)

	// Start option operations
	GetAgentExtra(ctx context.Context, name string) (*domain.AgentExtra, error)
	SaveStartOption(ctx context.Context, name, env, args string) error

	// Connection operations. Lists are ordered by (node_a, node_b).
	ReplaceConnections(ctx context.Context, name string, peers []string, at time.Time) error
	GetConnections(ctx context.Context) ([]domain.Connection, error)

	// Log operations
	AppendLogs(ctx context.Context, entries []domain.LogEntry) error
	QueryLogs(ctx context.Context, q domain.LogQuery) ([]domain.LogEntry, error)

	// Lifecycle
	Close() error
}

// peerEdges returns the normalized, de-duplicated edges from name to peers.
func peerEdges(name string, peers []string, at time.Time) []domain.Connection {
	seen := make(map[string]bool, len(peers))
	edges := make([]domain.Connection, 0, len(peers))
	for _, peer := range peers {
		if peer == "" || peer == name || seen[peer] {
			continue
		}
		seen[peer] = true
		edges = append(edges, domain.NewConnection(name, peer, at))
	}
	return edges
}
