package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gurrpi/codechain-agent-hub/internal/agent"
	"github.com/gurrpi/codechain-agent-hub/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RunStateRefresher polls every connected node until ctx is done.
func (s *Service) RunStateRefresher(ctx context.Context) {
	if s.config.RefreshInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshAll(ctx)
		}
	}
}

func (s *Service) refreshAll(ctx context.Context) {
	refreshCtx := ctx
	if s.config.RefreshTimeout > 0 {
		var cancel context.CancelFunc
		refreshCtx, cancel = context.WithTimeout(ctx, s.config.RefreshTimeout)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(refreshCtx)
	g.SetLimit(s.config.RefreshWorkers)
	for _, name := range s.agents.Names() {
		name := name
		g.Go(func() error {
			if err := s.refreshNode(gctx, name); err != nil {
				s.logger.Warn("agent state refresh failed", zap.String("node", name), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// refreshNode asks one node for its state and records it with its peers.
func (s *Service) refreshNode(ctx context.Context, name string) error {
	h, ok := s.agents.GetAgent(name)
	if !ok {
		return agent.ErrAgentNotFound
	}
	info, err := h.GetInfo(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	status := info.Status
	if !status.Valid() {
		status = domain.NodeStatusUFO
	}
	state := &domain.AgentQueryResult{
		Name:            name,
		Status:          status,
		Address:         info.Address,
		Version:         info.Version,
		CommitHash:      info.CommitHash,
		BestBlockNumber: info.BestBlockNumber,
		UpdatedAt:       now,
	}
	if err := s.store.UpsertAgentState(ctx, state); err != nil {
		return fmt.Errorf("save agent state: %w", err)
	}
	if err := s.store.ReplaceConnections(ctx, name, info.Peers, now); err != nil {
		return fmt.Errorf("save connections: %w", err)
	}
	return nil
}
