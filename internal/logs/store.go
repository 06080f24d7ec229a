package logs

import (
	"context"

	"github.com/gurrpi/codechain-agent-hub/internal/domain"
)

// LogStore is the part of the repository holding collected logs.
type LogStore interface {
	QueryLogs(ctx context.Context, q domain.LogQuery) ([]domain.LogEntry, error)
}

// StoreSource serves logs pushed by node controllers.
type StoreSource struct {
	store LogStore
}

// NewStoreSource creates a source backed by the repository.
func NewStoreSource(store LogStore) *StoreSource {
	return &StoreSource{store: store}
}

func (s *StoreSource) Logs(ctx context.Context, limit int) ([]domain.LogEntry, error) {
	if limit == 0 {
		return []domain.LogEntry{}, nil
	}
	return s.store.QueryLogs(ctx, domain.LogQuery{Limit: limit})
}
