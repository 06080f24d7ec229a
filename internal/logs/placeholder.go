package logs

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/gurrpi/codechain-agent-hub/internal/domain"
)

var (
	placeholderNodes    = []string{"node1", "node2"}
	placeholderLevels   = []domain.LogLevel{domain.LogLevelError, domain.LogLevelWarn}
	placeholderTargets  = []string{"miner", "tendermint"}
	placeholderMessages = []string{"Log example", "Log another example"}
)

// Placeholder fabricates random entries for dashboards running without log
// collection.
type Placeholder struct {
	now func() time.Time
}

// NewPlaceholder creates a placeholder source.
func NewPlaceholder() *Placeholder {
	return &Placeholder{now: time.Now}
}

// Logs returns exactly limit random entries.
func (p *Placeholder) Logs(ctx context.Context, limit int) ([]domain.LogEntry, error) {
	entries := make([]domain.LogEntry, 0, limit)
	for i := 0; i < limit; i++ {
		entries = append(entries, domain.LogEntry{
			ID:        uuid.New().String(),
			NodeName:  pick(placeholderNodes),
			Level:     pick(placeholderLevels),
			Target:    pick(placeholderTargets),
			Timestamp: p.now(),
			Message:   pick(placeholderMessages),
		})
	}
	return entries, nil
}

func pick[T any](choices []T) T {
	return choices[rand.Intn(len(choices))]
}
