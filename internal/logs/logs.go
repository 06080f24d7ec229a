// Package logs produces the node log pages served to the dashboard.
package logs

import (
	"context"
	"fmt"

	"github.com/gurrpi/codechain-agent-hub/internal/domain"
)

var types = []string{"miner", "tendermint", "engine"}

// Types returns the log targets the dashboard can filter on.
func Types() []string {
	out := make([]string, len(types))
	copy(out, types)
	return out
}

// Source yields up to limit log entries, newest first.
type Source interface {
	Logs(ctx context.Context, limit int) ([]domain.LogEntry, error)
}

// QueryOptions bounds the page size of a log query.
type QueryOptions struct {
	DefaultItemPerPage int
	MaxItemPerPage     int
}

// DefaultQueryOptions returns the stock page sizes.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{DefaultItemPerPage: 100, MaxItemPerPage: 1000}
}

// Resolve turns an optional requested page size into the number of entries to
// return. Values above the maximum are clamped.
func (o QueryOptions) Resolve(itemPerPage *int) (int, error) {
	if itemPerPage == nil {
		return o.DefaultItemPerPage, nil
	}
	n := *itemPerPage
	if n < 0 {
		return 0, fmt.Errorf("itemPerPage must not be negative, got %d", n)
	}
	if o.MaxItemPerPage > 0 && n > o.MaxItemPerPage {
		n = o.MaxItemPerPage
	}
	return n, nil
}
