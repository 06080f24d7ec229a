package store

import (
	"context"
	"strings"
)

// Open picks the store implementation from the DSN: postgres:// and
// postgresql:// URLs use Postgres, anything else is handed to SQLite.
func Open(ctx context.Context, dsn string) (Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return NewPostgresStore(ctx, dsn)
	}
	return NewSQLiteStore(dsn)
}
