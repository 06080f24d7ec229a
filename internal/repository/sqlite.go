package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gurrpi/codechain-agent-hub/internal/domain"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer and in-memory databases are per connection.
	// One pooled connection queues statements instead of failing with SQLITE_LOCKED.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS agents (
			name TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			address TEXT,
			version TEXT,
			commit_hash TEXT,
			best_block_number INTEGER,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS agent_extras (
			name TEXT PRIMARY KEY,
			prev_env TEXT NOT NULL DEFAULT '',
			prev_args TEXT NOT NULL DEFAULT '',
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS connections (
			node_a TEXT NOT NULL,
			node_b TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (node_a, node_b)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_connections_node_b ON connections(node_b)`,
		`CREATE TABLE IF NOT EXISTS logs (
			log_id TEXT PRIMARY KEY,
			node_name TEXT NOT NULL,
			level TEXT NOT NULL,
			target TEXT NOT NULL,
			ts DATETIME NOT NULL,
			message TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_ts ON logs(ts)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertAgentState records the latest reported state of a node.
func (s *SQLiteStore) UpsertAgentState(ctx context.Context, state *domain.AgentQueryResult) error {
	var best sql.NullInt64
	if state.BestBlockNumber != nil {
		best = sql.NullInt64{Int64: *state.BestBlockNumber, Valid: true}
	}
	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO agents (name, status, address, version, commit_hash, best_block_number, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		state.Name, state.Status, nullString(state.Address), nullString(state.Version), nullString(state.CommitHash), best, updatedAt.UTC())
	return err
}

// SetAgentStatus updates the status of a known node. Unknown nodes are ignored.
func (s *SQLiteStore) SetAgentStatus(ctx context.Context, name string, status domain.NodeStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE agents SET status = ?, updated_at = ? WHERE name = ?`,
		status, time.Now().UTC(), name)
	return err
}

// GetAgentsState lists all known nodes.
func (s *SQLiteStore) GetAgentsState(ctx context.Context) ([]domain.AgentQueryResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, status, address, version, commit_hash, best_block_number, updated_at FROM agents ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	states := []domain.AgentQueryResult{}
	for rows.Next() {
		state, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, *state)
	}
	return states, rows.Err()
}

// GetAgentQueryResult retrieves one node by name.
func (s *SQLiteStore) GetAgentQueryResult(ctx context.Context, name string) (*domain.AgentQueryResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, status, address, version, commit_hash, best_block_number, updated_at FROM agents WHERE name = ?`,
		name)
	state, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// GetAgentExtra retrieves the start option of a node.
func (s *SQLiteStore) GetAgentExtra(ctx context.Context, name string) (*domain.AgentExtra, error) {
	var extra domain.AgentExtra
	err := s.db.QueryRowContext(ctx,
		`SELECT prev_env, prev_args FROM agent_extras WHERE name = ?`,
		name).Scan(&extra.PrevEnv, &extra.PrevArgs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &extra, nil
}

// SaveStartOption stores the env and args a node was last started with.
func (s *SQLiteStore) SaveStartOption(ctx context.Context, name, env, args string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO agent_extras (name, prev_env, prev_args, updated_at) VALUES (?, ?, ?, ?)`,
		name, env, args, time.Now().UTC())
	return err
}

// ReplaceConnections replaces every edge touching name with edges to peers.
func (s *SQLiteStore) ReplaceConnections(ctx context.Context, name string, peers []string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM connections WHERE node_a = ? OR node_b = ?`, name, name); err != nil {
		return err
	}
	for _, edge := range peerEdges(name, peers, at) {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO connections (node_a, node_b, updated_at) VALUES (?, ?, ?)`,
			edge.NodeA, edge.NodeB, edge.UpdatedAt.UTC()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetConnections lists all known edges.
func (s *SQLiteStore) GetConnections(ctx context.Context) ([]domain.Connection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT node_a, node_b, updated_at FROM connections ORDER BY node_a, node_b`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	connections := []domain.Connection{}
	for rows.Next() {
		var c domain.Connection
		if err := rows.Scan(&c.NodeA, &c.NodeB, &c.UpdatedAt); err != nil {
			return nil, err
		}
		connections = append(connections, c)
	}
	return connections, rows.Err()
}

// AppendLogs stores log entries. Entries with an already stored ID are skipped.
func (s *SQLiteStore) AppendLogs(ctx context.Context, entries []domain.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO logs (log_id, node_name, level, target, ts, message) VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, e.NodeName, e.Level, e.Target, e.Timestamp.UTC(), e.Message); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// QueryLogs returns the newest log entries first.
func (s *SQLiteStore) QueryLogs(ctx context.Context, q domain.LogQuery) ([]domain.LogEntry, error) {
	query := `SELECT log_id, node_name, level, target, ts, message FROM logs ORDER BY ts DESC, log_id`
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.LogEntry{}
	for rows.Next() {
		var e domain.LogEntry
		if err := rows.Scan(&e.ID, &e.NodeName, &e.Level, &e.Target, &e.Timestamp, &e.Message); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*domain.AgentQueryResult, error) {
	var state domain.AgentQueryResult
	var address, version, commitHash sql.NullString
	var best sql.NullInt64
	if err := row.Scan(&state.Name, &state.Status, &address, &version, &commitHash, &best, &state.UpdatedAt); err != nil {
		return nil, err
	}
	state.Address = address.String
	state.Version = version.String
	state.CommitHash = commitHash.String
	if best.Valid {
		n := best.Int64
		state.BestBlockNumber = &n
	}
	return &state, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
