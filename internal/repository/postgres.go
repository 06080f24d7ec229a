package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gurrpi/codechain-agent-hub/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	migrations := []string{
		`create table if not exists agents (
			name text primary key,
			status text not null,
			address text,
			version text,
			commit_hash text,
			best_block_number bigint,
			updated_at timestamptz not null default now()
		)`,
		`create table if not exists agent_extras (
			name text primary key,
			prev_env text not null default '',
			prev_args text not null default '',
			updated_at timestamptz not null default now()
		)`,
		`create table if not exists connections (
			node_a text not null,
			node_b text not null,
			updated_at timestamptz not null default now(),
			primary key (node_a, node_b)
		)`,
		`create index if not exists idx_connections_node_b on connections(node_b)`,
		`create table if not exists logs (
			log_id text primary key,
			node_name text not null,
			level text not null,
			target text not null,
			ts timestamptz not null,
			message text not null
		)`,
		`create index if not exists idx_logs_ts on logs(ts)`,
	}
	for _, m := range migrations {
		if _, err := s.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// UpsertAgentState records the latest reported state of a node.
func (s *PostgresStore) UpsertAgentState(ctx context.Context, state *domain.AgentQueryResult) error {
	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		insert into agents (name, status, address, version, commit_hash, best_block_number, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7)
		on conflict (name) do update set
			status = excluded.status,
			address = excluded.address,
			version = excluded.version,
			commit_hash = excluded.commit_hash,
			best_block_number = excluded.best_block_number,
			updated_at = excluded.updated_at
	`, state.Name, string(state.Status), optional(state.Address), optional(state.Version), optional(state.CommitHash), state.BestBlockNumber, updatedAt)
	return err
}

// SetAgentStatus updates the status of a known node.
func (s *PostgresStore) SetAgentStatus(ctx context.Context, name string, status domain.NodeStatus) error {
	_, err := s.pool.Exec(ctx, `update agents set status = $1, updated_at = now() where name = $2`, string(status), name)
	return err
}

// GetAgentsState lists all known nodes ordered by name.
func (s *PostgresStore) GetAgentsState(ctx context.Context) ([]domain.AgentQueryResult, error) {
	rows, err := s.pool.Query(ctx, `
		select name, status, address, version, commit_hash, best_block_number, updated_at
		from agents order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	states := []domain.AgentQueryResult{}
	for rows.Next() {
		state, err := scanPgAgent(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, *state)
	}
	return states, rows.Err()
}

// GetAgentQueryResult retrieves one node, or nil when it is unknown.
func (s *PostgresStore) GetAgentQueryResult(ctx context.Context, name string) (*domain.AgentQueryResult, error) {
	row := s.pool.QueryRow(ctx, `
		select name, status, address, version, commit_hash, best_block_number, updated_at
		from agents where name = $1
	`, name)
	state, err := scanPgAgent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// GetAgentExtra retrieves the start option of a node.
func (s *PostgresStore) GetAgentExtra(ctx context.Context, name string) (*domain.AgentExtra, error) {
	var extra domain.AgentExtra
	err := s.pool.QueryRow(ctx, `select prev_env, prev_args from agent_extras where name = $1`, name).
		Scan(&extra.PrevEnv, &extra.PrevArgs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &extra, nil
}

// SaveStartOption stores the env and args a node was last started with.
func (s *PostgresStore) SaveStartOption(ctx context.Context, name, env, args string) error {
	_, err := s.pool.Exec(ctx, `
		insert into agent_extras (name, prev_env, prev_args, updated_at)
		values ($1, $2, $3, now())
		on conflict (name) do update set
			prev_env = excluded.prev_env,
			prev_args = excluded.prev_args,
			updated_at = excluded.updated_at
	`, name, env, args)
	return err
}

// ReplaceConnections replaces every edge touching name in one transaction.
func (s *PostgresStore) ReplaceConnections(ctx context.Context, name string, peers []string, at time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `delete from connections where node_a = $1 or node_b = $1`, name); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, edge := range peerEdges(name, peers, at) {
		batch.Queue(`
			insert into connections (node_a, node_b, updated_at) values ($1, $2, $3)
			on conflict (node_a, node_b) do update set updated_at = excluded.updated_at
		`, edge.NodeA, edge.NodeB, edge.UpdatedAt)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// GetConnections lists all known edges.
func (s *PostgresStore) GetConnections(ctx context.Context) ([]domain.Connection, error) {
	rows, err := s.pool.Query(ctx, `select node_a, node_b, updated_at from connections order by node_a, node_b`)
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

// AppendLogs stores log entries in one batch. Known IDs are skipped.
func (s *PostgresStore) AppendLogs(ctx context.Context, entries []domain.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			insert into logs (log_id, node_name, level, target, ts, message)
			values ($1, $2, $3, $4, $5, $6)
			on conflict (log_id) do nothing
		`, e.ID, e.NodeName, string(e.Level), e.Target, e.Timestamp, e.Message)
	}
	return s.pool.SendBatch(ctx, batch).Close()
}

// QueryLogs returns the newest log entries first.
func (s *PostgresStore) QueryLogs(ctx context.Context, q domain.LogQuery) ([]domain.LogEntry, error) {
	query := `select log_id, node_name, level, target, ts, message from logs order by ts desc, log_id`
	args := []any{}
	if q.Limit > 0 {
		query += ` limit $1`
		args = append(args, q.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.LogEntry{}
	for rows.Next() {
		var e domain.LogEntry
		var level string
		if err := rows.Scan(&e.ID, &e.NodeName, &level, &e.Target, &e.Timestamp, &e.Message); err != nil {
			return nil, err
		}
		e.Level = domain.LogLevel(level)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanPgAgent(row pgx.Row) (*domain.AgentQueryResult, error) {
	var state domain.AgentQueryResult
	var status string
	var address, version, commitHash *string
	if err := row.Scan(&state.Name, &status, &address, &version, &commitHash, &state.BestBlockNumber, &state.UpdatedAt); err != nil {
		return nil, err
	}
	state.Status = domain.NodeStatus(status)
	state.Address = deref(address)
	state.Version = deref(version)
	state.CommitHash = deref(commitHash)
	return &state, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
