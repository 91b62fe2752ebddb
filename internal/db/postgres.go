// Package db is the optional audit log: every session lifecycle
// transition and every discovered connection is appended to PostgreSQL
// for after-the-fact review, independent of the checkpoint store which
// exists to make a running session resumable, not to be queried.
package db

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/linkfinder/internal/model"
)

type Store struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx. An empty
// DatabaseURL in config means the process runs without an audit log.
func Connect(connStr string) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	log.Println("[DB] connected to audit log database")
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes schema.sql, idempotently.
func (s *Store) InitSchema() error {
	schemaBytes, err := os.ReadFile("internal/db/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}
	if _, err := s.pool.Exec(context.Background(), string(schemaBytes)); err != nil {
		return fmt.Errorf("failed to execute schema migrations: %w", err)
	}
	log.Println("[DB] audit log schema initialized")
	return nil
}

// RecordSessionEvent appends a lifecycle transition (started/cancelled/
// completed/failed/resumed) to the audit trail.
func (s *Store) RecordSessionEvent(ctx context.Context, sessionID, eventType, detail string) error {
	const sql = `INSERT INTO session_events (session_id, event_type, detail) VALUES ($1, $2, $3)`
	_, err := s.pool.Exec(ctx, sql, sessionID, eventType, detail)
	return err
}

// RecordConnection appends one discovered connection, deduplicated by
// (session_id, source, target) to match the Incremental Exporter's own
// idempotency guarantee on resume.
func (s *Store) RecordConnection(ctx context.Context, sessionID string, c model.Connection) error {
	const sql = `
		INSERT INTO connection_audit (session_id, source, target, path_length, discovered_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, source, target) DO NOTHING
	`
	_, err := s.pool.Exec(ctx, sql, sessionID, c.Source, c.Target, c.PathLength, c.DiscoveredAt)
	return err
}

// SessionEventRow is one row read back from the audit trail.
type SessionEventRow struct {
	EventType string
	Detail    string
}

// ListSessionEvents returns a session's recorded lifecycle events, oldest first.
func (s *Store) ListSessionEvents(ctx context.Context, sessionID string) ([]SessionEventRow, error) {
	rows, err := s.pool.Query(ctx, `SELECT event_type, detail FROM session_events WHERE session_id = $1 ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionEventRow
	for rows.Next() {
		var r SessionEventRow
		if err := rows.Scan(&r.EventType, &r.Detail); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
