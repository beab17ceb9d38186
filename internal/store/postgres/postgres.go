// Package postgres is the networked storage backend, using pgvector for
// similarity search.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS workspaces (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	settings   JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS contexts (
	id           TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	name         TEXT NOT NULL,
	settings     JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS memories (
	id               TEXT PRIMARY KEY,
	workspace_id     TEXT NOT NULL,
	tenant_id        TEXT,
	context_id       TEXT,
	content          TEXT NOT NULL,
	content_hash     TEXT NOT NULL,
	abstract         TEXT,
	overview         TEXT,
	type             TEXT NOT NULL,
	subtype          TEXT,
	importance       DOUBLE PRECISION NOT NULL,
	pinned           BOOLEAN NOT NULL DEFAULT FALSE,
	status           TEXT NOT NULL DEFAULT 'active',
	tags             TEXT[],
	metadata         JSONB,
	embedding        vector,
	source_memory_id TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_accessed_at TIMESTAMPTZ,
	access_count     INTEGER NOT NULL DEFAULT 0,
	deleted_at       TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_memories_ws_hash
	ON memories(workspace_id, content_hash) WHERE status != 'deleted';
CREATE INDEX IF NOT EXISTS idx_memories_ws_status ON memories(workspace_id, status);

CREATE TABLE IF NOT EXISTS associations (
	id           TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	source_id    TEXT NOT NULL,
	target_id    TEXT NOT NULL,
	relationship TEXT NOT NULL,
	strength     DOUBLE PRECISION NOT NULL,
	metadata     JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_assoc_edge
	ON associations(source_id, target_id, relationship);
CREATE INDEX IF NOT EXISTS idx_assoc_source ON associations(workspace_id, source_id);
CREATE INDEX IF NOT EXISTS idx_assoc_target ON associations(workspace_id, target_id);
`

// Connect opens a pool and applies the schema.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return pool, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
