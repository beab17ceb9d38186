// Package sqlite is the default embedded storage backend. Embeddings are kept
// as binary blobs and ranked in-process by cosine similarity, which is
// adequate for the single-file deployments this backend targets.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS workspaces (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	settings   TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS contexts (
	id           TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	name         TEXT NOT NULL,
	settings     TEXT,
	created_at   TIMESTAMP NOT NULL,
	updated_at   TIMESTAMP NOT NULL
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
	importance       REAL NOT NULL,
	pinned           INTEGER NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'active',
	tags             TEXT,
	metadata         TEXT,
	embedding        BLOB,
	source_memory_id TEXT,
	created_at       TIMESTAMP NOT NULL,
	updated_at       TIMESTAMP NOT NULL,
	last_accessed_at TIMESTAMP,
	access_count     INTEGER NOT NULL DEFAULT 0,
	deleted_at       TIMESTAMP
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
	strength     REAL NOT NULL,
	metadata     TEXT,
	created_at   TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_assoc_edge
	ON associations(source_id, target_id, relationship);
CREATE INDEX IF NOT EXISTS idx_assoc_source ON associations(workspace_id, source_id);
CREATE INDEX IF NOT EXISTS idx_assoc_target ON associations(workspace_id, target_id);
`

// Open opens (creating if needed) the single-file database at dsn and applies
// the schema. Use ":memory:" for tests.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite supports one concurrent writer. A single open connection
	// serialises writes; WAL keeps readers unblocked.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return db, nil
}

// isUniqueViolation reports whether err is a SQLite unique-constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
