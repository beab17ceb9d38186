// Package store defines the error variants shared by all storage backends.
package store

import "errors"

var (
	// ErrNotFound is returned when a memory, association, workspace, or
	// context does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned on a unique-constraint violation: a second
	// memory with the same (workspace_id, content_hash), or a second edge
	// with the same (source_id, target_id, relationship). Ingestion treats
	// it as a benign collision and re-reads the existing row.
	ErrDuplicate = errors.New("duplicate")
)
