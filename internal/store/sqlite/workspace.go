package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mnemoslab/mnemo/internal/domain"
	"github.com/mnemoslab/mnemo/internal/store"
)

type WorkspaceStore struct {
	db *sql.DB
}

func NewWorkspaceStore(db *sql.DB) *WorkspaceStore {
	return &WorkspaceStore{db: db}
}

func (s *WorkspaceStore) CreateWorkspace(ctx context.Context, ws *domain.Workspace) error {
	if ws.ID == "" {
		ws.ID = domain.NewWorkspaceID()
	}
	now := time.Now().UTC()
	ws.CreatedAt = now
	ws.UpdatedAt = now

	settingsJSON, err := marshalJSON(ws.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workspaces (id, name, settings, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		ws.ID, ws.Name, settingsJSON, ws.CreatedAt, ws.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert workspace: %w", err)
	}
	return nil
}

func (s *WorkspaceStore) GetWorkspace(ctx context.Context, id string) (*domain.Workspace, error) {
	var ws domain.Workspace
	var settingsJSON sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, settings, created_at, updated_at FROM workspaces WHERE id = ?`, id,
	).Scan(&ws.ID, &ws.Name, &settingsJSON, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if settingsJSON.Valid && settingsJSON.String != "" {
		if err := json.Unmarshal([]byte(settingsJSON.String), &ws.Settings); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	}
	return &ws, nil
}

func (s *WorkspaceStore) CreateContext(ctx context.Context, c *domain.Context) error {
	if c.ID == "" {
		c.ID = domain.NewContextID()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	settingsJSON, err := marshalJSON(c.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO contexts (id, workspace_id, name, settings, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.WorkspaceID, c.Name, settingsJSON, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert context: %w", err)
	}
	return nil
}

func (s *WorkspaceStore) GetContext(ctx context.Context, workspaceID, id string) (*domain.Context, error) {
	var c domain.Context
	var settingsJSON sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, workspace_id, name, settings, created_at, updated_at
		 FROM contexts WHERE workspace_id = ? AND id = ?`, workspaceID, id,
	).Scan(&c.ID, &c.WorkspaceID, &c.Name, &settingsJSON, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if settingsJSON.Valid && settingsJSON.String != "" {
		if err := json.Unmarshal([]byte(settingsJSON.String), &c.Settings); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	}
	return &c, nil
}
