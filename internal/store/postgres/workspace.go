package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mnemoslab/mnemo/internal/domain"
	"github.com/mnemoslab/mnemo/internal/store"
)

type WorkspaceStore struct {
	db *pgxpool.Pool
}

func NewWorkspaceStore(db *pgxpool.Pool) *WorkspaceStore {
	return &WorkspaceStore{db: db}
}

func (s *WorkspaceStore) CreateWorkspace(ctx context.Context, ws *domain.Workspace) error {
	if ws.ID == "" {
		ws.ID = domain.NewWorkspaceID()
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO workspaces (id, name, settings) VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at`,
		ws.ID, ws.Name, ws.Settings,
	).Scan(&ws.CreatedAt, &ws.UpdatedAt)
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
	err := s.db.QueryRow(ctx,
		`SELECT id, name, settings, created_at, updated_at FROM workspaces WHERE id = $1`, id,
	).Scan(&ws.ID, &ws.Name, &ws.Settings, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &ws, nil
}

func (s *WorkspaceStore) CreateContext(ctx context.Context, c *domain.Context) error {
	if c.ID == "" {
		c.ID = domain.NewContextID()
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO contexts (id, workspace_id, name, settings) VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`,
		c.ID, c.WorkspaceID, c.Name, c.Settings,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
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
	err := s.db.QueryRow(ctx,
		`SELECT id, workspace_id, name, settings, created_at, updated_at
		 FROM contexts WHERE workspace_id = $1 AND id = $2`, workspaceID, id,
	).Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.Settings, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
