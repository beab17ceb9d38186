package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mnemoslab/mnemo/internal/domain"
	"github.com/mnemoslab/mnemo/internal/store"
)

var (
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrContextNotFound   = errors.New("context not found")
	ErrWorkspaceExists   = errors.New("workspace already exists")
)

// WorkspaceService manages workspaces and their contexts.
type WorkspaceService struct {
	workspaceStore domain.WorkspaceStore
	logger         *zap.Logger
}

func NewWorkspaceService(ws domain.WorkspaceStore, logger *zap.Logger) *WorkspaceService {
	return &WorkspaceService{workspaceStore: ws, logger: logger}
}

func (s *WorkspaceService) CreateWorkspace(ctx context.Context, name string, settings map[string]any) (*domain.Workspace, error) {
	now := time.Now().UTC()
	ws := &domain.Workspace{
		ID:        domain.NewWorkspaceID(),
		Name:      name,
		Settings:  settings,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.workspaceStore.CreateWorkspace(ctx, ws); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrWorkspaceExists
		}
		return nil, err
	}
	return ws, nil
}

func (s *WorkspaceService) GetWorkspace(ctx context.Context, id string) (*domain.Workspace, error) {
	ws, err := s.workspaceStore.GetWorkspace(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, err
	}
	return ws, nil
}

func (s *WorkspaceService) CreateContext(ctx context.Context, workspaceID, name string, settings map[string]any) (*domain.Context, error) {
	if _, err := s.GetWorkspace(ctx, workspaceID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	c := &domain.Context{
		ID:          domain.NewContextID(),
		WorkspaceID: workspaceID,
		Name:        name,
		Settings:    settings,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.workspaceStore.CreateContext(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetEffectiveSettings returns the context's settings merged over the
// workspace's, or the workspace settings alone when contextID is empty.
func (s *WorkspaceService) GetEffectiveSettings(ctx context.Context, workspaceID, contextID string) (map[string]any, error) {
	ws, err := s.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if contextID == "" {
		return (*domain.Context)(nil).EffectiveSettings(ws), nil
	}
	c, err := s.workspaceStore.GetContext(ctx, workspaceID, contextID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrContextNotFound
		}
		return nil, err
	}
	return c.EffectiveSettings(ws), nil
}
