package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/mnemoslab/mnemo/internal/domain"
	"github.com/mnemoslab/mnemo/internal/store"
)

type mockWorkspaceStore struct {
	mu         sync.Mutex
	workspaces map[string]*domain.Workspace
	contexts   map[string]*domain.Context
}

func newMockWorkspaceStore() *mockWorkspaceStore {
	return &mockWorkspaceStore{
		workspaces: make(map[string]*domain.Workspace),
		contexts:   make(map[string]*domain.Context),
	}
}

func (s *mockWorkspaceStore) CreateWorkspace(ctx context.Context, ws *domain.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.workspaces {
		if existing.ID == ws.ID || existing.Name == ws.Name {
			return store.ErrDuplicate
		}
	}
	cp := *ws
	s.workspaces[ws.ID] = &cp
	return nil
}

func (s *mockWorkspaceStore) GetWorkspace(ctx context.Context, id string) (*domain.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.workspaces[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *ws
	return &cp, nil
}

func (s *mockWorkspaceStore) CreateContext(ctx context.Context, c *domain.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.contexts[c.ID] = &cp
	return nil
}

func (s *mockWorkspaceStore) GetContext(ctx context.Context, workspaceID, id string) (*domain.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contexts[id]
	if !ok || c.WorkspaceID != workspaceID {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func TestCreateAndGetWorkspace(t *testing.T) {
	svc := NewWorkspaceService(newMockWorkspaceStore(), zap.NewNop())
	ctx := context.Background()

	ws, err := svc.CreateWorkspace(ctx, "project-alpha", map[string]any{"decay_rate": 0.9})
	if err != nil {
		t.Fatalf("CreateWorkspace failed: %v", err)
	}
	if ws.ID == "" {
		t.Fatal("expected a workspace id")
	}

	got, err := svc.GetWorkspace(ctx, ws.ID)
	if err != nil {
		t.Fatalf("GetWorkspace failed: %v", err)
	}
	if got.Name != "project-alpha" {
		t.Errorf("name = %q", got.Name)
	}

	if _, err := svc.CreateWorkspace(ctx, "project-alpha", nil); !errors.Is(err, ErrWorkspaceExists) {
		t.Errorf("expected ErrWorkspaceExists, got %v", err)
	}
	if _, err := svc.GetWorkspace(ctx, "ws_missing"); !errors.Is(err, ErrWorkspaceNotFound) {
		t.Errorf("expected ErrWorkspaceNotFound, got %v", err)
	}
}

func TestCreateContextRequiresWorkspace(t *testing.T) {
	svc := NewWorkspaceService(newMockWorkspaceStore(), zap.NewNop())
	ctx := context.Background()

	if _, err := svc.CreateContext(ctx, "ws_missing", "session", nil); !errors.Is(err, ErrWorkspaceNotFound) {
		t.Errorf("expected ErrWorkspaceNotFound, got %v", err)
	}

	ws, _ := svc.CreateWorkspace(ctx, "project", nil)
	c, err := svc.CreateContext(ctx, ws.ID, "session", map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("CreateContext failed: %v", err)
	}
	if c.WorkspaceID != ws.ID {
		t.Errorf("context workspace = %s, want %s", c.WorkspaceID, ws.ID)
	}
}

func TestGetEffectiveSettingsMergesContextOverWorkspace(t *testing.T) {
	svc := NewWorkspaceService(newMockWorkspaceStore(), zap.NewNop())
	ctx := context.Background()

	ws, _ := svc.CreateWorkspace(ctx, "project", map[string]any{"decay_rate": 0.9, "tolerance": "moderate"})
	c, _ := svc.CreateContext(ctx, ws.ID, "session", map[string]any{"tolerance": "strict"})

	settings, err := svc.GetEffectiveSettings(ctx, ws.ID, c.ID)
	if err != nil {
		t.Fatalf("GetEffectiveSettings failed: %v", err)
	}
	if settings["tolerance"] != "strict" {
		t.Errorf("tolerance = %v, want context override", settings["tolerance"])
	}
	if settings["decay_rate"] != 0.9 {
		t.Errorf("decay_rate = %v, want inherited 0.9", settings["decay_rate"])
	}

	wsOnly, err := svc.GetEffectiveSettings(ctx, ws.ID, "")
	if err != nil {
		t.Fatalf("GetEffectiveSettings failed: %v", err)
	}
	if wsOnly["tolerance"] != "moderate" {
		t.Errorf("tolerance = %v, want workspace value", wsOnly["tolerance"])
	}

	if _, err := svc.GetEffectiveSettings(ctx, ws.ID, "ctx_missing"); !errors.Is(err, ErrContextNotFound) {
		t.Errorf("expected ErrContextNotFound, got %v", err)
	}
}
