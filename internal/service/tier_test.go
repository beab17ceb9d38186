package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mnemoslab/mnemo/internal/domain"
)

func TestGenerateTiersFromLLM(t *testing.T) {
	store := newMockMemoryStore()
	registry := newStubRegistry()
	registry.responses["tier_generation"] = "A concise summary."
	svc := NewTierService(store, registry, zap.NewNop())
	ctx := context.Background()

	store.put(&domain.Memory{ID: "mem_x", WorkspaceID: testWorkspace, Content: "long detailed content"})

	if err := svc.GenerateTiers(ctx, testWorkspace, "mem_x", false); err != nil {
		t.Fatalf("GenerateTiers failed: %v", err)
	}
	m := store.memories["mem_x"]
	if m.Overview != "A concise summary." {
		t.Errorf("overview = %q", m.Overview)
	}
	if m.Abstract != "A concise summary." {
		t.Errorf("abstract = %q", m.Abstract)
	}
}

func TestGenerateTiersSkipsWhenPresent(t *testing.T) {
	store := newMockMemoryStore()
	registry := newStubRegistry()
	registry.responses["tier_generation"] = "replacement"
	svc := NewTierService(store, registry, zap.NewNop())
	ctx := context.Background()

	store.put(&domain.Memory{
		ID: "mem_x", WorkspaceID: testWorkspace, Content: "content",
		Abstract: "keep me", Overview: "keep me too",
	})

	if err := svc.GenerateTiers(ctx, testWorkspace, "mem_x", false); err != nil {
		t.Fatalf("GenerateTiers failed: %v", err)
	}
	if store.memories["mem_x"].Abstract != "keep me" {
		t.Error("existing tiers overwritten without force")
	}

	if err := svc.GenerateTiers(ctx, testWorkspace, "mem_x", true); err != nil {
		t.Fatalf("forced GenerateTiers failed: %v", err)
	}
	if store.memories["mem_x"].Abstract != "replacement" {
		t.Error("force did not regenerate tiers")
	}
}

func TestGenerateTiersFallsBackToTruncation(t *testing.T) {
	store := newMockMemoryStore()
	registry := newStubRegistry()
	registry.err = errors.New("provider down")
	svc := NewTierService(store, registry, zap.NewNop())
	ctx := context.Background()

	content := strings.Repeat("x", 800)
	store.put(&domain.Memory{ID: "mem_long", WorkspaceID: testWorkspace, Content: content})

	if err := svc.GenerateTiers(ctx, testWorkspace, "mem_long", false); err != nil {
		t.Fatalf("GenerateTiers failed: %v", err)
	}
	m := store.memories["mem_long"]
	if len(m.Overview) != overviewFallbackChars {
		t.Errorf("overview fallback length = %d, want %d", len(m.Overview), overviewFallbackChars)
	}
	if len(m.Abstract) != abstractFallbackChars {
		t.Errorf("abstract fallback length = %d, want %d", len(m.Abstract), abstractFallbackChars)
	}
}

func TestGenerateTiersMissingMemory(t *testing.T) {
	svc := NewTierService(newMockMemoryStore(), newStubRegistry(), zap.NewNop())
	err := svc.GenerateTiers(context.Background(), testWorkspace, "mem_ghost", false)
	if !errors.Is(err, ErrMemoryNotFound) {
		t.Errorf("expected ErrMemoryNotFound, got %v", err)
	}
}

func TestTruncateKeepsShortStrings(t *testing.T) {
	if got := truncate("short", 100); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate(strings.Repeat("a", 10), 4); got != "aaaa" {
		t.Errorf("truncate = %q", got)
	}
}
