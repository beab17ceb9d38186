package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/mnemoslab/mnemo/internal/domain"
)

func newContradictionEnv(t *testing.T) (*ContradictionService, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	svc := NewContradictionService(env.memoryStore, env.associations, env.registry, zap.NewNop())
	return svc, env
}

func TestCheckMemoryRecordsConfirmedConflicts(t *testing.T) {
	svc, env := newContradictionEnv(t)
	ctx := context.Background()
	env.registry.responses["default"] = "true"

	vec := []float32{1, 0, 0}
	env.memoryStore.put(&domain.Memory{
		ID: "mem_old", WorkspaceID: testWorkspace,
		Content: "Drew prefers emacs", Embedding: vec,
	})
	newMemory := &domain.Memory{
		ID: "mem_new", WorkspaceID: testWorkspace,
		Content: "Drew prefers vim", Embedding: vec,
	}
	env.memoryStore.put(newMemory)

	contradicted, err := svc.CheckMemory(ctx, newMemory, vec)
	if err != nil {
		t.Fatalf("CheckMemory failed: %v", err)
	}
	if len(contradicted) != 1 || contradicted[0] != "mem_old" {
		t.Fatalf("contradicted = %v, want [mem_old]", contradicted)
	}

	edges, err := env.assocStore.GetForMemory(ctx, testWorkspace, "mem_new", domain.DirectionOutgoing, []string{"contradicts"}, 0)
	if err != nil {
		t.Fatalf("GetForMemory failed: %v", err)
	}
	if len(edges) != 1 || edges[0].TargetID != "mem_old" {
		t.Errorf("contradicts edge missing: %v", edges)
	}
	if edges[0].Strength != contradictionEdgeStrength {
		t.Errorf("edge strength = %v, want %v", edges[0].Strength, contradictionEdgeStrength)
	}
}

func TestCheckMemoryNoConflictNoEdge(t *testing.T) {
	svc, env := newContradictionEnv(t)
	ctx := context.Background()
	env.registry.responses["default"] = "false"

	vec := []float32{1, 0, 0}
	env.memoryStore.put(&domain.Memory{
		ID: "mem_old", WorkspaceID: testWorkspace,
		Content: "Drew likes coffee", Embedding: vec,
	})
	newMemory := &domain.Memory{
		ID: "mem_new", WorkspaceID: testWorkspace,
		Content: "Drew likes strong coffee", Embedding: vec,
	}
	env.memoryStore.put(newMemory)

	contradicted, err := svc.CheckMemory(ctx, newMemory, vec)
	if err != nil {
		t.Fatalf("CheckMemory failed: %v", err)
	}
	if len(contradicted) != 0 {
		t.Errorf("contradicted = %v, want none", contradicted)
	}
	if len(env.assocStore.associations) != 0 {
		t.Error("no edges should be created without a confirmed conflict")
	}
}

func TestCheckMemorySkipsWithoutEmbedding(t *testing.T) {
	svc, env := newContradictionEnv(t)
	m := &domain.Memory{ID: "mem_new", WorkspaceID: testWorkspace, Content: "x"}
	contradicted, err := svc.CheckMemory(context.Background(), m, nil)
	if err != nil || contradicted != nil {
		t.Errorf("CheckMemory without embedding = %v, %v; want nil, nil", contradicted, err)
	}
	_ = env
}

func TestCheckMemoryIgnoresDistantNeighbors(t *testing.T) {
	svc, env := newContradictionEnv(t)
	ctx := context.Background()
	env.registry.responses["default"] = "true"

	// Orthogonal embedding falls below the similarity floor, so the pair is
	// never sent to the LLM.
	env.memoryStore.put(&domain.Memory{
		ID: "mem_far", WorkspaceID: testWorkspace,
		Content: "unrelated", Embedding: []float32{0, 1, 0},
	})
	newMemory := &domain.Memory{
		ID: "mem_new", WorkspaceID: testWorkspace,
		Content: "claim", Embedding: []float32{1, 0, 0},
	}
	env.memoryStore.put(newMemory)

	contradicted, err := svc.CheckMemory(ctx, newMemory, newMemory.Embedding)
	if err != nil {
		t.Fatalf("CheckMemory failed: %v", err)
	}
	if len(contradicted) != 0 {
		t.Errorf("contradicted = %v, want none", contradicted)
	}
}
