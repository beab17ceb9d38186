package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/mnemoslab/mnemo/internal/domain"
	"github.com/mnemoslab/mnemo/internal/embedding"
)

const testWorkspace = "ws_test"

type testEnv struct {
	memories     *MemoryService
	memoryStore  *mockMemoryStore
	assocStore   *mockAssociationStore
	scheduler    *mockScheduler
	registry     *stubRegistry
	associations *AssociationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	memoryStore := newMockMemoryStore()
	assocStore := newMockAssociationStore()
	registry := newStubRegistry()
	registry.responses["default"] = "false"
	registry.responses["ontology"] = "related_to"

	ontology := NewOntologyService(registry, logger)
	associations := NewAssociationService(assocStore, memoryStore, ontology, logger)
	dedup := NewDedupService(memoryStore, logger)
	memories := NewMemoryService(memoryStore, embedding.NewMockClient(8), dedup, logger)

	sched := &mockScheduler{}
	memories.SetRegistry(registry)
	memories.SetAssociations(associations)
	memories.SetExtraction(NewExtractionService(registry, logger))
	memories.SetDecay(NewDecayService(memoryStore, logger))
	memories.SetScheduler(sched)

	return &testEnv{
		memories:     memories,
		memoryStore:  memoryStore,
		assocStore:   assocStore,
		scheduler:    sched,
		registry:     registry,
		associations: associations,
	}
}

func TestRememberValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		workspaceID string
		in          RememberInput
		wantErr     error
	}{
		{"missing workspace", "", RememberInput{Content: "x"}, ErrWorkspaceIDMissing},
		{"empty content", testWorkspace, RememberInput{Content: "   "}, ErrContentEmpty},
		{"bad type", testWorkspace, RememberInput{Content: "x", Type: "imaginary"}, ErrInvalidMemoryType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.memories.Remember(ctx, tt.workspaceID, tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Remember() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRememberCreatesMemory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.memories.Remember(ctx, testWorkspace, RememberInput{Content: "Python is great"})
	if err != nil {
		t.Fatalf("Remember failed: %v", err)
	}
	if result.Action != ActionCreate {
		t.Errorf("action = %s, want create", result.Action)
	}
	if result.Memory.ID == "" {
		t.Error("expected a memory id")
	}
	if result.Memory.Type != domain.MemoryTypeSemantic {
		t.Errorf("default type = %s, want semantic", result.Memory.Type)
	}
	if result.Memory.Importance != DefaultImportance {
		t.Errorf("default importance = %v, want %v", result.Memory.Importance, DefaultImportance)
	}
	if result.Memory.ContentHash != domain.HashContent("Python is great") {
		t.Error("content hash not set from normalized content")
	}
}

func TestRememberDuplicateContentSkips(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.memories.Remember(ctx, testWorkspace, RememberInput{Content: "Python is great"})
	if err != nil {
		t.Fatalf("first Remember failed: %v", err)
	}
	second, err := env.memories.Remember(ctx, testWorkspace, RememberInput{Content: "Python is great"})
	if err != nil {
		t.Fatalf("second Remember failed: %v", err)
	}
	if second.Action != ActionSkip {
		t.Errorf("second action = %s, want skip", second.Action)
	}
	if second.Memory.ID != first.Memory.ID {
		t.Errorf("skip returned id %s, want %s", second.Memory.ID, first.Memory.ID)
	}

	// Exactly one row with that hash.
	count := 0
	for _, m := range env.memoryStore.memories {
		if m.ContentHash == first.Memory.ContentHash {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one stored row, found %d", count)
	}
}

func TestRememberNearDuplicateMergesIntoExisting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Seed an existing memory whose embedding matches the incoming content's
	// mock embedding exactly (similarity 1.0 >= duplicate threshold).
	incoming := "Drew codes in Go"
	vec, _ := embedding.NewMockClient(8).Embed(ctx, incoming)
	env.memoryStore.put(&domain.Memory{
		ID:          "mem_existing",
		WorkspaceID: testWorkspace,
		Content:     "Drew writes Go code",
		Importance:  0.5,
		Tags:        []string{"coding"},
		Embedding:   vec,
	})

	result, err := env.memories.Remember(ctx, testWorkspace, RememberInput{
		Content: incoming,
		Tags:    []string{"golang"},
	})
	if err != nil {
		t.Fatalf("Remember failed: %v", err)
	}
	if result.Action != ActionUpdate {
		t.Fatalf("action = %s, want update", result.Action)
	}
	if result.Memory.ID != "mem_existing" {
		t.Errorf("updated id = %s, want mem_existing", result.Memory.ID)
	}
	if !hasAllTags(result.Memory.Tags, []string{"coding", "golang"}) {
		t.Errorf("tags not merged: %v", result.Memory.Tags)
	}
}

func TestRememberCompositeSchedulesDecomposition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.memories.Remember(ctx, testWorkspace, RememberInput{
		Content: "Drew likes Python for backend. He also prefers vim.",
	})
	if err != nil {
		t.Fatalf("Remember failed: %v", err)
	}
	if result.DecompositionTaskID == "" {
		t.Fatal("expected a decomposition task id")
	}
	tasks := env.scheduler.tasksOfType(TaskDecomposeFacts)
	if len(tasks) != 1 {
		t.Fatalf("expected one decompose task, got %d", len(tasks))
	}
	if tasks[0].Payload["memory_id"] != result.Memory.ID {
		t.Errorf("task payload memory_id = %v, want %s", tasks[0].Payload["memory_id"], result.Memory.ID)
	}
	// Post-store pipeline must not have run on the composite.
	if len(env.scheduler.tasksOfType(TaskGenerateTiers)) != 0 {
		t.Error("composite memory should not get tier generation before decomposition")
	}
}

func TestWorkingMemoryNeverDecomposed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.memories.Remember(ctx, testWorkspace, RememberInput{
		Content: "Current task state. Step two of four. Waiting on review.",
		Type:    domain.MemoryTypeWorking,
	})
	if err != nil {
		t.Fatalf("Remember failed: %v", err)
	}
	if result.DecompositionTaskID != "" {
		t.Error("working memory must not be decomposed")
	}
}

func TestIngestFactSkipReturnsNil(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.memories.Remember(ctx, testWorkspace, RememberInput{Content: "vim is an editor"}); err != nil {
		t.Fatalf("Remember failed: %v", err)
	}
	fact, err := env.memories.IngestFact(ctx, testWorkspace, RememberInput{Content: "vim is an editor"}, "mem_parent")
	if err != nil {
		t.Fatalf("IngestFact failed: %v", err)
	}
	if fact != nil {
		t.Errorf("skipped fact should return nil, got %v", fact.ID)
	}
}

func TestIngestFactRecordsSource(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	fact, err := env.memories.IngestFact(ctx, testWorkspace, RememberInput{Content: "Drew prefers vim"}, "mem_parent")
	if err != nil {
		t.Fatalf("IngestFact failed: %v", err)
	}
	if fact.SourceMemoryID != "mem_parent" {
		t.Errorf("source_memory_id = %q, want mem_parent", fact.SourceMemoryID)
	}
}

func TestForgetSoftAndHard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, _ := env.memories.Remember(ctx, testWorkspace, RememberInput{Content: "to be forgotten"})
	if err := env.memories.Forget(ctx, testWorkspace, created.Memory.ID, false); err != nil {
		t.Fatalf("soft Forget failed: %v", err)
	}
	if _, err := env.memories.Get(ctx, testWorkspace, created.Memory.ID); !errors.Is(err, ErrMemoryNotFound) {
		t.Errorf("tombstoned memory still visible: %v", err)
	}

	if err := env.memories.Forget(ctx, testWorkspace, "mem_missing", true); !errors.Is(err, ErrMemoryNotFound) {
		t.Errorf("expected ErrMemoryNotFound, got %v", err)
	}
}

func TestDecayMemorySubtractiveClampsAtZero(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, _ := env.memories.Remember(ctx, testWorkspace, RememberInput{Content: "fading memory"})

	lowered, err := env.memories.DecayMemory(ctx, testWorkspace, created.Memory.ID, 0.2)
	if err != nil {
		t.Fatalf("DecayMemory failed: %v", err)
	}
	if lowered.Importance != 0.3 {
		t.Errorf("importance = %v, want 0.3", lowered.Importance)
	}

	floored, err := env.memories.DecayMemory(ctx, testWorkspace, created.Memory.ID, 5.0)
	if err != nil {
		t.Fatalf("DecayMemory failed: %v", err)
	}
	if floored.Importance != 0 {
		t.Errorf("importance = %v, want clamp at 0", floored.Importance)
	}
}

func TestLooksComposite(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{"Drew likes Python. He also prefers vim.", true},
		{"short note", false},
		{"one sentence without much structure", false},
		{"a and b and c and d", true},
	}
	for _, tt := range tests {
		if got := looksComposite(tt.content); got != tt.want {
			t.Errorf("looksComposite(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}
