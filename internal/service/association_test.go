package service

import (
	"context"
	"errors"
	"testing"

	"github.com/mnemoslab/mnemo/internal/domain"
)

func seedMemories(env *testEnv, ids ...string) {
	for _, id := range ids {
		env.memoryStore.put(&domain.Memory{
			ID:          id,
			WorkspaceID: testWorkspace,
			Content:     "memory " + id,
			Importance:  0.5,
		})
	}
}

func TestAssociateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedMemories(env, "mem_a", "mem_b")

	tests := []struct {
		name    string
		in      AssociateInput
		wantErr error
	}{
		{
			"self association",
			AssociateInput{WorkspaceID: testWorkspace, SourceID: "mem_a", TargetID: "mem_a", Relationship: "related_to"},
			ErrSelfAssociation,
		},
		{
			"unknown relationship",
			AssociateInput{WorkspaceID: testWorkspace, SourceID: "mem_a", TargetID: "mem_b", Relationship: "vibes_with"},
			ErrUnknownRelationship,
		},
		{
			"missing source",
			AssociateInput{WorkspaceID: testWorkspace, SourceID: "mem_ghost", TargetID: "mem_b", Relationship: "related_to"},
			ErrMemoryNotFound,
		},
		{
			"missing target",
			AssociateInput{WorkspaceID: testWorkspace, SourceID: "mem_a", TargetID: "mem_ghost", Relationship: "related_to"},
			ErrMemoryNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.associations.Associate(ctx, tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Associate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAssociateDefaultsStrength(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedMemories(env, "mem_a", "mem_b")

	assoc, err := env.associations.Associate(ctx, AssociateInput{
		WorkspaceID:  testWorkspace,
		SourceID:     "mem_a",
		TargetID:     "mem_b",
		Relationship: "related_to",
	})
	if err != nil {
		t.Fatalf("Associate failed: %v", err)
	}
	if assoc.Strength != DefaultAssociationStrength {
		t.Errorf("strength = %v, want %v", assoc.Strength, DefaultAssociationStrength)
	}
}

func TestAssociateDuplicateEdge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedMemories(env, "mem_a", "mem_b")
	mustAssociate(t, env, "mem_a", "mem_b", "related_to", 0.7)

	_, err := env.associations.Associate(ctx, AssociateInput{
		WorkspaceID:  testWorkspace,
		SourceID:     "mem_a",
		TargetID:     "mem_b",
		Relationship: "related_to",
	})
	if !errors.Is(err, ErrAssociationExists) {
		t.Errorf("expected ErrAssociationExists, got %v", err)
	}
}

func TestTraverseDepthZeroReturnsStartOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedMemories(env, "mem_a", "mem_b")
	mustAssociate(t, env, "mem_a", "mem_b", "related_to", 0.7)

	result, err := env.associations.Traverse(ctx, TraverseInput{
		WorkspaceID: testWorkspace,
		StartID:     "mem_a",
		MaxDepth:    0,
	})
	if err != nil {
		t.Fatalf("Traverse failed: %v", err)
	}
	if result.TotalPaths != 0 {
		t.Errorf("depth 0 produced %d paths", result.TotalPaths)
	}
	if len(result.UniqueNodes) != 1 || result.UniqueNodes[0] != "mem_a" {
		t.Errorf("unique nodes = %v, want only the start", result.UniqueNodes)
	}
}

func TestTraverseDiamondRecordsBothRoutes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedMemories(env, "mem_a", "mem_b", "mem_c", "mem_d")
	mustAssociate(t, env, "mem_a", "mem_b", "related_to", 0.8)
	mustAssociate(t, env, "mem_a", "mem_c", "related_to", 0.8)
	mustAssociate(t, env, "mem_b", "mem_d", "related_to", 0.8)
	mustAssociate(t, env, "mem_c", "mem_d", "related_to", 0.8)

	result, err := env.associations.Traverse(ctx, TraverseInput{
		WorkspaceID: testWorkspace,
		StartID:     "mem_a",
		MaxDepth:    2,
		Direction:   domain.DirectionOutgoing,
	})
	if err != nil {
		t.Fatalf("Traverse failed: %v", err)
	}
	// Two depth-1 paths plus two distinct routes into d.
	if result.TotalPaths != 4 {
		t.Errorf("total paths = %d, want 4", result.TotalPaths)
	}
	want := []string{"mem_a", "mem_b", "mem_c", "mem_d"}
	if len(result.UniqueNodes) != len(want) {
		t.Fatalf("unique nodes = %v, want %v", result.UniqueNodes, want)
	}
	for i, id := range want {
		if result.UniqueNodes[i] != id {
			t.Errorf("unique nodes = %v, want %v", result.UniqueNodes, want)
			break
		}
	}
	// Path strengths multiply along hops.
	routesToD := 0
	for _, p := range result.Paths {
		last := p.Steps[len(p.Steps)-1]
		if last.Node == "mem_d" {
			routesToD++
			if diff := p.TotalStrength - 0.64; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("path strength = %v, want 0.64", p.TotalStrength)
			}
		}
	}
	if routesToD != 2 {
		t.Errorf("routes to mem_d = %d, want 2", routesToD)
	}
}

func TestTraverseCycleTerminates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedMemories(env, "mem_a", "mem_b")
	mustAssociate(t, env, "mem_a", "mem_b", "related_to", 0.8)
	mustAssociate(t, env, "mem_b", "mem_a", "related_to", 0.8)

	result, err := env.associations.Traverse(ctx, TraverseInput{
		WorkspaceID: testWorkspace,
		StartID:     "mem_a",
		MaxDepth:    10,
		Direction:   domain.DirectionOutgoing,
	})
	if err != nil {
		t.Fatalf("Traverse failed: %v", err)
	}
	if len(result.UniqueNodes) != 2 {
		t.Errorf("unique nodes = %v, want a and b", result.UniqueNodes)
	}
}

func TestTraverseMinStrengthPrunes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedMemories(env, "mem_a", "mem_strong", "mem_weak")
	mustAssociate(t, env, "mem_a", "mem_strong", "related_to", 0.9)
	mustAssociate(t, env, "mem_a", "mem_weak", "related_to", 0.1)

	result, err := env.associations.Traverse(ctx, TraverseInput{
		WorkspaceID: testWorkspace,
		StartID:     "mem_a",
		MaxDepth:    1,
		MinStrength: DefaultMinEdgeStrength,
	})
	if err != nil {
		t.Fatalf("Traverse failed: %v", err)
	}
	for _, node := range result.UniqueNodes {
		if node == "mem_weak" {
			t.Error("weak edge survived min-strength filter")
		}
	}
	if result.TotalPaths != 1 {
		t.Errorf("total paths = %d, want 1", result.TotalPaths)
	}
}

func TestTraverseInvalidDirection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedMemories(env, "mem_a")

	_, err := env.associations.Traverse(ctx, TraverseInput{
		WorkspaceID: testWorkspace,
		StartID:     "mem_a",
		MaxDepth:    1,
		Direction:   "sideways",
	})
	if !errors.Is(err, ErrInvalidDirection) {
		t.Errorf("expected ErrInvalidDirection, got %v", err)
	}
}

func TestGetCausalChainWalksIncomingCauses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedMemories(env, "mem_outage", "mem_deploy", "mem_note")
	mustAssociate(t, env, "mem_deploy", "mem_outage", "causes", 0.9)
	mustAssociate(t, env, "mem_note", "mem_outage", "related_to", 0.9)

	result, err := env.associations.GetCausalChain(ctx, testWorkspace, "mem_outage", 0)
	if err != nil {
		t.Fatalf("GetCausalChain failed: %v", err)
	}
	found := false
	for _, node := range result.UniqueNodes {
		if node == "mem_note" {
			t.Error("non-causal edge included in causal chain")
		}
		if node == "mem_deploy" {
			found = true
		}
	}
	if !found {
		t.Error("causal ancestor mem_deploy missing from chain")
	}
}

func TestGetSolutionsForProblem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedMemories(env, "mem_problem", "mem_fix", "mem_workaround", "mem_noise")
	mustAssociate(t, env, "mem_fix", "mem_problem", "solves", 0.9)
	mustAssociate(t, env, "mem_workaround", "mem_problem", "addresses", 0.6)
	mustAssociate(t, env, "mem_noise", "mem_problem", "related_to", 0.9)

	solutions, err := env.associations.GetSolutionsForProblem(ctx, testWorkspace, "mem_problem")
	if err != nil {
		t.Fatalf("GetSolutionsForProblem failed: %v", err)
	}
	if len(solutions) != 2 {
		t.Fatalf("solutions = %v, want mem_fix and mem_workaround", solutions)
	}
	set := map[string]bool{solutions[0]: true, solutions[1]: true}
	if !set["mem_fix"] || !set["mem_workaround"] {
		t.Errorf("solutions = %v", solutions)
	}
}

func TestFindContradictionsBothDirections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedMemories(env, "mem_claim", "mem_counter", "mem_countered_by")
	mustAssociate(t, env, "mem_claim", "mem_counter", "contradicts", 0.9)
	mustAssociate(t, env, "mem_countered_by", "mem_claim", "contradicts", 0.9)

	result, err := env.associations.FindContradictions(ctx, testWorkspace, "mem_claim")
	if err != nil {
		t.Fatalf("FindContradictions failed: %v", err)
	}
	if len(result.UniqueNodes) != 3 {
		t.Errorf("unique nodes = %v, want all three memories", result.UniqueNodes)
	}
}
