package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/mnemoslab/mnemo/internal/domain"
)

func TestValidateRelationship(t *testing.T) {
	svc := NewOntologyService(nil, zap.NewNop())
	if err := svc.ValidateRelationship("causes"); err != nil {
		t.Errorf("causes should validate: %v", err)
	}
	err := svc.ValidateRelationship("vibes_with")
	if !errors.Is(err, ErrUnknownRelationship) {
		t.Errorf("expected ErrUnknownRelationship, got %v", err)
	}
}

func TestNormalizeRelationshipAnswer(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"causes", "causes"},
		{"  Causes  ", "causes"},
		{`"caused_by"`, "caused_by"},
		{"related_to.", "related_to"},
		{"solves because the first", "solves"},
		{"contradicts\nexplanation follows", "contradicts"},
	}
	for _, tt := range tests {
		if got := normalizeRelationshipAnswer(tt.raw); got != tt.want {
			t.Errorf("normalizeRelationshipAnswer(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestUniquePrefixMatch(t *testing.T) {
	// "contradic" uniquely prefixes contradicts; "c" is ambiguous.
	if match, ok := uniquePrefixMatch("contradic"); !ok || match != "contradicts" {
		t.Errorf("uniquePrefixMatch(contradic) = %q, %v", match, ok)
	}
	if _, ok := uniquePrefixMatch("c"); ok {
		t.Error("ambiguous prefix should not match")
	}
	if _, ok := uniquePrefixMatch(""); ok {
		t.Error("empty prefix should not match")
	}
}

func TestClassifyRelationshipUsesLLMAnswer(t *testing.T) {
	registry := newStubRegistry()
	registry.responses["ontology"] = "caused_by"
	svc := NewOntologyService(registry, zap.NewNop())

	got := svc.ClassifyRelationship(context.Background(), "the outage", "the deploy")
	if got != "caused_by" {
		t.Errorf("classified = %q, want caused_by", got)
	}
}

func TestClassifyRelationshipFallsBack(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *stubRegistry)
	}{
		{"provider error", func(r *stubRegistry) { r.err = errors.New("down") }},
		{"nonsense answer", func(r *stubRegistry) { r.responses["ontology"] = "zebra" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := newStubRegistry()
			tt.setup(registry)
			svc := NewOntologyService(registry, zap.NewNop())
			got := svc.ClassifyRelationship(context.Background(), "a", "b")
			if got != domain.RelationshipFallback {
				t.Errorf("classified = %q, want fallback %q", got, domain.RelationshipFallback)
			}
		})
	}

	nilRegistry := NewOntologyService(nil, zap.NewNop())
	if got := nilRegistry.ClassifyRelationship(context.Background(), "a", "b"); got != domain.RelationshipFallback {
		t.Errorf("nil registry classified = %q, want fallback", got)
	}
}

func TestClassifyRelationshipResolvesTruncation(t *testing.T) {
	registry := newStubRegistry()
	registry.responses["ontology"] = "contradic"
	svc := NewOntologyService(registry, zap.NewNop())

	if got := svc.ClassifyRelationship(context.Background(), "a", "b"); got != "contradicts" {
		t.Errorf("classified = %q, want contradicts", got)
	}
}

func TestCausalTypesSortedAndCausalOnly(t *testing.T) {
	types := CausalTypes()
	if len(types) == 0 {
		t.Fatal("no causal types")
	}
	for i := 1; i < len(types); i++ {
		if types[i-1] >= types[i] {
			t.Fatalf("causal types not sorted: %v", types)
		}
	}
	for _, rt := range types {
		if domain.BaseOntology[rt].Category != domain.CategoryCausal {
			t.Errorf("%s is not causal", rt)
		}
	}
}
