package llm

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/mnemoslab/mnemo/internal/domain"
)

func floatPtr(f float64) *float64 { return &f }

func TestResolveTemperature(t *testing.T) {
	tests := []struct {
		name string
		req  domain.CompletionRequest
		want float64
	}{
		{"explicit wins", domain.CompletionRequest{Temperature: floatPtr(0.2), TemperatureFactor: 0.5}, 0.2},
		{"factor scales default", domain.CompletionRequest{TemperatureFactor: 0.7}, 0.7},
		{"provider default", domain.CompletionRequest{}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveTemperature(tt.req, 1.0); got != tt.want {
				t.Errorf("resolveTemperature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeFinishReason(t *testing.T) {
	tests := []struct {
		raw  string
		want domain.FinishReason
	}{
		{"stop", domain.FinishStop},
		{"length", domain.FinishLength},
		{"max_tokens", domain.FinishLength},
		{"content_filter", domain.FinishContentFilter},
		{"refusal", domain.FinishContentFilter},
		{"something_else", domain.FinishStop},
	}
	for _, tt := range tests {
		if got := normalizeFinishReason(tt.raw); got != tt.want {
			t.Errorf("normalizeFinishReason(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestRegistryProfileRouting(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	def := NewMockProvider("from default")
	rec := NewMockProvider("from recall")
	def2 := &namedProvider{MockProvider: def, name: "default-provider"}
	rec2 := &namedProvider{MockProvider: rec, name: "recall-provider"}
	reg.Register(def2)
	reg.Register(rec2)
	reg.Bind(ProfileRecall, "recall-provider")

	got, err := reg.Complete(context.Background(), domain.CompletionRequest{}, ProfileRecall)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got.Content != "from recall" {
		t.Errorf("recall profile routed to wrong provider: %q", got.Content)
	}

	// Unknown profile falls back to the default binding.
	got, err = reg.Complete(context.Background(), domain.CompletionRequest{}, "nonexistent")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got.Content != "from default" {
		t.Errorf("unknown profile should use default, got %q", got.Content)
	}
}

func TestRegistryNoProviders(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	if _, err := reg.Complete(context.Background(), domain.CompletionRequest{}, ProfileDefault); err != ErrUnavailable {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestRegistrySynthesizedStream(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	reg.Register(NewMockProvider("chunked content"))

	ch, err := reg.CompleteStream(context.Background(), domain.CompletionRequest{}, ProfileDefault)
	if err != nil {
		t.Fatalf("CompleteStream failed: %v", err)
	}
	var chunks []domain.CompletionChunk
	for c := range ch {
		chunks = append(chunks, c)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Content != "chunked content" {
		t.Errorf("unexpected first chunk: %+v", chunks[0])
	}
	if !chunks[1].IsFinal {
		t.Error("last chunk should be final")
	}
}

type namedProvider struct {
	*MockProvider
	name string
}

func (p *namedProvider) Name() string { return p.name }
