package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mnemoslab/mnemo/internal/domain"
	"github.com/mnemoslab/mnemo/internal/llm"
)

const (
	reflectDefaultLimit     = 10
	reflectDefaultMaxTokens = 512
)

// ReflectInput asks the service to synthesize an answer over its memories.
type ReflectInput struct {
	Query          string              `json:"query"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	IncludeSources bool                `json:"include_sources,omitempty"`
	DetailLevel    string              `json:"detail_level,omitempty"`
	Depth          int                 `json:"depth,omitempty"`
	Types          []domain.MemoryType `json:"types,omitempty"`
	Tags           []string            `json:"tags,omitempty"`
}

type ReflectResult struct {
	Reflection      string                   `json:"reflection"`
	SourceMemories  []domain.MemoryWithScore `json:"source_memories,omitempty"`
	Confidence      float64                  `json:"confidence"`
	TokensProcessed int                      `json:"tokens_processed"`
}

// Reflect recalls relevant memories and asks the LLM to synthesize them into
// a direct answer. Confidence is the mean retrieval score of the sources.
func (s *MemoryService) Reflect(ctx context.Context, workspaceID string, in ReflectInput) (*ReflectResult, error) {
	if strings.TrimSpace(in.Query) == "" {
		return nil, ErrRecallQueryEmpty
	}
	if s.registry == nil {
		return nil, fmt.Errorf("llm registry not configured")
	}
	maxTokens := in.MaxTokens
	if maxTokens <= 0 {
		maxTokens = reflectDefaultMaxTokens
	}

	recalled, err := s.Recall(ctx, workspaceID, RecallInput{
		Query:               in.Query,
		Mode:                ModeRAG,
		Limit:               reflectDefaultLimit,
		Types:               in.Types,
		Tags:                in.Tags,
		IncludeAssociations: in.Depth > 0,
		TraverseDepth:       in.Depth,
	})
	if err != nil {
		return nil, err
	}

	var sources strings.Builder
	for i, m := range recalled.Memories {
		fmt.Fprintf(&sources, "%d. %s\n", i+1, m.Content)
	}
	if sources.Len() == 0 {
		sources.WriteString("(no relevant memories)\n")
	}

	completion, err := s.registry.Complete(ctx, domain.CompletionRequest{
		Messages: []domain.ChatMessage{{
			Role:    "user",
			Content: fmt.Sprintf(reflectPrompt, sources.String(), in.Query),
		}},
		MaxTokens: maxTokens,
	}, llm.ProfileDefault)
	if err != nil {
		return nil, err
	}

	result := &ReflectResult{
		Reflection:      strings.TrimSpace(completion.Content),
		Confidence:      meanScore(recalled.Memories, len(recalled.Memories)),
		TokensProcessed: completion.PromptTokens + completion.CompletionTokens,
	}
	if in.IncludeSources {
		result.SourceMemories = recalled.Memories
	}
	return result, nil
}
