package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mnemoslab/mnemo/internal/domain"
	"github.com/mnemoslab/mnemo/internal/llm"
	"github.com/mnemoslab/mnemo/internal/store"
)

const (
	// abstractFallbackChars bounds the truncation fallback for tier 1.
	abstractFallbackChars = 100
	// overviewFallbackChars bounds the truncation fallback for tier 2.
	overviewFallbackChars = 500

	tierTemperatureFactor = 0.7
)

// TierService produces the hierarchical summaries stored on a memory: a one
// sentence abstract (tier 1) and a 2-3 sentence overview (tier 2).
type TierService struct {
	memoryStore domain.MemoryStore
	registry    domain.LLMRegistry
	logger      *zap.Logger
}

func NewTierService(ms domain.MemoryStore, registry domain.LLMRegistry, logger *zap.Logger) *TierService {
	return &TierService{memoryStore: ms, registry: registry, logger: logger}
}

// GenerateTiers fills in abstract and overview for a memory. Existing tiers
// are kept unless force is set. The overview is generated from the content
// first and the abstract is derived from the overview, since a shorter input
// produces a better single-sentence summary. LLM failure falls back to
// truncated content prefixes.
func (s *TierService) GenerateTiers(ctx context.Context, workspaceID, memoryID string, force bool) error {
	m, err := s.memoryStore.Get(ctx, workspaceID, memoryID, false)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMemoryNotFound
		}
		return err
	}
	if m.Abstract != "" && m.Overview != "" && !force {
		return nil
	}

	overview := s.generateOverview(ctx, m.Content)
	abstract := s.generateAbstract(ctx, overview)

	_, err = s.memoryStore.Update(ctx, workspaceID, memoryID, domain.MemoryUpdate{
		Abstract: &abstract,
		Overview: &overview,
	})
	return err
}

func (s *TierService) generateOverview(ctx context.Context, content string) string {
	if s.registry != nil {
		completion, err := s.registry.Complete(ctx, domain.CompletionRequest{
			System:            overviewSystemPrompt,
			Messages:          []domain.ChatMessage{{Role: "user", Content: content}},
			MaxTokens:         200,
			TemperatureFactor: tierTemperatureFactor,
		}, llm.ProfileTierGeneration)
		if err == nil && completion.Content != "" {
			return completion.Content
		}
		s.logger.Warn("overview generation failed, falling back to truncation", zap.Error(err))
	}
	return truncate(content, overviewFallbackChars)
}

func (s *TierService) generateAbstract(ctx context.Context, overview string) string {
	if s.registry != nil {
		completion, err := s.registry.Complete(ctx, domain.CompletionRequest{
			System:            abstractSystemPrompt,
			Messages:          []domain.ChatMessage{{Role: "user", Content: overview}},
			MaxTokens:         60,
			TemperatureFactor: tierTemperatureFactor,
		}, llm.ProfileTierGeneration)
		if err == nil && completion.Content != "" {
			return completion.Content
		}
		s.logger.Warn("abstract generation failed, falling back to truncation", zap.Error(err))
	}
	return truncate(overview, abstractFallbackChars)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
