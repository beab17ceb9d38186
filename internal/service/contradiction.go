package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mnemoslab/mnemo/internal/domain"
	"github.com/mnemoslab/mnemo/internal/llm"
)

const (
	// contradictionProbeLimit bounds how many nearby memories are checked
	// against a new one.
	contradictionProbeLimit = 5
	// contradictionMinSimilarity keeps the check to semantically related
	// neighbors; unrelated statements rarely contradict.
	contradictionMinSimilarity = 0.5
	contradictionEdgeStrength  = 0.9
)

// ContradictionService checks a new memory against its nearest neighbors and
// records contradicts edges when the LLM confirms a conflict.
type ContradictionService struct {
	memoryStore  domain.MemoryStore
	associations *AssociationService
	registry     domain.LLMRegistry
	logger       *zap.Logger
}

func NewContradictionService(ms domain.MemoryStore, as *AssociationService, registry domain.LLMRegistry, logger *zap.Logger) *ContradictionService {
	return &ContradictionService{
		memoryStore:  ms,
		associations: as,
		registry:     registry,
		logger:       logger,
	}
}

// CheckMemory probes neighbors of m and creates a contradicts edge for each
// confirmed conflict. Returns the ids of contradicted memories.
func (s *ContradictionService) CheckMemory(ctx context.Context, m *domain.Memory, embedding []float32) ([]string, error) {
	if s.registry == nil || len(embedding) == 0 {
		return nil, nil
	}

	neighbors, err := s.memoryStore.Search(ctx, m.WorkspaceID, embedding, contradictionProbeLimit, contradictionMinSimilarity, domain.SearchFilters{})
	if err != nil {
		return nil, fmt.Errorf("contradiction neighbor probe: %w", err)
	}

	var contradicted []string
	for _, neighbor := range neighbors {
		if neighbor.ID == m.ID {
			continue
		}
		conflict, err := s.checkPair(ctx, m.Content, neighbor.Content)
		if err != nil {
			s.logger.Warn("contradiction check failed for pair",
				zap.String("memory_id", m.ID),
				zap.String("neighbor_id", neighbor.ID),
				zap.Error(err))
			continue
		}
		if !conflict {
			continue
		}

		_, err = s.associations.Associate(ctx, AssociateInput{
			WorkspaceID:  m.WorkspaceID,
			SourceID:     m.ID,
			TargetID:     neighbor.ID,
			Relationship: "contradicts",
			Strength:     contradictionEdgeStrength,
		})
		if err != nil && !errors.Is(err, ErrAssociationExists) {
			s.logger.Warn("failed to record contradiction edge",
				zap.String("memory_id", m.ID),
				zap.String("neighbor_id", neighbor.ID),
				zap.Error(err))
			continue
		}
		contradicted = append(contradicted, neighbor.ID)
	}
	return contradicted, nil
}

func (s *ContradictionService) checkPair(ctx context.Context, a, b string) (bool, error) {
	completion, err := s.registry.Complete(ctx, domain.CompletionRequest{
		Messages: []domain.ChatMessage{{
			Role:    "user",
			Content: fmt.Sprintf(contradictionCheckPrompt, a, b),
		}},
		MaxTokens: 8,
	}, llm.ProfileDefault)
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(completion.Content))
	return strings.HasPrefix(answer, "true"), nil
}
