package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/mnemoslab/mnemo/internal/domain"
	"github.com/mnemoslab/mnemo/internal/llm"
)

// OntologyService guards the closed set of relationship types and classifies
// the relationship between two pieces of content.
type OntologyService struct {
	registry domain.LLMRegistry
	logger   *zap.Logger
}

func NewOntologyService(registry domain.LLMRegistry, logger *zap.Logger) *OntologyService {
	return &OntologyService{registry: registry, logger: logger}
}

func (s *OntologyService) ValidateRelationship(relType string) error {
	if domain.ValidRelationship(relType) {
		return nil
	}
	return fmt.Errorf("%w: %q (valid types: %s)", ErrUnknownRelationship, relType,
		strings.Join(domain.RelationshipTypes(), ", "))
}

// ClassifyRelationship asks the LLM for exactly one relationship type between
// contentA and contentB. The raw answer is normalized and validated; a
// truncated answer is resolved by unique-prefix match. Anything unusable
// falls back to related_to.
func (s *OntologyService) ClassifyRelationship(ctx context.Context, contentA, contentB string) string {
	if s.registry == nil {
		return domain.RelationshipFallback
	}

	completion, err := s.registry.Complete(ctx, domain.CompletionRequest{
		Messages: []domain.ChatMessage{{
			Role:    "user",
			Content: fmt.Sprintf(relationshipClassifyPrompt, contentA, contentB, s.describeTypes()),
		}},
		MaxTokens: 16,
	}, llm.ProfileOntology)
	if err != nil {
		s.logger.Warn("relationship classification failed, using fallback", zap.Error(err))
		return domain.RelationshipFallback
	}

	answer := normalizeRelationshipAnswer(completion.Content)
	if domain.ValidRelationship(answer) {
		return answer
	}
	if match, ok := uniquePrefixMatch(answer); ok {
		return match
	}

	s.logger.Warn("unrecognized relationship from classifier, using fallback",
		zap.String("answer", answer))
	return domain.RelationshipFallback
}

func (s *OntologyService) describeTypes() string {
	types := domain.RelationshipTypes()
	lines := make([]string, 0, len(types))
	for _, t := range types {
		lines = append(lines, fmt.Sprintf("- %s: %s", t, domain.BaseOntology[t].Description))
	}
	return strings.Join(lines, "\n")
}

func normalizeRelationshipAnswer(raw string) string {
	answer := strings.ToLower(strings.TrimSpace(raw))
	answer = strings.Trim(answer, `"'`)
	answer = strings.TrimSuffix(answer, ".")
	if idx := strings.IndexAny(answer, " \n"); idx > 0 {
		answer = answer[:idx]
	}
	return answer
}

// uniquePrefixMatch resolves a truncated answer when exactly one known type
// starts with it.
func uniquePrefixMatch(prefix string) (string, bool) {
	if prefix == "" {
		return "", false
	}
	var match string
	for _, t := range domain.RelationshipTypes() {
		if strings.HasPrefix(t, prefix) {
			if match != "" {
				return "", false
			}
			match = t
		}
	}
	return match, match != ""
}

// CausalTypes returns the relationship types in the causal category, sorted.
func CausalTypes() []string {
	types := domain.CausalRelationships()
	sort.Strings(types)
	return types
}
