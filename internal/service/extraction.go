package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mnemoslab/mnemo/internal/domain"
	"github.com/mnemoslab/mnemo/internal/llm"
)

// extractionCategories maps a candidate category to the memory type and
// subtype it lands under when stored.
var extractionCategories = map[string]struct {
	Type    domain.MemoryType
	Subtype string
}{
	"PROFILE":     {domain.MemoryTypeSemantic, "profile"},
	"PREFERENCES": {domain.MemoryTypeSemantic, "preference"},
	"ENTITIES":    {domain.MemoryTypeSemantic, "entity"},
	"EVENTS":      {domain.MemoryTypeEpisodic, "event"},
	"CASES":       {domain.MemoryTypeEpisodic, "case"},
	"PATTERNS":    {domain.MemoryTypeProcedural, "pattern"},
}

// MemoryCandidate is one extracted, category-tagged memory proposal.
type MemoryCandidate struct {
	Category string            `json:"category"`
	Content  string            `json:"content"`
	Type     domain.MemoryType `json:"type"`
	Subtype  string            `json:"subtype,omitempty"`
}

// ExtractionService turns free text into atomic facts, memory candidates,
// and type classifications via the LLM registry.
type ExtractionService struct {
	registry domain.LLMRegistry
	logger   *zap.Logger
}

func NewExtractionService(registry domain.LLMRegistry, logger *zap.Logger) *ExtractionService {
	return &ExtractionService{registry: registry, logger: logger}
}

// DecomposeToFacts splits content into atomic facts. The response parser
// recovers complete facts from truncated output; unrecoverable output is an
// error for the caller to log and skip.
func (s *ExtractionService) DecomposeToFacts(ctx context.Context, content string) ([]string, error) {
	if s.registry == nil {
		return []string{content}, nil
	}

	completion, err := s.registry.Complete(ctx, domain.CompletionRequest{
		Messages:  []domain.ChatMessage{{Role: "user", Content: fmt.Sprintf(factDecompositionPrompt, content)}},
		MaxTokens: 1024,
	}, llm.ProfileExtraction)
	if err != nil {
		return nil, fmt.Errorf("fact decomposition: %w", err)
	}

	var facts []string
	if err := llm.DecodeJSON(completion.Content, &facts); err != nil {
		return nil, fmt.Errorf("parse fact decomposition output: %w", err)
	}

	cleaned := facts[:0]
	for _, f := range facts {
		f = strings.TrimSpace(f)
		if f != "" {
			cleaned = append(cleaned, f)
		}
	}
	return cleaned, nil
}

// ClassifyContent returns a (type, subtype) for content. Failures default to
// semantic with no subtype.
func (s *ExtractionService) ClassifyContent(ctx context.Context, content string) (domain.MemoryType, string) {
	if s.registry == nil {
		return domain.MemoryTypeSemantic, ""
	}

	completion, err := s.registry.Complete(ctx, domain.CompletionRequest{
		Messages:  []domain.ChatMessage{{Role: "user", Content: fmt.Sprintf(classifyContentPrompt, content)}},
		MaxTokens: 40,
	}, llm.ProfileExtraction)
	if err != nil {
		s.logger.Warn("content classification failed, defaulting to semantic", zap.Error(err))
		return domain.MemoryTypeSemantic, ""
	}

	var out struct {
		Type    string `json:"type"`
		Subtype string `json:"subtype"`
	}
	if err := llm.DecodeJSON(completion.Content, &out); err != nil {
		s.logger.Warn("unparseable classification output, defaulting to semantic", zap.Error(err))
		return domain.MemoryTypeSemantic, ""
	}
	if !domain.ValidMemoryType(out.Type) {
		return domain.MemoryTypeSemantic, ""
	}
	return domain.MemoryType(out.Type), strings.ToLower(strings.TrimSpace(out.Subtype))
}

// ExtractCandidates produces category-tagged memory candidates from a text
// context, for session-extraction flows.
func (s *ExtractionService) ExtractCandidates(ctx context.Context, text string) ([]MemoryCandidate, error) {
	if s.registry == nil {
		return nil, nil
	}

	completion, err := s.registry.Complete(ctx, domain.CompletionRequest{
		Messages:  []domain.ChatMessage{{Role: "user", Content: fmt.Sprintf(extractCandidatesPrompt, text)}},
		MaxTokens: 1024,
	}, llm.ProfileExtraction)
	if err != nil {
		return nil, fmt.Errorf("candidate extraction: %w", err)
	}

	var raw []struct {
		Category string `json:"category"`
		Content  string `json:"content"`
	}
	if err := llm.DecodeJSON(completion.Content, &raw); err != nil {
		return nil, fmt.Errorf("parse candidate extraction output: %w", err)
	}

	var candidates []MemoryCandidate
	for _, r := range raw {
		mapping, ok := extractionCategories[strings.ToUpper(r.Category)]
		if !ok {
			s.logger.Debug("skipping candidate with unknown category",
				zap.String("category", r.Category))
			continue
		}
		if strings.TrimSpace(r.Content) == "" {
			continue
		}
		candidates = append(candidates, MemoryCandidate{
			Category: strings.ToUpper(r.Category),
			Content:  r.Content,
			Type:     mapping.Type,
			Subtype:  mapping.Subtype,
		})
	}
	return candidates, nil
}
