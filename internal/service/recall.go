package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mnemoslab/mnemo/internal/domain"
	"github.com/mnemoslab/mnemo/internal/llm"
	"github.com/mnemoslab/mnemo/internal/reranker"
)

type RecallMode string

const (
	ModeRAG    RecallMode = "rag"
	ModeLLM    RecallMode = "llm"
	ModeHybrid RecallMode = "hybrid"
)

type Tolerance string

const (
	ToleranceLoose    Tolerance = "loose"
	ToleranceModerate Tolerance = "moderate"
	ToleranceStrict   Tolerance = "strict"
)

const (
	DefaultRecallLimit = 10
	// OverfetchMultiplier sizes the candidate pool handed to the reranker.
	OverfetchMultiplier = 3
	// hybridOverfetchMultiplier is the reduced pool for the hybrid rag
	// attempt.
	hybridOverfetchMultiplier = 2
	// DefaultRAGThreshold is the hybrid-mode mean-score bar below which
	// recall falls back to llm mode.
	DefaultRAGThreshold = 0.7

	toleranceModerateFloor = 0.5
	toleranceStrictFloor   = 0.8

	// RecencyHalfLifeHours and RecencyWeight shape the time-weighted score
	// multiplier: one week old halves the recency term.
	RecencyHalfLifeHours = 168.0
	RecencyWeight        = 0.2
)

// RecallInput is the request shape for the recall pipeline.
type RecallInput struct {
	Query               string               `json:"query"`
	Mode                RecallMode           `json:"mode,omitempty"`
	Tolerance           Tolerance            `json:"tolerance,omitempty"`
	Limit               int                  `json:"limit,omitempty"`
	MinRelevance        float64              `json:"min_relevance,omitempty"`
	Types               []domain.MemoryType  `json:"types,omitempty"`
	Subtypes            []string             `json:"subtypes,omitempty"`
	Tags                []string             `json:"tags,omitempty"`
	CreatedAfter        *time.Time           `json:"created_after,omitempty"`
	CreatedBefore       *time.Time           `json:"created_before,omitempty"`
	IncludeAssociations bool                 `json:"include_associations,omitempty"`
	TraverseDepth       int                  `json:"traverse_depth,omitempty"`
	IncludeGlobal       bool                 `json:"include_global,omitempty"`
	RAGThreshold        float64              `json:"rag_threshold,omitempty"`
	Context             []domain.ChatMessage `json:"context,omitempty"`
}

// RecallResult is the recall response.
type RecallResult struct {
	Memories       []domain.MemoryWithScore `json:"memories"`
	TotalCount     int                      `json:"total_count"`
	ModeUsed       RecallMode               `json:"mode_used"`
	QueryRewritten string                   `json:"query_rewritten,omitempty"`
	SearchLatency  int64                    `json:"search_latency_ms"`
	QueryTokens    int                      `json:"query_tokens"`
}

// Recall runs the read pipeline: mode routing, over-fetched vector search,
// rerank, recency shaping, optional graph expansion, and access tracking.
func (s *MemoryService) Recall(ctx context.Context, workspaceID string, in RecallInput) (*RecallResult, error) {
	if workspaceID == "" {
		return nil, ErrWorkspaceIDMissing
	}
	if strings.TrimSpace(in.Query) == "" {
		return nil, ErrRecallQueryEmpty
	}
	if in.Mode == "" {
		in.Mode = ModeRAG
	}
	if in.Tolerance == "" {
		in.Tolerance = ToleranceModerate
	}
	if in.Limit <= 0 {
		in.Limit = DefaultRecallLimit
	}

	start := timeNow()
	var result *RecallResult
	var err error

	switch in.Mode {
	case ModeRAG:
		result, err = s.recallRAG(ctx, workspaceID, in, in.Query, OverfetchMultiplier)
	case ModeLLM:
		result, err = s.recallLLM(ctx, workspaceID, in)
	case ModeHybrid:
		result, err = s.recallHybrid(ctx, workspaceID, in)
	default:
		return nil, ErrInvalidRecallMode
	}
	if err != nil {
		return nil, err
	}

	result.SearchLatency = time.Since(start).Milliseconds()
	result.QueryTokens = len(strings.Fields(in.Query))
	s.trackAccess(result.Memories)
	return result, nil
}

func (s *MemoryService) recallRAG(ctx context.Context, workspaceID string, in RecallInput, query string, overfetch int) (*RecallResult, error) {
	memories, err := s.searchAndShape(ctx, workspaceID, in, query, overfetch)
	if err != nil {
		return nil, err
	}
	return &RecallResult{
		Memories:   memories,
		TotalCount: len(memories),
		ModeUsed:   ModeRAG,
	}, nil
}

// recallLLM rewrites the query from the chat context, then runs the rag path
// on the rewritten query. Rewrite failure degrades to plain rag.
func (s *MemoryService) recallLLM(ctx context.Context, workspaceID string, in RecallInput) (*RecallResult, error) {
	rewritten, err := s.rewriteQuery(ctx, in)
	if err != nil {
		s.logger.Warn("query rewrite failed, falling back to rag mode", zap.Error(err))
		return s.recallRAG(ctx, workspaceID, in, in.Query, OverfetchMultiplier)
	}

	result, err := s.recallRAG(ctx, workspaceID, in, rewritten, OverfetchMultiplier)
	if err != nil {
		return nil, err
	}
	result.ModeUsed = ModeLLM
	result.QueryRewritten = rewritten
	return result, nil
}

// recallHybrid tries rag with a reduced pool first and keeps it when the
// mean top score clears the threshold; otherwise it pays for the llm path.
func (s *MemoryService) recallHybrid(ctx context.Context, workspaceID string, in RecallInput) (*RecallResult, error) {
	threshold := in.RAGThreshold
	if threshold == 0 {
		threshold = DefaultRAGThreshold
	}

	ragResult, err := s.recallRAG(ctx, workspaceID, in, in.Query, hybridOverfetchMultiplier)
	if err != nil {
		return nil, err
	}
	if meanScore(ragResult.Memories, in.Limit) >= threshold {
		return ragResult, nil
	}
	return s.recallLLM(ctx, workspaceID, in)
}

// searchAndShape is the shared body: over-fetched vector search, rerank,
// recency boost, graph expansion, and the final trim to limit.
func (s *MemoryService) searchAndShape(ctx context.Context, workspaceID string, in RecallInput, query string, overfetch int) ([]domain.MemoryWithScore, error) {
	if s.embeddingClient == nil {
		return nil, fmt.Errorf("embedding client not configured")
	}
	embedding, err := s.embeddingClient.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	filters := domain.SearchFilters{
		Types:         in.Types,
		Subtypes:      in.Subtypes,
		Tags:          in.Tags,
		CreatedAfter:  in.CreatedAfter,
		CreatedBefore: in.CreatedBefore,
		IncludeGlobal: in.IncludeGlobal,
	}
	effectiveLimit := in.Limit * overfetch
	minRelevance := resolveTolerance(in.Tolerance, in.MinRelevance)

	candidates, err := s.memoryStore.Search(ctx, workspaceID, embedding, effectiveLimit, minRelevance, filters)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []domain.MemoryWithScore{}, nil
	}

	candidates = s.rerankCandidates(ctx, query, candidates, in.Limit)
	candidates = applyRecencyBoost(candidates, timeNow().UTC(), RecencyWeight, RecencyHalfLifeHours)

	if len(candidates) > in.Limit {
		candidates = candidates[:in.Limit]
	}

	if in.IncludeAssociations && in.TraverseDepth > 0 && s.associations != nil {
		candidates = s.expandThroughGraph(ctx, workspaceID, candidates, in.TraverseDepth)
		if len(candidates) > in.Limit {
			candidates = candidates[:in.Limit]
		}
	}
	return candidates, nil
}

// rerankCandidates scores the adaptive slice of the pool. Any failure keeps
// the similarity ordering by assigning uniform scores.
func (s *MemoryService) rerankCandidates(ctx context.Context, query string, candidates []domain.MemoryWithScore, limit int) []domain.MemoryWithScore {
	if s.reranker == nil || len(candidates) == 0 {
		return candidates
	}

	poolSize := reranker.AdaptiveCandidateCount(limit, len(candidates), meanScore(candidates, limit))
	pool := candidates[:poolSize]

	documents := make([]string, len(pool))
	for i, c := range pool {
		documents[i] = c.Content
	}

	scores, err := s.reranker.Rerank(ctx, query, documents)
	if err != nil || len(scores) != len(pool) {
		if err != nil {
			s.logger.Warn("rerank failed, keeping similarity ordering", zap.Error(err))
		}
		scores = reranker.UniformScores(len(pool))
	}

	reranked := make([]domain.MemoryWithScore, len(pool))
	for i, c := range pool {
		c.Score = scores[i]
		reranked[i] = c
	}
	sort.SliceStable(reranked, func(a, b int) bool { return reranked[a].Score > reranked[b].Score })
	return reranked
}

// expandThroughGraph merges association neighbors of the top results into
// the set, scored down by the average edge strength along the path.
func (s *MemoryService) expandThroughGraph(ctx context.Context, workspaceID string, results []domain.MemoryWithScore, depth int) []domain.MemoryWithScore {
	present := make(map[string]bool, len(results))
	for _, r := range results {
		present[r.ID] = true
	}

	expanded := results
	for _, r := range results {
		traversal, err := s.associations.Traverse(ctx, TraverseInput{
			WorkspaceID: workspaceID,
			StartID:     r.ID,
			MaxDepth:    depth,
			Direction:   domain.DirectionOutgoing,
			MinStrength: DefaultMinEdgeStrength,
		})
		if err != nil {
			s.logger.Debug("graph expansion failed for result",
				zap.String("memory_id", r.ID),
				zap.Error(err))
			continue
		}
		for _, path := range traversal.Paths {
			nodeID := path.EndNode()
			if nodeID == "" || present[nodeID] {
				continue
			}
			neighbor, err := s.memoryStore.Get(ctx, workspaceID, nodeID, false)
			if err != nil || neighbor.Status != domain.StatusActive {
				continue
			}
			present[nodeID] = true
			expanded = append(expanded, domain.MemoryWithScore{
				Memory: *neighbor,
				Score:  r.Score * averageStrength(path),
			})
		}
	}
	sort.SliceStable(expanded, func(a, b int) bool { return expanded[a].Score > expanded[b].Score })
	return expanded
}

func (s *MemoryService) rewriteQuery(ctx context.Context, in RecallInput) (string, error) {
	if s.registry == nil {
		return "", fmt.Errorf("llm registry not configured")
	}
	var history strings.Builder
	for _, msg := range in.Context {
		history.WriteString(msg.Role)
		history.WriteString(": ")
		history.WriteString(msg.Content)
		history.WriteString("\n")
	}
	completion, err := s.registry.Complete(ctx, domain.CompletionRequest{
		Messages: []domain.ChatMessage{{
			Role:    "user",
			Content: fmt.Sprintf(queryRewritePrompt, history.String(), in.Query),
		}},
		MaxTokens: 128,
	}, llm.ProfileRecall)
	if err != nil {
		return "", err
	}
	rewritten := strings.TrimSpace(completion.Content)
	if rewritten == "" {
		return "", fmt.Errorf("empty query rewrite")
	}
	return rewritten, nil
}

// trackAccess bumps access counters and applies the importance boost off the
// request path.
func (s *MemoryService) trackAccess(memories []domain.MemoryWithScore) {
	if s.decay == nil {
		return
	}
	for _, mem := range memories {
		m := mem.Memory
		go func(m domain.Memory) {
			if err := s.decay.ApplyAccessBoost(context.Background(), &m); err != nil {
				s.logger.Debug("access boost failed",
					zap.String("memory_id", m.ID),
					zap.Error(err))
			}
		}(m)
	}
}

// resolveTolerance maps the tolerance band onto the similarity floor passed
// to storage.
func resolveTolerance(t Tolerance, callerMin float64) float64 {
	switch t {
	case ToleranceLoose:
		return 0.0
	case ToleranceStrict:
		return math.Max(callerMin, toleranceStrictFloor)
	default:
		if callerMin > 0 {
			return callerMin
		}
		return toleranceModerateFloor
	}
}

// applyRecencyBoost multiplies each score by (1 - w + w*recency) where
// recency decays exponentially with the memory's age. Weight zero is a no-op.
func applyRecencyBoost(memories []domain.MemoryWithScore, now time.Time, weight, halfLifeHours float64) []domain.MemoryWithScore {
	if weight == 0 || len(memories) == 0 {
		return memories
	}
	lambda := math.Ln2 / halfLifeHours
	for i := range memories {
		ageHours := now.Sub(memories[i].UpdatedAt).Hours()
		if ageHours < 0 {
			ageHours = 0
		}
		recency := math.Exp(-lambda * ageHours)
		memories[i].Score *= 1 - weight + weight*recency
	}
	sort.SliceStable(memories, func(a, b int) bool { return memories[a].Score > memories[b].Score })
	return memories
}

func meanScore(memories []domain.MemoryWithScore, topK int) float64 {
	if len(memories) == 0 {
		return 0
	}
	if topK > len(memories) {
		topK = len(memories)
	}
	var sum float64
	for _, m := range memories[:topK] {
		sum += m.Score
	}
	return sum / float64(topK)
}

func averageStrength(path domain.TraversalPath) float64 {
	if len(path.Steps) == 0 {
		return 0
	}
	var sum float64
	for _, step := range path.Steps {
		sum += step.Edge.Strength
	}
	return sum / float64(len(path.Steps))
}
