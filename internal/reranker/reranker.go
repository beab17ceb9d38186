// Package reranker provides secondary scorers for the recall candidate pool:
// a local cross-encoder, HyDE (hypothetical document embeddings), and RRF
// (reciprocal rank fusion, no LLM).
package reranker

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/mnemoslab/mnemo/internal/domain"
	"github.com/mnemoslab/mnemo/internal/llm"
)

const (
	ProviderCrossEncoder = "cross_encoder"
	ProviderHyDE         = "hyde"
	ProviderRRF          = "rrf"

	defaultMinCandidates  = 10
	defaultMaxCandidates  = 50
	defaultQualityCutoff  = 0.7
	defaultExpansionRatio = 0.5
)

// New creates a reranker by provider name. An empty name returns (nil, nil):
// recall treats a nil reranker as "keep the similarity ordering".
func New(provider string, registry *llm.Registry, embedder domain.EmbeddingClient, endpoint string, logger *zap.Logger) (domain.Reranker, error) {
	switch provider {
	case "":
		return nil, nil
	case ProviderCrossEncoder:
		return NewCrossEncoder(endpoint, logger), nil
	case ProviderHyDE:
		return NewHyDE(registry, embedder, logger), nil
	case ProviderRRF:
		return NewRRF(embedder, logger), nil
	default:
		return nil, fmt.Errorf("unknown reranker provider: %s (valid options: cross_encoder, hyde, rrf)", provider)
	}
}

// AdaptiveCandidateCount decides how many candidates the reranker should see.
// Start from requested x 3 (floored at 10); when the mean of the top initial
// scores is below the quality cutoff, grow the pool in proportion to how far
// below it is, capped at 50 and at the number available.
func AdaptiveCandidateCount(requested, available int, meanTopScore float64) int {
	candidates := requested * 3
	if candidates < defaultMinCandidates {
		candidates = defaultMinCandidates
	}
	if meanTopScore < defaultQualityCutoff {
		ratio := meanTopScore / defaultQualityCutoff
		grown := float64(candidates) * (1 + defaultExpansionRatio*(1-ratio))
		candidates = int(grown)
	}
	if candidates > defaultMaxCandidates {
		candidates = defaultMaxCandidates
	}
	if candidates > available {
		candidates = available
	}
	return candidates
}

// UniformScores is the failure fallback: every document gets 0.5, which
// preserves the ordering established by initial similarity.
func UniformScores(n int) []float64 {
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = 0.5
	}
	return scores
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
