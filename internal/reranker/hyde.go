package reranker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mnemoslab/mnemo/internal/domain"
	"github.com/mnemoslab/mnemo/internal/llm"
)

const hydePrompt = `Write a short passage that directly answers the question below, as if it came from a knowledge base. State facts plainly. Do not hedge, do not mention that you are answering a question.

Question: %s`

// HyDE reranks by hypothetical document embeddings: generate a plausible
// answer to the query, embed it, and score each document by cosine
// similarity with the hypothetical answer's embedding.
type HyDE struct {
	registry *llm.Registry
	embedder domain.EmbeddingClient
	logger   *zap.Logger
}

func NewHyDE(registry *llm.Registry, embedder domain.EmbeddingClient, logger *zap.Logger) *HyDE {
	return &HyDE{registry: registry, embedder: embedder, logger: logger}
}

func (h *HyDE) Rerank(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return []float64{}, nil
	}

	completion, err := h.registry.Complete(ctx, domain.CompletionRequest{
		Messages:  []domain.ChatMessage{{Role: "user", Content: fmt.Sprintf(hydePrompt, query)}},
		MaxTokens: 256,
	}, llm.ProfileReranker)
	if err != nil {
		return nil, fmt.Errorf("generate hypothetical answer: %w", err)
	}

	hypothetical, err := h.embedder.Embed(ctx, completion.Content)
	if err != nil {
		return nil, fmt.Errorf("embed hypothetical answer: %w", err)
	}

	docVectors, err := h.embedder.EmbedBatch(ctx, documents)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}

	scores := make([]float64, len(documents))
	for i, vec := range docVectors {
		s := cosineSimilarity(hypothetical, vec)
		if s < 0 {
			s = 0
		}
		scores[i] = s
	}
	return scores, nil
}
