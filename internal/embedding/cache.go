package embedding

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mnemoslab/mnemo/internal/domain"
)

// CachingClient wraps an embedding client with an LRU cache keyed on the
// normalized content hash. Ingestion embeds the same content repeatedly
// (dedup probe, then post-store neighbors), so the hit rate is high.
type CachingClient struct {
	inner domain.EmbeddingClient
	cache *lru.Cache[string, []float32]
}

func NewCachingClient(inner domain.EmbeddingClient, size int) (*CachingClient, error) {
	if size <= 0 {
		size = 4096
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachingClient{inner: inner, cache: cache}, nil
}

func (c *CachingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	key := domain.HashContent(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

func (c *CachingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, t := range texts {
		if vec, ok := c.cache.Get(domain.HashContent(t)); ok {
			vecs[i] = vec
		} else {
			missing = append(missing, t)
			missingIdx = append(missingIdx, i)
		}
	}
	if len(missing) == 0 {
		return vecs, nil
	}

	fetched, err := c.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, vec := range fetched {
		i := missingIdx[j]
		vecs[i] = vec
		c.cache.Add(domain.HashContent(texts[i]), vec)
	}
	return vecs, nil
}
