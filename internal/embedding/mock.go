package embedding

import (
	"context"
	"crypto/sha256"
	"math"
)

// MockClient produces deterministic pseudo-embeddings derived from the text
// hash. Identical texts yield identical vectors, which is all the dedup and
// recall paths need in tests and offline setups.
type MockClient struct {
	dims int
}

func NewMockClient(dims int) *MockClient {
	if dims <= 0 {
		dims = 64
	}
	return &MockClient{dims: dims}
}

func (c *MockClient) Embed(_ context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, c.dims)
	var norm float64
	for i := range vec {
		b := sum[i%len(sum)]
		v := float64(b)/127.5 - 1.0
		vec[i] = float32(v)
		norm += v * v
	}
	// Unit-normalize so cosine similarity behaves like the real provider.
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec, nil
}

func (c *MockClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := c.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vecs[i] = v
	}
	return vecs, nil
}
