package embedding

import (
	"fmt"

	"github.com/mnemoslab/mnemo/internal/domain"
)

const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// NewClient creates an embedding client based on the provider name, wrapped
// in the LRU cache.
func NewClient(provider, apiKey string, cacheSize int) (domain.EmbeddingClient, error) {
	var inner domain.EmbeddingClient
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI embedding provider")
		}
		inner = NewOpenAIClient(apiKey)
	case ProviderMock:
		inner = NewMockClient(0)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (valid options: openai, mock)", provider)
	}
	return NewCachingClient(inner, cacheSize)
}
