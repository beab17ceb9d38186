// Package llm provides chat-completion providers and the profile registry
// that routes memory-service activities ("recall", "extraction", ...) to a
// configured provider.
package llm

import (
	"context"
	"errors"

	"github.com/mnemoslab/mnemo/internal/domain"
)

var (
	// ErrTimeout is returned when a provider call hits its deadline.
	ErrTimeout = errors.New("llm provider timeout")
	// ErrUnavailable is returned when the provider is unreachable or its
	// circuit breaker is open.
	ErrUnavailable = errors.New("llm provider unavailable")
)

// Provider is a single chat-completion backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error)
}

// StreamingProvider is implemented by providers with native streaming. The
// registry synthesizes a stream from Complete for the rest.
type StreamingProvider interface {
	Provider
	CompleteStream(ctx context.Context, req domain.CompletionRequest) (<-chan domain.CompletionChunk, error)
}

// resolveTemperature applies the resolution order: explicit request value,
// then factor x provider default, then provider default.
func resolveTemperature(req domain.CompletionRequest, providerDefault float64) float64 {
	if req.Temperature != nil {
		return *req.Temperature
	}
	if req.TemperatureFactor > 0 {
		return req.TemperatureFactor * providerDefault
	}
	return providerDefault
}

// normalizeFinishReason maps provider-specific finish reasons onto the small
// shared set.
func normalizeFinishReason(raw string) domain.FinishReason {
	switch raw {
	case "length", "max_tokens":
		return domain.FinishLength
	case "content_filter", "refusal":
		return domain.FinishContentFilter
	default:
		return domain.FinishStop
	}
}
