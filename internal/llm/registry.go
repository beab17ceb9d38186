package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/mnemoslab/mnemo/internal/domain"
)

const (
	ProfileDefault        = "default"
	ProfileRecall         = "recall"
	ProfileReranker       = "reranker"
	ProfileTierGeneration = "tier_generation"
	ProfileExtraction     = "extraction"
	ProfileOntology       = "ontology"

	defaultCallTimeout = 60 * time.Second
)

// Registry maps activity profiles to providers. Each provider call runs under
// a deadline and a circuit breaker, so a flapping upstream degrades into fast
// ErrUnavailable failures instead of hung pipelines.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	activity  map[string]string
	breakers  map[string]*gobreaker.CircuitBreaker
	timeout   time.Duration
	logger    *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		activity:  make(map[string]string),
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
		timeout:   defaultCallTimeout,
		logger:    logger,
	}
}

func (r *Registry) SetTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeout = d
}

// Register adds a provider under its name. The first registered provider also
// becomes the "default" binding unless one is set explicitly.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
	r.breakers[p.Name()] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "llm-" + p.Name(),
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	if _, ok := r.activity[ProfileDefault]; !ok {
		r.activity[ProfileDefault] = p.Name()
	}
}

// Bind routes a profile to a provider name.
func (r *Registry) Bind(profile, providerName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activity[profile] = providerName
}

func (r *Registry) resolve(profile string) (Provider, *gobreaker.CircuitBreaker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.activity[profile]
	if !ok {
		name, ok = r.activity[ProfileDefault]
		if !ok {
			return nil, nil, ErrUnavailable
		}
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, nil, ErrUnavailable
	}
	return p, r.breakers[name], nil
}

func (r *Registry) Complete(ctx context.Context, req domain.CompletionRequest, profile string) (*domain.Completion, error) {
	p, breaker, err := r.resolve(profile)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	timeout := r.timeout
	r.mu.RUnlock()
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := breaker.Execute(func() (any, error) {
		return p.Complete(callCtx, req)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			r.logger.Warn("llm circuit open", zap.String("provider", p.Name()), zap.String("profile", profile))
			return nil, ErrUnavailable
		}
		return nil, err
	}
	return result.(*domain.Completion), nil
}

func (r *Registry) CompleteStream(ctx context.Context, req domain.CompletionRequest, profile string) (<-chan domain.CompletionChunk, error) {
	p, _, err := r.resolve(profile)
	if err != nil {
		return nil, err
	}

	if sp, ok := p.(StreamingProvider); ok {
		return sp.CompleteStream(ctx, req)
	}

	// Synthesize a stream from a full completion for non-streaming providers.
	completion, err := r.Complete(ctx, req, profile)
	if err != nil {
		return nil, err
	}
	ch := make(chan domain.CompletionChunk, 2)
	ch <- domain.CompletionChunk{Content: completion.Content}
	ch <- domain.CompletionChunk{IsFinal: true, FinishReason: completion.FinishReason}
	close(ch)
	return ch, nil
}
