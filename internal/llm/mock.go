package llm

import (
	"context"

	"github.com/mnemoslab/mnemo/internal/domain"
)

// MockProvider returns canned completions. Responses are consumed in order;
// once exhausted the last one repeats. Useful in tests and for running the
// service without an upstream API.
type MockProvider struct {
	responses []string
	calls     int
	// Requests records every request seen, for assertions.
	Requests []domain.CompletionRequest
}

func NewMockProvider(responses ...string) *MockProvider {
	if len(responses) == 0 {
		responses = []string{"ok"}
	}
	return &MockProvider{responses: responses}
}

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.Requests = append(p.Requests, req)
	idx := p.calls
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	p.calls++
	return &domain.Completion{
		Content:      p.responses[idx],
		FinishReason: domain.FinishStop,
	}, nil
}
