package domain

import (
	"context"
	"time"
)

type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content_filter"
)

type CompletionRequest struct {
	System   string
	Messages []ChatMessage
	// MaxTokens of 0 lets the provider default apply.
	MaxTokens int
	// Temperature, when set, wins over TemperatureFactor.
	Temperature *float64
	// TemperatureFactor scales the provider's default temperature when
	// Temperature is nil.
	TemperatureFactor float64
}

type Completion struct {
	Content          string       `json:"content"`
	PromptTokens     int          `json:"prompt_tokens"`
	CompletionTokens int          `json:"completion_tokens"`
	FinishReason     FinishReason `json:"finish_reason"`
}

type CompletionChunk struct {
	Content      string       `json:"content"`
	IsFinal      bool         `json:"is_final"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
}

// LLMRegistry resolves a named profile ("default", "recall", "reranker",
// "tier_generation", "extraction", "ontology") to a provider and runs the
// completion there. Unknown profiles fall back to "default".
type LLMRegistry interface {
	Complete(ctx context.Context, req CompletionRequest, profile string) (*Completion, error)
	CompleteStream(ctx context.Context, req CompletionRequest, profile string) (<-chan CompletionChunk, error)
}

// Reranker scores documents against a query. Scores are in [0,1] and returned
// in input order.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string) ([]float64, error)
}

type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskCancelled TaskState = "cancelled"
	TaskNotFound  TaskState = "not_found"
)

// TaskScheduler runs background work. ScheduleTask returns an empty id when
// tasks are globally disabled; callers fall back to inline execution.
type TaskScheduler interface {
	ScheduleTask(taskType string, payload map[string]any, delay time.Duration) (string, error)
	ScheduleRecurring(taskType string, interval time.Duration, payload map[string]any) (string, error)
	CancelTask(id string) bool
	GetTaskStatus(id string) TaskState
}
