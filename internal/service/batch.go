package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mnemoslab/mnemo/internal/domain"
)

// BatchOperation is one entry in a batch envelope.
type BatchOperation struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type BatchOperationResult struct {
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Memory  *domain.Memory `json:"memory,omitempty"`
}

type BatchResult struct {
	TotalOperations int                    `json:"total_operations"`
	Successful      int                    `json:"successful"`
	Failed          int                    `json:"failed"`
	Results         []BatchOperationResult `json:"results"`
}

type batchUpdateData struct {
	ID         string         `json:"id"`
	Content    *string        `json:"content,omitempty"`
	Importance *float64       `json:"importance,omitempty"`
	Pinned     *bool          `json:"pinned,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type batchDeleteData struct {
	ID   string `json:"id"`
	Hard bool   `json:"hard,omitempty"`
}

// Batch applies create, update, and delete operations in order. Each
// operation succeeds or fails independently.
func (s *MemoryService) Batch(ctx context.Context, workspaceID string, operations []BatchOperation) (*BatchResult, error) {
	if workspaceID == "" {
		return nil, ErrWorkspaceIDMissing
	}

	result := &BatchResult{
		TotalOperations: len(operations),
		Results:         make([]BatchOperationResult, 0, len(operations)),
	}
	for _, op := range operations {
		opResult := s.applyBatchOperation(ctx, workspaceID, op)
		if opResult.Success {
			result.Successful++
		} else {
			result.Failed++
		}
		result.Results = append(result.Results, opResult)
	}
	return result, nil
}

func (s *MemoryService) applyBatchOperation(ctx context.Context, workspaceID string, op BatchOperation) BatchOperationResult {
	fail := func(err error) BatchOperationResult {
		return BatchOperationResult{Success: false, Error: err.Error()}
	}

	switch op.Type {
	case "create":
		var in RememberInput
		if err := json.Unmarshal(op.Data, &in); err != nil {
			return fail(fmt.Errorf("invalid create data: %w", err))
		}
		created, err := s.Remember(ctx, workspaceID, in)
		if err != nil {
			return fail(err)
		}
		return BatchOperationResult{Success: true, Memory: created.Memory}

	case "update":
		var data batchUpdateData
		if err := json.Unmarshal(op.Data, &data); err != nil {
			return fail(fmt.Errorf("invalid update data: %w", err))
		}
		if data.ID == "" {
			return fail(fmt.Errorf("update requires an id"))
		}
		upd := domain.MemoryUpdate{
			Importance: data.Importance,
			Pinned:     data.Pinned,
			Tags:       data.Tags,
			Metadata:   data.Metadata,
		}
		if data.Content != nil {
			hash := domain.HashContent(*data.Content)
			upd.Content = data.Content
			upd.ContentHash = &hash
		}
		updated, err := s.memoryStore.Update(ctx, workspaceID, data.ID, upd)
		if err != nil {
			return fail(err)
		}
		return BatchOperationResult{Success: true, Memory: updated}

	case "delete":
		var data batchDeleteData
		if err := json.Unmarshal(op.Data, &data); err != nil {
			return fail(fmt.Errorf("invalid delete data: %w", err))
		}
		if data.ID == "" {
			return fail(fmt.Errorf("delete requires an id"))
		}
		if err := s.Forget(ctx, workspaceID, data.ID, data.Hard); err != nil {
			return fail(err)
		}
		return BatchOperationResult{Success: true}

	default:
		return fail(fmt.Errorf("unknown batch operation type: %s", op.Type))
	}
}
