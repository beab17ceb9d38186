package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mnemoslab/mnemo/internal/scheduler"
	"github.com/mnemoslab/mnemo/internal/store"
)

// RegisterTaskHandlers wires the background task types into the scheduler
// and starts the recurring maintenance pass.
func RegisterTaskHandlers(sched *scheduler.Scheduler, memories *MemoryService, tiers *TierService, decay *DecayService) error {
	sched.RegisterHandler(TaskDecomposeFacts, func(ctx context.Context, payload map[string]any) error {
		workspaceID, memoryID, err := idsFromPayload(payload)
		if err != nil {
			return err
		}
		return memories.HandleDecomposeFacts(ctx, workspaceID, memoryID)
	})

	sched.RegisterHandler(TaskAutoEnrich, func(ctx context.Context, payload map[string]any) error {
		workspaceID, memoryID, err := idsFromPayload(payload)
		if err != nil {
			return err
		}
		classifyType, _ := payload["classify_type"].(bool)
		m, err := memories.memoryStore.Get(ctx, workspaceID, memoryID, false)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}
		return memories.autoEnrich(ctx, m, m.Embedding, classifyType)
	})

	sched.RegisterHandler(TaskGenerateTiers, func(ctx context.Context, payload map[string]any) error {
		workspaceID, memoryID, err := idsFromPayload(payload)
		if err != nil {
			return err
		}
		err = tiers.GenerateTiers(ctx, workspaceID, memoryID, false)
		if errors.Is(err, ErrMemoryNotFound) {
			return nil
		}
		return err
	})

	sched.RegisterHandler(TaskDecayPass, func(ctx context.Context, payload map[string]any) error {
		_, err := decay.RunPass(ctx)
		return err
	})

	if _, err := sched.ScheduleRecurring(TaskDecayPass, DecayPassInterval, nil); err != nil {
		return fmt.Errorf("schedule recurring decay pass: %w", err)
	}
	return nil
}

func idsFromPayload(payload map[string]any) (workspaceID, memoryID string, err error) {
	workspaceID, _ = payload["workspace_id"].(string)
	memoryID, _ = payload["memory_id"].(string)
	if workspaceID == "" || memoryID == "" {
		return "", "", fmt.Errorf("task payload missing workspace_id or memory_id")
	}
	return workspaceID, memoryID, nil
}
