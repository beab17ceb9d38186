package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mnemoslab/mnemo/internal/domain"
	"github.com/mnemoslab/mnemo/internal/store"
)

// HandleDecomposeFacts is the background handler body for a decompose_facts
// task: split the parent into atomic facts, re-ingest each with a full
// inline post-store pipeline, wire part_of edges back to the parent, and
// archive the parent.
func (s *MemoryService) HandleDecomposeFacts(ctx context.Context, workspaceID, memoryID string) error {
	parent, err := s.memoryStore.Get(ctx, workspaceID, memoryID, false)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Debug("decomposition target vanished, skipping",
				zap.String("memory_id", memoryID))
			return nil
		}
		return err
	}
	if parent.Status == domain.StatusArchived {
		return nil
	}
	if s.extraction == nil {
		return nil
	}

	facts, err := s.extraction.DecomposeToFacts(ctx, parent.Content)
	if err != nil {
		return err
	}

	// A single fact equivalent to the parent means the content was already
	// atomic; record that so it is not re-decomposed. A lone fact with
	// different content is a rewording and still goes through the fan-out.
	if len(facts) == 0 ||
		(len(facts) == 1 && domain.NormalizeContent(facts[0]) == domain.NormalizeContent(parent.Content)) {
		meta := mergeMetadata(parent.Metadata, map[string]any{"atomic": true})
		if _, err := s.memoryStore.Update(ctx, workspaceID, memoryID, domain.MemoryUpdate{Metadata: meta}); err != nil {
			return err
		}
		return nil
	}

	created := 0
	for _, fact := range facts {
		factMemory, err := s.IngestFact(ctx, workspaceID, RememberInput{
			Content:   fact,
			ContextID: parent.ContextID,
		}, parent.ID)
		if err != nil {
			s.logger.Warn("fact ingestion failed",
				zap.String("parent_id", parent.ID),
				zap.Error(err))
			continue
		}
		if factMemory == nil {
			// Dedup skipped this fact; no graph wiring for it.
			continue
		}
		created++

		if s.associations != nil {
			if _, err := s.associations.Associate(ctx, AssociateInput{
				WorkspaceID:  workspaceID,
				SourceID:     factMemory.ID,
				TargetID:     parent.ID,
				Relationship: "part_of",
				Strength:     1.0,
			}); err != nil && !errors.Is(err, ErrAssociationExists) {
				s.logger.Warn("failed to wire fact to parent",
					zap.String("fact_id", factMemory.ID),
					zap.String("parent_id", parent.ID),
					zap.Error(err))
			}
		}
	}

	archivedStatus := domain.StatusArchived
	if _, err := s.memoryStore.Update(ctx, workspaceID, memoryID, domain.MemoryUpdate{Status: &archivedStatus}); err != nil {
		return err
	}
	s.logger.Info("memory decomposed",
		zap.String("memory_id", memoryID),
		zap.Int("facts", created))
	return nil
}
