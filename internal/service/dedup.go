package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mnemoslab/mnemo/internal/domain"
	"github.com/mnemoslab/mnemo/internal/store"
)

// DedupAction is what ingestion should do with a candidate memory.
type DedupAction string

const (
	// ActionCreate inserts a new row.
	ActionCreate DedupAction = "create"
	// ActionSkip returns the existing memory; nothing is written.
	ActionSkip DedupAction = "skip"
	// ActionUpdate merges tags and metadata into the near-identical existing
	// memory and bumps its timestamps.
	ActionUpdate DedupAction = "update"
	// ActionMerge marks a semantically similar candidate. The ingestion path
	// records the similarity and otherwise proceeds as create; the merge
	// decision is left to the host.
	ActionMerge DedupAction = "merge"

	// DefaultDuplicateThreshold is the similarity at or above which a
	// candidate is treated as the same memory.
	DefaultDuplicateThreshold = 0.95
	// DefaultMergeThreshold is the similarity at or above which a candidate
	// is flagged as a merge candidate.
	DefaultMergeThreshold = 0.85

	dedupProbeLimit = 5
)

// DedupDecision is the outcome of a duplicate check.
type DedupDecision struct {
	Action   DedupAction
	Existing *domain.Memory
	// Similarity of the closest probe hit, set for update and merge.
	Similarity float64
}

type DedupService struct {
	memoryStore        domain.MemoryStore
	duplicateThreshold float64
	mergeThreshold     float64
	logger             *zap.Logger
}

func NewDedupService(ms domain.MemoryStore, logger *zap.Logger) *DedupService {
	return &DedupService{
		memoryStore:        ms,
		duplicateThreshold: DefaultDuplicateThreshold,
		mergeThreshold:     DefaultMergeThreshold,
		logger:             logger,
	}
}

func (s *DedupService) SetThresholds(duplicate, merge float64) {
	s.duplicateThreshold = duplicate
	s.mergeThreshold = merge
}

// Check decides the ingestion action for candidate content: an exact hash
// match short-circuits to skip, then a workspace-scoped top-k embedding probe
// grades the closest neighbor against the two thresholds.
func (s *DedupService) Check(ctx context.Context, workspaceID, contentHash string, embedding []float32) (*DedupDecision, error) {
	existing, err := s.memoryStore.GetByHash(ctx, workspaceID, contentHash)
	if err == nil {
		return &DedupDecision{Action: ActionSkip, Existing: existing}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if len(embedding) == 0 {
		return &DedupDecision{Action: ActionCreate}, nil
	}

	hits, err := s.memoryStore.Search(ctx, workspaceID, embedding, dedupProbeLimit, s.mergeThreshold, domain.SearchFilters{})
	if err != nil {
		s.logger.Warn("dedup similarity probe failed, proceeding with create", zap.Error(err))
		return &DedupDecision{Action: ActionCreate}, nil
	}
	if len(hits) == 0 {
		return &DedupDecision{Action: ActionCreate}, nil
	}

	top := hits[0]
	if top.Score >= s.duplicateThreshold {
		return &DedupDecision{Action: ActionUpdate, Existing: &top.Memory, Similarity: top.Score}, nil
	}
	return &DedupDecision{Action: ActionMerge, Existing: &top.Memory, Similarity: top.Score}, nil
}
