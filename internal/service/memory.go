package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mnemoslab/mnemo/internal/domain"
	"github.com/mnemoslab/mnemo/internal/store"
)

var (
	ErrMemoryNotFound      = errors.New("memory not found")
	ErrContentEmpty        = errors.New("content is required")
	ErrWorkspaceIDMissing  = errors.New("workspace_id is required")
	ErrInvalidMemoryType   = errors.New("invalid memory type")
	ErrRecallQueryEmpty    = errors.New("query is required")
	ErrInvalidRecallMode   = errors.New("invalid recall mode")
	ErrInvalidTolerance    = errors.New("invalid tolerance")
	ErrUnknownRelationship = errors.New("unknown relationship type")
	ErrSelfAssociation     = errors.New("source and target must differ")
	ErrAssociationExists   = errors.New("association already exists")
	ErrInvalidDirection    = errors.New("invalid traversal direction")
)

const (
	// DefaultImportance is assigned when the caller supplies none.
	DefaultImportance = 0.5
	// DecomposeMinLength is the minimum content length considered for fact
	// decomposition.
	DecomposeMinLength = 20

	// autoAssociationThreshold is the similarity above which neighbors get
	// auto-created edges during enrichment.
	autoAssociationThreshold = 0.85
	autoAssociationLimit     = 5

	TaskDecomposeFacts = "decompose_facts"
	TaskAutoEnrich     = "auto_enrich"
	TaskGenerateTiers  = "generate_tiers"
	TaskDecayPass      = "decay_pass"
)

// MemoryService owns ingestion, recall, and the post-store pipeline. The
// optional collaborators are attached with setters so tests can run with a
// minimal wiring.
type MemoryService struct {
	memoryStore     domain.MemoryStore
	embeddingClient domain.EmbeddingClient
	dedup           *DedupService
	logger          *zap.Logger

	registry      domain.LLMRegistry
	associations  *AssociationService
	tiers         *TierService
	contradiction *ContradictionService
	extraction    *ExtractionService
	decay         *DecayService
	reranker      domain.Reranker
	scheduler     domain.TaskScheduler

	decompositionEnabled bool
}

func NewMemoryService(ms domain.MemoryStore, ec domain.EmbeddingClient, dedup *DedupService, logger *zap.Logger) *MemoryService {
	return &MemoryService{
		memoryStore:          ms,
		embeddingClient:      ec,
		dedup:                dedup,
		logger:               logger,
		decompositionEnabled: true,
	}
}

func (s *MemoryService) SetRegistry(r domain.LLMRegistry)         { s.registry = r }
func (s *MemoryService) SetAssociations(a *AssociationService)    { s.associations = a }
func (s *MemoryService) SetTiers(t *TierService)                  { s.tiers = t }
func (s *MemoryService) SetContradiction(c *ContradictionService) { s.contradiction = c }
func (s *MemoryService) SetExtraction(e *ExtractionService)       { s.extraction = e }
func (s *MemoryService) SetDecay(d *DecayService)                 { s.decay = d }
func (s *MemoryService) SetReranker(r domain.Reranker)            { s.reranker = r }
func (s *MemoryService) SetScheduler(sch domain.TaskScheduler)    { s.scheduler = sch }
func (s *MemoryService) SetDecompositionEnabled(enabled bool)     { s.decompositionEnabled = enabled }

// RememberInput is the request shape for ingestion.
type RememberInput struct {
	Content    string            `json:"content"`
	Type       domain.MemoryType `json:"type,omitempty"`
	Subtype    string            `json:"subtype,omitempty"`
	Importance *float64          `json:"importance,omitempty"`
	Pinned     bool              `json:"pinned,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
	ContextID  string            `json:"context_id,omitempty"`
	// NonSemantic skips the embedding call for content that carries no
	// meaning worth searching (markers, raw blobs).
	NonSemantic bool `json:"non_semantic,omitempty"`
}

// RememberResult reports what ingestion did.
type RememberResult struct {
	Memory *domain.Memory `json:"memory"`
	Action DedupAction    `json:"action"`
	// Similarity is set when dedup found a close neighbor.
	Similarity float64 `json:"similarity,omitempty"`
	// DecompositionTaskID is set when the memory was routed to background
	// fact decomposition instead of the post-store pipeline.
	DecompositionTaskID string `json:"decomposition_task_id,omitempty"`
}

// Remember ingests content into a workspace: hash, embed, dedup, write, and
// then either schedule fact decomposition or run the post-store pipeline.
func (s *MemoryService) Remember(ctx context.Context, workspaceID string, in RememberInput) (*RememberResult, error) {
	if workspaceID == "" {
		return nil, ErrWorkspaceIDMissing
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, ErrContentEmpty
	}
	if in.Type != "" && !domain.ValidMemoryType(string(in.Type)) {
		return nil, ErrInvalidMemoryType
	}

	memory, embedding, decision, err := s.ingest(ctx, workspaceID, in, "")
	if err != nil {
		return nil, err
	}
	result := &RememberResult{Memory: memory, Action: decision.Action, Similarity: decision.Similarity}
	if decision.Action == ActionSkip {
		return result, nil
	}

	if s.shouldDecompose(memory) {
		taskID, err := s.scheduler.ScheduleTask(TaskDecomposeFacts, map[string]any{
			"memory_id":    memory.ID,
			"workspace_id": workspaceID,
		}, 0)
		if err == nil && taskID != "" {
			result.DecompositionTaskID = taskID
			return result, nil
		}
		if err != nil {
			s.logger.Warn("decomposition scheduling failed, running post-store inline", zap.Error(err))
		}
	}

	s.postStorePipeline(ctx, memory, embedding, false, in.Type == "")
	return result, nil
}

// IngestFact is the per-fact write path used by the decomposition handler.
// It shares dedup and insertion with Remember but always runs the post-store
// pipeline inline and records the parent id. A skip returns (nil, nil); the
// caller omits graph wiring for skipped facts.
func (s *MemoryService) IngestFact(ctx context.Context, workspaceID string, in RememberInput, sourceMemoryID string) (*domain.Memory, error) {
	if workspaceID == "" {
		return nil, ErrWorkspaceIDMissing
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, ErrContentEmpty
	}

	memory, embedding, decision, err := s.ingest(ctx, workspaceID, in, sourceMemoryID)
	if err != nil {
		return nil, err
	}
	if decision.Action == ActionSkip {
		return nil, nil
	}

	s.postStorePipeline(ctx, memory, embedding, true, in.Type == "")
	return memory, nil
}

// ingest runs hash, embedding, dedup, and the store write. Returns the
// resulting memory, its embedding, and the dedup decision taken.
func (s *MemoryService) ingest(ctx context.Context, workspaceID string, in RememberInput, sourceMemoryID string) (*domain.Memory, []float32, *DedupDecision, error) {
	contentHash := domain.HashContent(in.Content)

	var embedding []float32
	if !in.NonSemantic && s.embeddingClient != nil {
		emb, err := s.embeddingClient.Embed(ctx, in.Content)
		if err != nil {
			s.logger.Warn("embedding generation failed, storing without vector", zap.Error(err))
		} else {
			embedding = emb
		}
	}

	decision, err := s.dedup.Check(ctx, workspaceID, contentHash, embedding)
	if err != nil {
		return nil, nil, nil, err
	}

	switch decision.Action {
	case ActionSkip:
		return decision.Existing, embedding, decision, nil

	case ActionUpdate:
		upd := domain.MemoryUpdate{TouchAccess: true}
		if len(in.Tags) > 0 {
			upd.Tags = mergeTags(decision.Existing.Tags, in.Tags)
		}
		if len(in.Metadata) > 0 {
			upd.Metadata = mergeMetadata(decision.Existing.Metadata, in.Metadata)
		}
		updated, err := s.memoryStore.Update(ctx, workspaceID, decision.Existing.ID, upd)
		if err != nil {
			return nil, nil, nil, err
		}
		return updated, embedding, decision, nil
	}

	// Merge candidates proceed as create; the similarity is recorded on the
	// result for the host to act on.
	importance := DefaultImportance
	if in.Importance != nil {
		importance = *in.Importance
	}
	m := &domain.Memory{
		ID:             domain.NewMemoryID(),
		WorkspaceID:    workspaceID,
		ContextID:      in.ContextID,
		Content:        in.Content,
		ContentHash:    contentHash,
		Type:           in.Type,
		Subtype:        in.Subtype,
		Importance:     importance,
		Pinned:         in.Pinned,
		Status:         domain.StatusActive,
		Tags:           in.Tags,
		Metadata:       in.Metadata,
		Embedding:      embedding,
		SourceMemoryID: sourceMemoryID,
	}
	if m.Type == "" {
		m.Type = domain.MemoryTypeSemantic
	}

	if err := s.memoryStore.Create(ctx, m); err != nil {
		// A concurrent ingestion of the same content won the race; re-read
		// and treat as skip.
		if errors.Is(err, store.ErrDuplicate) {
			existing, getErr := s.memoryStore.GetByHash(ctx, workspaceID, contentHash)
			if getErr != nil {
				return nil, nil, nil, getErr
			}
			return existing, embedding, &DedupDecision{Action: ActionSkip, Existing: existing}, nil
		}
		return nil, nil, nil, err
	}
	return m, embedding, decision, nil
}

// shouldDecompose applies the composite-content heuristic: non-working type,
// long enough, and sentence-like structure.
func (s *MemoryService) shouldDecompose(m *domain.Memory) bool {
	if !s.decompositionEnabled || s.scheduler == nil || s.extraction == nil {
		return false
	}
	if m.Type == domain.MemoryTypeWorking {
		return false
	}
	if len(m.Content) < DecomposeMinLength {
		return false
	}
	return looksComposite(m.Content)
}

// looksComposite reports whether content has multiple sentence terminators or
// multiple clause separators.
func looksComposite(content string) bool {
	terminators := strings.Count(content, ".") + strings.Count(content, "!") + strings.Count(content, "?")
	if terminators >= 2 {
		return true
	}
	separators := strings.Count(content, ";") + strings.Count(content, " and ") + strings.Count(content, " but ")
	return separators >= 2
}

// postStorePipeline runs the three enrichment steps. Each step catches its
// own errors so one failure does not skip the others. In background mode the
// first two steps are dispatched as tasks, falling back to inline execution
// when scheduling fails.
func (s *MemoryService) postStorePipeline(ctx context.Context, m *domain.Memory, embedding []float32, inline, classifyType bool) {
	runEnrich := func() {
		if err := s.autoEnrich(ctx, m, embedding, classifyType); err != nil {
			s.logger.Warn("auto-association enrichment failed",
				zap.String("memory_id", m.ID),
				zap.Error(err))
		}
	}
	runTiers := func() {
		if s.tiers == nil {
			return
		}
		if err := s.tiers.GenerateTiers(ctx, m.WorkspaceID, m.ID, false); err != nil {
			s.logger.Warn("tier generation failed",
				zap.String("memory_id", m.ID),
				zap.Error(err))
		}
	}

	if inline || s.scheduler == nil {
		runEnrich()
		runTiers()
	} else {
		if id, err := s.scheduler.ScheduleTask(TaskAutoEnrich, map[string]any{
			"memory_id":     m.ID,
			"workspace_id":  m.WorkspaceID,
			"classify_type": classifyType,
		}, 0); err != nil || id == "" {
			runEnrich()
		}
		if id, err := s.scheduler.ScheduleTask(TaskGenerateTiers, map[string]any{
			"memory_id":    m.ID,
			"workspace_id": m.WorkspaceID,
		}, 0); err != nil || id == "" {
			runTiers()
		}
	}

	if s.contradiction != nil {
		if _, err := s.contradiction.CheckMemory(ctx, m, embedding); err != nil {
			s.logger.Warn("contradiction check failed",
				zap.String("memory_id", m.ID),
				zap.Error(err))
		}
	}
}

// autoEnrich creates typed edges to the nearest neighbors above the
// similarity threshold and optionally re-classifies the memory type.
func (s *MemoryService) autoEnrich(ctx context.Context, m *domain.Memory, embedding []float32, classifyType bool) error {
	if s.associations != nil && len(embedding) > 0 {
		neighbors, err := s.memoryStore.Search(ctx, m.WorkspaceID, embedding, autoAssociationLimit, autoAssociationThreshold, domain.SearchFilters{})
		if err != nil {
			return err
		}
		for _, neighbor := range neighbors {
			if neighbor.ID == m.ID {
				continue
			}
			relationship := s.associations.ontology.ClassifyRelationship(ctx, m.Content, neighbor.Content)
			if _, err := s.associations.Associate(ctx, AssociateInput{
				WorkspaceID:  m.WorkspaceID,
				SourceID:     m.ID,
				TargetID:     neighbor.ID,
				Relationship: relationship,
				Strength:     neighbor.Score,
			}); err != nil && !errors.Is(err, ErrAssociationExists) {
				s.logger.Debug("auto-association failed",
					zap.String("memory_id", m.ID),
					zap.String("neighbor_id", neighbor.ID),
					zap.Error(err))
			}
		}
	}

	if classifyType && s.extraction != nil {
		newType, subtype := s.extraction.ClassifyContent(ctx, m.Content)
		if newType != m.Type || (subtype != "" && subtype != m.Subtype) {
			upd := domain.MemoryUpdate{Type: &newType}
			if subtype != "" {
				upd.Subtype = &subtype
			}
			if _, err := s.memoryStore.Update(ctx, m.WorkspaceID, m.ID, upd); err != nil {
				return err
			}
			m.Type = newType
		}
	}
	return nil
}

func (s *MemoryService) Get(ctx context.Context, workspaceID, id string) (*domain.Memory, error) {
	m, err := s.memoryStore.Get(ctx, workspaceID, id, false)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMemoryNotFound
		}
		return nil, err
	}
	return m, nil
}

// Forget removes a memory: a tombstone by default, the row itself when hard
// is set.
func (s *MemoryService) Forget(ctx context.Context, workspaceID, id string, hard bool) error {
	err := s.memoryStore.Delete(ctx, workspaceID, id, hard)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMemoryNotFound
		}
		return err
	}
	return nil
}

// DecayMemory subtracts rate from a single memory's importance, clamped at
// zero. This is the direct API operation, distinct from the multiplicative
// background pass.
func (s *MemoryService) DecayMemory(ctx context.Context, workspaceID, id string, rate float64) (*domain.Memory, error) {
	m, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	lowered := m.Importance - rate
	if lowered < 0 {
		lowered = 0
	}
	updated, err := s.memoryStore.Update(ctx, workspaceID, id, domain.MemoryUpdate{Importance: &lowered})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func mergeTags(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, t := range existing {
		if !seen[t] {
			seen[t] = true
			merged = append(merged, t)
		}
	}
	for _, t := range incoming {
		if !seen[t] {
			seen[t] = true
			merged = append(merged, t)
		}
	}
	return merged
}

func mergeMetadata(existing, incoming map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}

var timeNow = time.Now
