package service

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mnemoslab/mnemo/internal/domain"
	"github.com/mnemoslab/mnemo/internal/store"
)

// mockMemoryStore is an in-memory MemoryStore with cosine search, enforcing
// the same uniqueness rules as the real backends.
type mockMemoryStore struct {
	mu       sync.Mutex
	memories map[string]*domain.Memory

	searchErr error
}

func newMockMemoryStore() *mockMemoryStore {
	return &mockMemoryStore{memories: make(map[string]*domain.Memory)}
}

func (s *mockMemoryStore) Create(ctx context.Context, m *domain.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.memories {
		if existing.WorkspaceID == m.WorkspaceID && existing.ContentHash == m.ContentHash && existing.Status != domain.StatusDeleted {
			return store.ErrDuplicate
		}
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
		m.UpdatedAt = now
		m.LastAccessedAt = &now
	}
	cp := *m
	s.memories[m.ID] = &cp
	return nil
}

func (s *mockMemoryStore) Get(ctx context.Context, workspaceID, id string, trackAccess bool) (*domain.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memories[id]
	if !ok || m.WorkspaceID != workspaceID || m.Status == domain.StatusDeleted {
		return nil, store.ErrNotFound
	}
	if trackAccess {
		m.AccessCount++
		accessedAt := time.Now().UTC()
		m.LastAccessedAt = &accessedAt
	}
	cp := *m
	return &cp, nil
}

func (s *mockMemoryStore) Update(ctx context.Context, workspaceID, id string, upd domain.MemoryUpdate) (*domain.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memories[id]
	if !ok || m.WorkspaceID != workspaceID {
		return nil, store.ErrNotFound
	}
	if upd.Content != nil {
		m.Content = *upd.Content
	}
	if upd.ContentHash != nil {
		m.ContentHash = *upd.ContentHash
	}
	if upd.Embedding != nil {
		m.Embedding = upd.Embedding
	}
	if upd.Abstract != nil {
		m.Abstract = *upd.Abstract
	}
	if upd.Overview != nil {
		m.Overview = *upd.Overview
	}
	if upd.Type != nil {
		m.Type = *upd.Type
	}
	if upd.Subtype != nil {
		m.Subtype = *upd.Subtype
	}
	if upd.Importance != nil {
		m.Importance = *upd.Importance
	}
	if upd.Pinned != nil {
		m.Pinned = *upd.Pinned
	}
	if upd.Status != nil {
		m.Status = *upd.Status
	}
	if upd.Tags != nil {
		m.Tags = upd.Tags
	}
	if upd.Metadata != nil {
		m.Metadata = upd.Metadata
	}
	if upd.TouchAccess {
		m.AccessCount++
		accessedAt := time.Now().UTC()
		m.LastAccessedAt = &accessedAt
	}
	m.UpdatedAt = time.Now().UTC()
	cp := *m
	return &cp, nil
}

func (s *mockMemoryStore) Delete(ctx context.Context, workspaceID, id string, hard bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memories[id]
	if !ok || m.WorkspaceID != workspaceID || m.Status == domain.StatusDeleted {
		return store.ErrNotFound
	}
	if hard {
		delete(s.memories, id)
		return nil
	}
	now := time.Now().UTC()
	m.Status = domain.StatusDeleted
	m.DeletedAt = &now
	return nil
}

func (s *mockMemoryStore) GetByHash(ctx context.Context, workspaceID, hash string) (*domain.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.memories {
		if m.WorkspaceID == workspaceID && m.ContentHash == hash && m.Status != domain.StatusDeleted {
			cp := *m
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *mockMemoryStore) Search(ctx context.Context, workspaceID string, embedding []float32, limit int, minRelevance float64, filters domain.SearchFilters) ([]domain.MemoryWithScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.searchErr != nil {
		return nil, s.searchErr
	}

	statuses := filters.Statuses
	if len(statuses) == 0 {
		statuses = []domain.MemoryStatus{domain.StatusActive}
	}
	statusSet := make(map[domain.MemoryStatus]bool)
	for _, st := range statuses {
		statusSet[st] = true
	}

	var results []domain.MemoryWithScore
	for _, m := range s.memories {
		if m.WorkspaceID != workspaceID && !(filters.IncludeGlobal && m.WorkspaceID == "global") {
			continue
		}
		if !statusSet[m.Status] {
			continue
		}
		if len(filters.Types) > 0 && !containsType(filters.Types, m.Type) {
			continue
		}
		if len(filters.Tags) > 0 && !hasAllTags(m.Tags, filters.Tags) {
			continue
		}
		score := mockCosine(embedding, m.Embedding)
		if score < minRelevance {
			continue
		}
		cp := *m
		results = append(results, domain.MemoryWithScore{Memory: cp, Score: score})
	}
	sort.SliceStable(results, func(a, b int) bool { return results[a].Score > results[b].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *mockMemoryStore) GetForDecay(ctx context.Context, workspaceID string, minAgeDays int, excludePinned bool) ([]domain.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().UTC().AddDate(0, 0, -minAgeDays)
	var out []domain.Memory
	for _, m := range s.memories {
		if m.WorkspaceID != workspaceID || m.Status != domain.StatusActive {
			continue
		}
		if excludePinned && m.Pinned {
			continue
		}
		if m.CreatedAt.After(cutoff) {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

func (s *mockMemoryStore) GetArchivalCandidates(ctx context.Context, workspaceID string, maxImportance float64, maxAccessCount, minAgeDays int) ([]domain.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().UTC().AddDate(0, 0, -minAgeDays)
	var out []domain.Memory
	for _, m := range s.memories {
		if m.WorkspaceID != workspaceID || m.Status != domain.StatusActive || m.Pinned {
			continue
		}
		if m.Importance > maxImportance || m.AccessCount > maxAccessCount || m.CreatedAt.After(cutoff) {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

func (s *mockMemoryStore) ListWorkspaceIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var ids []string
	for _, m := range s.memories {
		if !seen[m.WorkspaceID] {
			seen[m.WorkspaceID] = true
			ids = append(ids, m.WorkspaceID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// put inserts a memory directly, bypassing ingestion.
func (s *mockMemoryStore) put(m *domain.Memory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = domain.NewMemoryID()
	}
	if m.ContentHash == "" {
		m.ContentHash = domain.HashContent(m.Content)
	}
	if m.Status == "" {
		m.Status = domain.StatusActive
	}
	cp := *m
	s.memories[m.ID] = &cp
}

type mockAssociationStore struct {
	mu           sync.Mutex
	associations map[string]*domain.Association
}

func newMockAssociationStore() *mockAssociationStore {
	return &mockAssociationStore{associations: make(map[string]*domain.Association)}
}

func (s *mockAssociationStore) Create(ctx context.Context, a *domain.Association) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.associations {
		if existing.SourceID == a.SourceID && existing.TargetID == a.TargetID && existing.Relationship == a.Relationship {
			return store.ErrDuplicate
		}
	}
	cp := *a
	s.associations[a.ID] = &cp
	return nil
}

func (s *mockAssociationStore) GetForMemory(ctx context.Context, workspaceID, memoryID string, direction domain.Direction, relationshipTypes []string, minStrength float64) ([]domain.Association, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	typeSet := make(map[string]bool)
	for _, t := range relationshipTypes {
		typeSet[t] = true
	}

	var out []domain.Association
	for _, a := range s.associations {
		if a.WorkspaceID != workspaceID {
			continue
		}
		switch direction {
		case domain.DirectionOutgoing:
			if a.SourceID != memoryID {
				continue
			}
		case domain.DirectionIncoming:
			if a.TargetID != memoryID {
				continue
			}
		default:
			if a.SourceID != memoryID && a.TargetID != memoryID {
				continue
			}
		}
		if len(typeSet) > 0 && !typeSet[a.Relationship] {
			continue
		}
		if a.Strength < minStrength {
			continue
		}
		out = append(out, *a)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Strength > out[b].Strength })
	return out, nil
}

func (s *mockAssociationStore) Delete(ctx context.Context, workspaceID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.associations[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.associations, id)
	return nil
}

// mockScheduler records scheduled tasks without running them.
type mockScheduler struct {
	mu        sync.Mutex
	scheduled []scheduledTask
	disabled  bool
}

type scheduledTask struct {
	TaskType string
	Payload  map[string]any
}

func (s *mockScheduler) ScheduleTask(taskType string, payload map[string]any, delay time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disabled {
		return "", nil
	}
	s.scheduled = append(s.scheduled, scheduledTask{TaskType: taskType, Payload: payload})
	return domain.NewTaskID(), nil
}

func (s *mockScheduler) ScheduleRecurring(taskType string, interval time.Duration, payload map[string]any) (string, error) {
	return s.ScheduleTask(taskType, payload, 0)
}

func (s *mockScheduler) CancelTask(id string) bool { return false }

func (s *mockScheduler) GetTaskStatus(id string) domain.TaskState { return domain.TaskNotFound }

func (s *mockScheduler) tasksOfType(taskType string) []scheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []scheduledTask
	for _, t := range s.scheduled {
		if t.TaskType == taskType {
			out = append(out, t)
		}
	}
	return out
}

// stubRegistry returns canned completions keyed by profile; unkeyed profiles
// get the default response.
type stubRegistry struct {
	mu        sync.Mutex
	responses map[string]string
	err       error
	calls     []string
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{responses: make(map[string]string)}
}

func (r *stubRegistry) Complete(ctx context.Context, req domain.CompletionRequest, profile string) (*domain.Completion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.calls = append(r.calls, profile)
	content, ok := r.responses[profile]
	if !ok {
		content = r.responses["default"]
	}
	return &domain.Completion{Content: content, FinishReason: domain.FinishStop}, nil
}

func (r *stubRegistry) CompleteStream(ctx context.Context, req domain.CompletionRequest, profile string) (<-chan domain.CompletionChunk, error) {
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

// stubReranker returns fixed scores or an error.
type stubReranker struct {
	scores []float64
	err    error
}

func (r *stubReranker) Rerank(ctx context.Context, query string, documents []string) ([]float64, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.scores != nil {
		return r.scores, nil
	}
	scores := make([]float64, len(documents))
	for i := range scores {
		scores[i] = 0.5
	}
	return scores, nil
}

func containsType(types []domain.MemoryType, t domain.MemoryType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

func hasAllTags(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, t := range have {
		set[t] = true
	}
	for _, t := range want {
		if !set[t] {
			return false
		}
	}
	return true
}

func mockCosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// containsWord is a small helper for asserting prompt contents.
func containsWord(s, word string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(word))
}
