package domain

import (
	"context"
	"time"
)

// SearchFilters narrows a vector search. Tags use AND semantics; a memory must
// carry every listed tag.
type SearchFilters struct {
	Types         []MemoryType
	Subtypes      []string
	Tags          []string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Statuses      []MemoryStatus
	Pinned        *bool
	ContextID     string
	IncludeGlobal bool
}

// MemoryUpdate carries the updatable fields of a memory. Nil pointers leave
// the stored value untouched.
type MemoryUpdate struct {
	Content     *string
	ContentHash *string
	Embedding   []float32
	Abstract    *string
	Overview    *string
	Type        *MemoryType
	Subtype     *string
	Importance  *float64
	Pinned      *bool
	Status      *MemoryStatus
	Tags        []string
	Metadata    map[string]any
	// TouchAccess updates last_accessed_at and increments access_count.
	TouchAccess bool
}

type MemoryStore interface {
	Create(ctx context.Context, m *Memory) error
	// Get loads a memory. trackAccess atomically increments access_count and
	// updates last_accessed_at.
	Get(ctx context.Context, workspaceID, id string, trackAccess bool) (*Memory, error)
	Update(ctx context.Context, workspaceID, id string, upd MemoryUpdate) (*Memory, error)
	// Delete tombstones the memory, or removes the row when hard is set.
	Delete(ctx context.Context, workspaceID, id string, hard bool) error
	GetByHash(ctx context.Context, workspaceID, hash string) (*Memory, error)
	// Search returns memories ordered by descending similarity to the query
	// embedding, after applying filters and the minRelevance floor.
	Search(ctx context.Context, workspaceID string, embedding []float32, limit int, minRelevance float64, filters SearchFilters) ([]MemoryWithScore, error)
	GetForDecay(ctx context.Context, workspaceID string, minAgeDays int, excludePinned bool) ([]Memory, error)
	GetArchivalCandidates(ctx context.Context, workspaceID string, maxImportance float64, maxAccessCount, minAgeDays int) ([]Memory, error)
	ListWorkspaceIDs(ctx context.Context) ([]string, error)
}

type AssociationStore interface {
	Create(ctx context.Context, a *Association) error
	// GetForMemory returns edges touching memoryID, filtered by direction,
	// relationship types (empty = all) and minimum strength.
	GetForMemory(ctx context.Context, workspaceID, memoryID string, direction Direction, relationshipTypes []string, minStrength float64) ([]Association, error)
	Delete(ctx context.Context, workspaceID, id string) error
}

type WorkspaceStore interface {
	CreateWorkspace(ctx context.Context, ws *Workspace) error
	GetWorkspace(ctx context.Context, id string) (*Workspace, error)
	CreateContext(ctx context.Context, c *Context) error
	GetContext(ctx context.Context, workspaceID, id string) (*Context, error)
}
