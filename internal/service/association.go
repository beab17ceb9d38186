package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mnemoslab/mnemo/internal/domain"
	"github.com/mnemoslab/mnemo/internal/store"
)

const (
	// DefaultTraverseDepth bounds graph expansion when the caller does not ask
	// for more hops.
	DefaultTraverseDepth = 1
	// DefaultMinEdgeStrength filters weak edges out of traversal.
	DefaultMinEdgeStrength = 0.3
	// DefaultAssociationStrength is assigned to edges created without an
	// explicit strength.
	DefaultAssociationStrength = 0.5
)

// AssociationService manages typed edges between memories and runs bounded
// BFS traversal over them.
type AssociationService struct {
	associationStore domain.AssociationStore
	memoryStore      domain.MemoryStore
	ontology         *OntologyService
	logger           *zap.Logger
}

func NewAssociationService(as domain.AssociationStore, ms domain.MemoryStore, ont *OntologyService, logger *zap.Logger) *AssociationService {
	return &AssociationService{
		associationStore: as,
		memoryStore:      ms,
		ontology:         ont,
		logger:           logger,
	}
}

// AssociateInput is the request shape for creating an edge.
type AssociateInput struct {
	WorkspaceID  string         `json:"workspace_id"`
	SourceID     string         `json:"source_id"`
	TargetID     string         `json:"target_id"`
	Relationship string         `json:"relationship"`
	Strength     float64        `json:"strength"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func (s *AssociationService) Associate(ctx context.Context, in AssociateInput) (*domain.Association, error) {
	if in.SourceID == in.TargetID {
		return nil, ErrSelfAssociation
	}
	if err := s.ontology.ValidateRelationship(in.Relationship); err != nil {
		return nil, err
	}
	if _, err := s.memoryStore.Get(ctx, in.WorkspaceID, in.SourceID, false); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMemoryNotFound
		}
		return nil, err
	}
	if _, err := s.memoryStore.Get(ctx, in.WorkspaceID, in.TargetID, false); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMemoryNotFound
		}
		return nil, err
	}

	strength := in.Strength
	if strength == 0 {
		strength = DefaultAssociationStrength
	}
	assoc := &domain.Association{
		ID:           domain.NewAssociationID(),
		WorkspaceID:  in.WorkspaceID,
		SourceID:     in.SourceID,
		TargetID:     in.TargetID,
		Relationship: in.Relationship,
		Strength:     strength,
		Metadata:     in.Metadata,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.associationStore.Create(ctx, assoc); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrAssociationExists
		}
		return nil, err
	}
	return assoc, nil
}

// TraverseInput bounds a BFS over the association graph.
type TraverseInput struct {
	WorkspaceID       string
	StartID           string
	MaxDepth          int
	RelationshipTypes []string
	Direction         domain.Direction
	MinStrength       float64
}

// Traverse runs a breadth-first walk from StartID up to MaxDepth hops. A
// visited set guarantees termination on cycles; diamond patterns still yield
// one path per distinct route because paths are extended before the visited
// check prunes re-expansion.
func (s *AssociationService) Traverse(ctx context.Context, in TraverseInput) (*domain.TraversalResult, error) {
	if in.Direction == "" {
		in.Direction = domain.DirectionOutgoing
	}
	if !domain.ValidDirection(string(in.Direction)) {
		return nil, ErrInvalidDirection
	}
	if _, err := s.memoryStore.Get(ctx, in.WorkspaceID, in.StartID, false); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMemoryNotFound
		}
		return nil, err
	}

	result := &domain.TraversalResult{StartID: in.StartID}
	uniqueNodes := map[string]bool{in.StartID: true}

	if in.MaxDepth <= 0 {
		result.UniqueNodes = []string{in.StartID}
		return result, nil
	}

	type frontierEntry struct {
		node string
		path domain.TraversalPath
	}
	frontier := []frontierEntry{{node: in.StartID, path: domain.TraversalPath{TotalStrength: 1.0}}}
	visited := map[string]bool{in.StartID: true}

	for depth := 0; depth < in.MaxDepth && len(frontier) > 0; depth++ {
		var next []frontierEntry
		expanded := make(map[string]bool)

		for _, entry := range frontier {
			edges, err := s.associationStore.GetForMemory(ctx, in.WorkspaceID, entry.node, in.Direction, in.RelationshipTypes, in.MinStrength)
			if err != nil {
				return nil, err
			}
			for _, edge := range edges {
				neighbor := edge.TargetID
				if neighbor == entry.node {
					neighbor = edge.SourceID
				}

				steps := make([]domain.PathStep, len(entry.path.Steps), len(entry.path.Steps)+1)
				copy(steps, entry.path.Steps)
				steps = append(steps, domain.PathStep{Edge: edge, Node: neighbor})
				path := domain.TraversalPath{
					Steps:         steps,
					TotalStrength: entry.path.TotalStrength * edge.Strength,
				}
				result.Paths = append(result.Paths, path)
				uniqueNodes[neighbor] = true

				// Expand each node once per walk; later paths to it are still
				// recorded above.
				if !visited[neighbor] && !expanded[neighbor] {
					expanded[neighbor] = true
					next = append(next, frontierEntry{node: neighbor, path: path})
				}
			}
			visited[entry.node] = true
		}
		for n := range expanded {
			visited[n] = true
		}
		frontier = next
	}

	result.UniqueNodes = sortedKeys(uniqueNodes)
	result.TotalPaths = len(result.Paths)
	return result, nil
}

// GetCausalChain walks incoming edges restricted to causal relationship
// types, answering "what led to this".
func (s *AssociationService) GetCausalChain(ctx context.Context, workspaceID, targetID string, maxDepth int) (*domain.TraversalResult, error) {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return s.Traverse(ctx, TraverseInput{
		WorkspaceID:       workspaceID,
		StartID:           targetID,
		MaxDepth:          maxDepth,
		RelationshipTypes: CausalTypes(),
		Direction:         domain.DirectionIncoming,
	})
}

// GetSolutionsForProblem returns the ids of memories that solve or address
// the given problem memory.
func (s *AssociationService) GetSolutionsForProblem(ctx context.Context, workspaceID, problemID string) ([]string, error) {
	edges, err := s.associationStore.GetForMemory(ctx, workspaceID, problemID, domain.DirectionIncoming, domain.SolutionRelationships, 0)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var solutions []string
	for _, edge := range edges {
		if !seen[edge.SourceID] {
			seen[edge.SourceID] = true
			solutions = append(solutions, edge.SourceID)
		}
	}
	return solutions, nil
}

// FindContradictions returns single-hop contradicts edges in both directions.
func (s *AssociationService) FindContradictions(ctx context.Context, workspaceID, memoryID string) (*domain.TraversalResult, error) {
	return s.Traverse(ctx, TraverseInput{
		WorkspaceID:       workspaceID,
		StartID:           memoryID,
		MaxDepth:          1,
		RelationshipTypes: []string{"contradicts"},
		Direction:         domain.DirectionBoth,
	})
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
