package domain

import "time"

// Association is a directed typed edge between two memories in the same
// workspace. (source_id, target_id, relationship) is unique.
type Association struct {
	ID           string         `json:"id"`
	WorkspaceID  string         `json:"workspace_id"`
	SourceID     string         `json:"source_id"`
	TargetID     string         `json:"target_id"`
	Relationship string         `json:"relationship"`
	Strength     float64        `json:"strength"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

func ValidDirection(d string) bool {
	switch Direction(d) {
	case DirectionOutgoing, DirectionIncoming, DirectionBoth:
		return true
	}
	return false
}

// PathStep is one hop in a traversal path: the edge taken and the node reached.
type PathStep struct {
	Edge Association `json:"edge"`
	Node string      `json:"node"`
}

type TraversalPath struct {
	Steps []PathStep `json:"steps"`
	// TotalStrength is the product of edge strengths along the path.
	TotalStrength float64 `json:"total_strength"`
}

// EndNode returns the final node of the path, or the empty string for an
// empty path.
func (p TraversalPath) EndNode() string {
	if len(p.Steps) == 0 {
		return ""
	}
	return p.Steps[len(p.Steps)-1].Node
}

type TraversalResult struct {
	StartID     string          `json:"start_id"`
	Paths       []TraversalPath `json:"paths"`
	UniqueNodes []string        `json:"unique_nodes"`
	TotalPaths  int             `json:"total_paths"`
}
