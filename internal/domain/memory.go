package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

type MemoryType string

const (
	MemoryTypeSemantic   MemoryType = "semantic"
	MemoryTypeEpisodic   MemoryType = "episodic"
	MemoryTypeProcedural MemoryType = "procedural"
	MemoryTypeWorking    MemoryType = "working"
)

func ValidMemoryType(t string) bool {
	switch MemoryType(t) {
	case MemoryTypeSemantic, MemoryTypeEpisodic, MemoryTypeProcedural, MemoryTypeWorking:
		return true
	}
	return false
}

type MemoryStatus string

const (
	StatusActive   MemoryStatus = "active"
	StatusArchived MemoryStatus = "archived"
	StatusDeleted  MemoryStatus = "deleted"
)

func ValidMemoryStatus(s string) bool {
	switch MemoryStatus(s) {
	case StatusActive, StatusArchived, StatusDeleted:
		return true
	}
	return false
}

type Memory struct {
	ID             string         `json:"id"`
	WorkspaceID    string         `json:"workspace_id"`
	TenantID       string         `json:"tenant_id,omitempty"`
	ContextID      string         `json:"context_id,omitempty"`
	Content        string         `json:"content"`
	ContentHash    string         `json:"content_hash"`
	Abstract       string         `json:"abstract,omitempty"`
	Overview       string         `json:"overview,omitempty"`
	Type           MemoryType     `json:"type"`
	Subtype        string         `json:"subtype,omitempty"`
	Importance     float64        `json:"importance"`
	Pinned         bool           `json:"pinned"`
	Status         MemoryStatus   `json:"status"`
	Tags           []string       `json:"tags,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Embedding      []float32      `json:"-"`
	SourceMemoryID string         `json:"source_memory_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	LastAccessedAt *time.Time     `json:"last_accessed_at,omitempty"`
	AccessCount    int            `json:"access_count"`
	DeletedAt      *time.Time     `json:"deleted_at,omitempty"`
}

// NormalizeContent collapses whitespace and lowercases content so hashing is
// stable across formatting differences.
func NormalizeContent(content string) string {
	return strings.ToLower(strings.Join(strings.Fields(content), " "))
}

// HashContent returns the stable content hash used for exact-duplicate detection.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(NormalizeContent(content)))
	return hex.EncodeToString(sum[:])
}

type MemoryWithScore struct {
	Memory
	Score float64 `json:"score"`
}
