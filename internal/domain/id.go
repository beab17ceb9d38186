package domain

import "github.com/google/uuid"

// Identifiers are opaque strings with a type-tagged prefix so logs and API
// payloads are self-describing.
const (
	MemoryIDPrefix      = "mem_"
	AssociationIDPrefix = "assoc_"
	WorkspaceIDPrefix   = "ws_"
	ContextIDPrefix     = "ctx_"
	TaskIDPrefix        = "task_"
)

func NewMemoryID() string      { return MemoryIDPrefix + uuid.NewString() }
func NewAssociationID() string { return AssociationIDPrefix + uuid.NewString() }
func NewWorkspaceID() string   { return WorkspaceIDPrefix + uuid.NewString() }
func NewContextID() string     { return ContextIDPrefix + uuid.NewString() }
func NewTaskID() string        { return TaskIDPrefix + uuid.NewString() }
