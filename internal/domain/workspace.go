package domain

import "time"

// Workspace is the isolation boundary for memories and associations.
type Workspace struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Settings  map[string]any `json:"settings,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Context is an optional finer partition inside a workspace. Settings not set
// on the context are inherited from the workspace.
type Context struct {
	ID          string         `json:"id"`
	WorkspaceID string         `json:"workspace_id"`
	Name        string         `json:"name"`
	Settings    map[string]any `json:"settings,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// EffectiveSettings merges context settings over workspace settings.
func (c *Context) EffectiveSettings(ws *Workspace) map[string]any {
	merged := make(map[string]any)
	if ws != nil {
		for k, v := range ws.Settings {
			merged[k] = v
		}
	}
	if c != nil {
		for k, v := range c.Settings {
			merged[k] = v
		}
	}
	return merged
}
