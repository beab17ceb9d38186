package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mnemoslab/mnemo/internal/domain"
	"github.com/mnemoslab/mnemo/internal/store"
)

type MemoryStore struct {
	db *sql.DB
}

func NewMemoryStore(db *sql.DB) *MemoryStore {
	return &MemoryStore{db: db}
}

const memoryColumns = `id, workspace_id, tenant_id, context_id, content, content_hash,
	abstract, overview, type, subtype, importance, pinned, status, tags, metadata,
	embedding, source_memory_id, created_at, updated_at, last_accessed_at, access_count, deleted_at`

func (s *MemoryStore) Create(ctx context.Context, m *domain.Memory) error {
	if m.ID == "" {
		m.ID = domain.NewMemoryID()
	}
	if m.ContentHash == "" {
		m.ContentHash = domain.HashContent(m.Content)
	}
	if m.Status == "" {
		m.Status = domain.StatusActive
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	tagsJSON, err := marshalJSON(m.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	metaJSON, err := marshalJSON(m.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memories (`+memoryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.WorkspaceID, nullStr(m.TenantID), nullStr(m.ContextID), m.Content, m.ContentHash,
		nullStr(m.Abstract), nullStr(m.Overview), string(m.Type), nullStr(m.Subtype),
		m.Importance, boolInt(m.Pinned), string(m.Status), tagsJSON, metaJSON,
		encodeVector(m.Embedding), nullStr(m.SourceMemoryID),
		m.CreatedAt, m.UpdatedAt, m.LastAccessedAt, m.AccessCount, m.DeletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, workspaceID, id string, trackAccess bool) (*domain.Memory, error) {
	if trackAccess {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE memories SET access_count = access_count + 1, last_accessed_at = ?
			 WHERE workspace_id = ? AND id = ? AND status != 'deleted'`,
			time.Now().UTC(), workspaceID, id,
		); err != nil {
			return nil, fmt.Errorf("track access: %w", err)
		}
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+memoryColumns+` FROM memories
		 WHERE workspace_id = ? AND id = ? AND status != 'deleted'`,
		workspaceID, id,
	)
	m, err := scanMemory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *MemoryStore) GetByHash(ctx context.Context, workspaceID, hash string) (*domain.Memory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memoryColumns+` FROM memories
		 WHERE workspace_id = ? AND content_hash = ? AND status != 'deleted'`,
		workspaceID, hash,
	)
	m, err := scanMemory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *MemoryStore) Update(ctx context.Context, workspaceID, id string, upd domain.MemoryUpdate) (*domain.Memory, error) {
	var sets []string
	var args []any

	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if upd.Content != nil {
		set("content", *upd.Content)
	}
	if upd.ContentHash != nil {
		set("content_hash", *upd.ContentHash)
	}
	if upd.Embedding != nil {
		set("embedding", encodeVector(upd.Embedding))
	}
	if upd.Abstract != nil {
		set("abstract", *upd.Abstract)
	}
	if upd.Overview != nil {
		set("overview", *upd.Overview)
	}
	if upd.Type != nil {
		set("type", string(*upd.Type))
	}
	if upd.Subtype != nil {
		set("subtype", *upd.Subtype)
	}
	if upd.Importance != nil {
		set("importance", *upd.Importance)
	}
	if upd.Pinned != nil {
		set("pinned", boolInt(*upd.Pinned))
	}
	if upd.Status != nil {
		set("status", string(*upd.Status))
	}
	if upd.Tags != nil {
		tagsJSON, err := marshalJSON(upd.Tags)
		if err != nil {
			return nil, fmt.Errorf("marshal tags: %w", err)
		}
		set("tags", tagsJSON)
	}
	if upd.Metadata != nil {
		metaJSON, err := marshalJSON(upd.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		set("metadata", metaJSON)
	}
	if upd.TouchAccess {
		sets = append(sets, "access_count = access_count + 1", "last_accessed_at = ?")
		args = append(args, time.Now().UTC())
	}
	set("updated_at", time.Now().UTC())

	args = append(args, workspaceID, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET `+strings.Join(sets, ", ")+
			` WHERE workspace_id = ? AND id = ? AND status != 'deleted'`,
		args...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, fmt.Errorf("update memory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}
	return s.Get(ctx, workspaceID, id, false)
}

func (s *MemoryStore) Delete(ctx context.Context, workspaceID, id string, hard bool) error {
	var res sql.Result
	var err error
	if hard {
		res, err = s.db.ExecContext(ctx,
			`DELETE FROM memories WHERE workspace_id = ? AND id = ?`, workspaceID, id)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE memories SET status = 'deleted', deleted_at = ?, updated_at = ?
			 WHERE workspace_id = ? AND id = ? AND status != 'deleted'`,
			time.Now().UTC(), time.Now().UTC(), workspaceID, id)
	}
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, workspaceID string, embedding []float32, limit int, minRelevance float64, filters domain.SearchFilters) ([]domain.MemoryWithScore, error) {
	if limit <= 0 {
		limit = 10
	}

	conditions := []string{"embedding IS NOT NULL"}
	var args []any

	if filters.IncludeGlobal {
		conditions = append(conditions, "(workspace_id = ? OR workspace_id = 'global')")
	} else {
		conditions = append(conditions, "workspace_id = ?")
	}
	args = append(args, workspaceID)

	if len(filters.Statuses) == 0 {
		conditions = append(conditions, "status = 'active'")
	} else {
		placeholders := make([]string, len(filters.Statuses))
		for i, st := range filters.Statuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		conditions = append(conditions, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	if len(filters.Types) > 0 {
		placeholders := make([]string, len(filters.Types))
		for i, t := range filters.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		conditions = append(conditions, "type IN ("+strings.Join(placeholders, ", ")+")")
	}

	if len(filters.Subtypes) > 0 {
		placeholders := make([]string, len(filters.Subtypes))
		for i, st := range filters.Subtypes {
			placeholders[i] = "?"
			args = append(args, st)
		}
		conditions = append(conditions, "subtype IN ("+strings.Join(placeholders, ", ")+")")
	}

	if filters.ContextID != "" {
		conditions = append(conditions, "context_id = ?")
		args = append(args, filters.ContextID)
	}
	if filters.Pinned != nil {
		conditions = append(conditions, "pinned = ?")
		args = append(args, boolInt(*filters.Pinned))
	}
	if filters.CreatedAfter != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filters.CreatedAfter.UTC())
	}
	if filters.CreatedBefore != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, filters.CreatedBefore.UTC())
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE `+strings.Join(conditions, " AND "),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var results []domain.MemoryWithScore
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		if !hasAllTags(m.Tags, filters.Tags) {
			continue
		}
		score := cosineSimilarity(embedding, m.Embedding)
		if score < minRelevance {
			continue
		}
		results = append(results, domain.MemoryWithScore{Memory: *m, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search rows: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *MemoryStore) GetForDecay(ctx context.Context, workspaceID string, minAgeDays int, excludePinned bool) ([]domain.Memory, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -minAgeDays)
	query := `SELECT ` + memoryColumns + ` FROM memories
		 WHERE workspace_id = ? AND status = 'active' AND created_at <= ?`
	args := []any{workspaceID, cutoff}
	if excludePinned {
		query += " AND pinned = 0"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("decay candidates query: %w", err)
	}
	defer rows.Close()
	return collectMemories(rows)
}

func (s *MemoryStore) GetArchivalCandidates(ctx context.Context, workspaceID string, maxImportance float64, maxAccessCount, minAgeDays int) ([]domain.Memory, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -minAgeDays)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memoryColumns+` FROM memories
		 WHERE workspace_id = ? AND status = 'active' AND pinned = 0
		   AND importance <= ? AND access_count <= ? AND created_at <= ?`,
		workspaceID, maxImportance, maxAccessCount, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("archival candidates query: %w", err)
	}
	defer rows.Close()
	return collectMemories(rows)
}

func (s *MemoryStore) ListWorkspaceIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM workspaces
		 UNION
		 SELECT DISTINCT workspace_id FROM memories WHERE status != 'deleted'`)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*domain.Memory, error) {
	var m domain.Memory
	var tenantID, contextID, abstract, overview, subtype, sourceID sql.NullString
	var tagsJSON, metaJSON sql.NullString
	var embedding []byte
	var pinned int
	var status, memType string
	var lastAccessed, deletedAt sql.NullTime

	err := row.Scan(
		&m.ID, &m.WorkspaceID, &tenantID, &contextID, &m.Content, &m.ContentHash,
		&abstract, &overview, &memType, &subtype, &m.Importance, &pinned, &status,
		&tagsJSON, &metaJSON, &embedding, &sourceID,
		&m.CreatedAt, &m.UpdatedAt, &lastAccessed, &m.AccessCount, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	m.TenantID = tenantID.String
	m.ContextID = contextID.String
	m.Abstract = abstract.String
	m.Overview = overview.String
	m.Subtype = subtype.String
	m.SourceMemoryID = sourceID.String
	m.Type = domain.MemoryType(memType)
	m.Status = domain.MemoryStatus(status)
	m.Pinned = pinned != 0
	m.Embedding = decodeVector(embedding)
	if lastAccessed.Valid {
		t := lastAccessed.Time
		m.LastAccessedAt = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		m.DeletedAt = &t
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &m.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &m.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &m, nil
}

func collectMemories(rows *sql.Rows) ([]domain.Memory, error) {
	var memories []domain.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, *m)
	}
	return memories, rows.Err()
}

func hasAllTags(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
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

func marshalJSON(v any) (any, error) {
	switch t := v.(type) {
	case []string:
		if len(t) == 0 {
			return nil, nil
		}
	case map[string]any:
		if len(t) == 0 {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
