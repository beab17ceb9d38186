package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/mnemoslab/mnemo/internal/domain"
	"github.com/mnemoslab/mnemo/internal/store"
)

type MemoryStore struct {
	db *pgxpool.Pool
}

func NewMemoryStore(db *pgxpool.Pool) *MemoryStore {
	return &MemoryStore{db: db}
}

const memoryColumns = `id, workspace_id, tenant_id, context_id, content, content_hash,
	abstract, overview, type, subtype, importance, pinned, status, tags, metadata,
	source_memory_id, created_at, updated_at, last_accessed_at, access_count, deleted_at`

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

	var embedding *pgvector.Vector
	if len(m.Embedding) > 0 {
		v := pgvector.NewVector(m.Embedding)
		embedding = &v
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO memories (id, workspace_id, tenant_id, context_id, content, content_hash,
			abstract, overview, type, subtype, importance, pinned, status, tags, metadata,
			embedding, source_memory_id, last_accessed_at, access_count)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, NULLIF($7, ''), NULLIF($8, ''),
			$9, NULLIF($10, ''), $11, $12, $13, $14, $15, $16, NULLIF($17, ''), NULL, 0)
		 RETURNING created_at, updated_at`,
		m.ID, m.WorkspaceID, m.TenantID, m.ContextID, m.Content, m.ContentHash,
		m.Abstract, m.Overview, m.Type, m.Subtype, m.Importance, m.Pinned, m.Status,
		m.Tags, m.Metadata, embedding, m.SourceMemoryID,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
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
		if _, err := s.db.Exec(ctx,
			`UPDATE memories SET access_count = access_count + 1, last_accessed_at = NOW()
			 WHERE workspace_id = $1 AND id = $2 AND status != 'deleted'`,
			workspaceID, id,
		); err != nil {
			return nil, fmt.Errorf("track access: %w", err)
		}
	}

	row := s.db.QueryRow(ctx,
		`SELECT `+memoryColumns+` FROM memories
		 WHERE workspace_id = $1 AND id = $2 AND status != 'deleted'`,
		workspaceID, id,
	)
	return scanMemory(row)
}

func (s *MemoryStore) GetByHash(ctx context.Context, workspaceID, hash string) (*domain.Memory, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+memoryColumns+` FROM memories
		 WHERE workspace_id = $1 AND content_hash = $2 AND status != 'deleted'`,
		workspaceID, hash,
	)
	return scanMemory(row)
}

func (s *MemoryStore) Update(ctx context.Context, workspaceID, id string, upd domain.MemoryUpdate) (*domain.Memory, error) {
	var sets []string
	var args []any

	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.Content != nil {
		set("content", *upd.Content)
	}
	if upd.ContentHash != nil {
		set("content_hash", *upd.ContentHash)
	}
	if upd.Embedding != nil {
		set("embedding", pgvector.NewVector(upd.Embedding))
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
		set("pinned", *upd.Pinned)
	}
	if upd.Status != nil {
		set("status", string(*upd.Status))
	}
	if upd.Tags != nil {
		set("tags", upd.Tags)
	}
	if upd.Metadata != nil {
		set("metadata", upd.Metadata)
	}
	if upd.TouchAccess {
		sets = append(sets, "access_count = access_count + 1", "last_accessed_at = NOW()")
	}
	sets = append(sets, "updated_at = NOW()")

	args = append(args, workspaceID, id)
	tag, err := s.db.Exec(ctx,
		fmt.Sprintf(`UPDATE memories SET %s WHERE workspace_id = $%d AND id = $%d AND status != 'deleted'`,
			strings.Join(sets, ", "), len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, fmt.Errorf("update memory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, store.ErrNotFound
	}
	return s.Get(ctx, workspaceID, id, false)
}

func (s *MemoryStore) Delete(ctx context.Context, workspaceID, id string, hard bool) error {
	var query string
	if hard {
		query = `DELETE FROM memories WHERE workspace_id = $1 AND id = $2`
	} else {
		query = `UPDATE memories SET status = 'deleted', deleted_at = NOW(), updated_at = NOW()
			 WHERE workspace_id = $1 AND id = $2 AND status != 'deleted'`
	}
	tag, err := s.db.Exec(ctx, query, workspaceID, id)
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, workspaceID string, embedding []float32, limit int, minRelevance float64, filters domain.SearchFilters) ([]domain.MemoryWithScore, error) {
	if limit <= 0 {
		limit = 10
	}

	var conditions []string
	var args []any

	cond := func(expr string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(expr, len(args)))
	}

	if filters.IncludeGlobal {
		cond("(workspace_id = $%d OR workspace_id = 'global')", workspaceID)
	} else {
		cond("workspace_id = $%d", workspaceID)
	}
	conditions = append(conditions, "embedding IS NOT NULL")

	if len(filters.Statuses) == 0 {
		conditions = append(conditions, "status = 'active'")
	} else {
		statuses := make([]string, len(filters.Statuses))
		for i, st := range filters.Statuses {
			statuses[i] = string(st)
		}
		cond("status = ANY($%d)", statuses)
	}
	if len(filters.Types) > 0 {
		types := make([]string, len(filters.Types))
		for i, t := range filters.Types {
			types[i] = string(t)
		}
		cond("type = ANY($%d)", types)
	}
	if len(filters.Subtypes) > 0 {
		cond("subtype = ANY($%d)", filters.Subtypes)
	}
	if len(filters.Tags) > 0 {
		cond("tags @> $%d", filters.Tags)
	}
	if filters.ContextID != "" {
		cond("context_id = $%d", filters.ContextID)
	}
	if filters.Pinned != nil {
		cond("pinned = $%d", *filters.Pinned)
	}
	if filters.CreatedAfter != nil {
		cond("created_at >= $%d", *filters.CreatedAfter)
	}
	if filters.CreatedBefore != nil {
		cond("created_at <= $%d", *filters.CreatedBefore)
	}

	args = append(args, pgvector.NewVector(embedding))
	embeddingParam := len(args)
	if minRelevance > 0 {
		conditions = append(conditions, fmt.Sprintf("1 - (embedding <=> $%d) >= $%d", embeddingParam, len(args)+1))
		args = append(args, minRelevance)
	}
	args = append(args, limit)
	limitParam := len(args)

	query := fmt.Sprintf(
		`SELECT `+memoryColumns+`, 1 - (embedding <=> $%d) AS score
		 FROM memories
		 WHERE %s
		 ORDER BY score DESC
		 LIMIT $%d`,
		embeddingParam, strings.Join(conditions, " AND "), limitParam,
	)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var results []domain.MemoryWithScore
	for rows.Next() {
		var ms domain.MemoryWithScore
		m, err := scanMemoryWithScore(rows, &ms.Score)
		if err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		ms.Memory = *m
		results = append(results, ms)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search rows: %w", err)
	}
	return results, nil
}

func (s *MemoryStore) GetForDecay(ctx context.Context, workspaceID string, minAgeDays int, excludePinned bool) ([]domain.Memory, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories
		 WHERE workspace_id = $1 AND status = 'active' AND created_at <= NOW() - ($2 || ' days')::interval`
	if excludePinned {
		query += " AND pinned = FALSE"
	}
	rows, err := s.db.Query(ctx, query, workspaceID, fmt.Sprintf("%d", minAgeDays))
	if err != nil {
		return nil, fmt.Errorf("decay candidates query: %w", err)
	}
	defer rows.Close()
	return collectMemories(rows)
}

func (s *MemoryStore) GetArchivalCandidates(ctx context.Context, workspaceID string, maxImportance float64, maxAccessCount, minAgeDays int) ([]domain.Memory, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+memoryColumns+` FROM memories
		 WHERE workspace_id = $1 AND status = 'active' AND pinned = FALSE
		   AND importance <= $2 AND access_count <= $3
		   AND created_at <= NOW() - ($4 || ' days')::interval`,
		workspaceID, maxImportance, maxAccessCount, fmt.Sprintf("%d", minAgeDays),
	)
	if err != nil {
		return nil, fmt.Errorf("archival candidates query: %w", err)
	}
	defer rows.Close()
	return collectMemories(rows)
}

func (s *MemoryStore) ListWorkspaceIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx,
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
	if err := scanInto(row, &m, nil); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func scanMemoryWithScore(row rowScanner, score *float64) (*domain.Memory, error) {
	var m domain.Memory
	if err := scanInto(row, &m, score); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanInto(row rowScanner, m *domain.Memory, score *float64) error {
	var tenantID, contextID, abstract, overview, subtype, sourceID *string
	var lastAccessed, deletedAt *time.Time

	dest := []any{
		&m.ID, &m.WorkspaceID, &tenantID, &contextID, &m.Content, &m.ContentHash,
		&abstract, &overview, &m.Type, &subtype, &m.Importance, &m.Pinned, &m.Status,
		&m.Tags, &m.Metadata, &sourceID,
		&m.CreatedAt, &m.UpdatedAt, &lastAccessed, &m.AccessCount, &deletedAt,
	}
	if score != nil {
		dest = append(dest, score)
	}
	if err := row.Scan(dest...); err != nil {
		return err
	}

	deref := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	m.TenantID = deref(tenantID)
	m.ContextID = deref(contextID)
	m.Abstract = deref(abstract)
	m.Overview = deref(overview)
	m.Subtype = deref(subtype)
	m.SourceMemoryID = deref(sourceID)
	m.LastAccessedAt = lastAccessed
	m.DeletedAt = deletedAt
	return nil
}

func collectMemories(rows pgx.Rows) ([]domain.Memory, error) {
	var memories []domain.Memory
	for rows.Next() {
		var m domain.Memory
		if err := scanInto(rows, &m, nil); err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}
