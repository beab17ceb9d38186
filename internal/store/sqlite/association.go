package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mnemoslab/mnemo/internal/domain"
	"github.com/mnemoslab/mnemo/internal/store"
)

type AssociationStore struct {
	db *sql.DB
}

func NewAssociationStore(db *sql.DB) *AssociationStore {
	return &AssociationStore{db: db}
}

func (s *AssociationStore) Create(ctx context.Context, a *domain.Association) error {
	if a.ID == "" {
		a.ID = domain.NewAssociationID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	metaJSON, err := marshalJSON(a.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO associations (id, workspace_id, source_id, target_id, relationship, strength, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.WorkspaceID, a.SourceID, a.TargetID, a.Relationship, a.Strength, metaJSON, a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert association: %w", err)
	}
	return nil
}

func (s *AssociationStore) GetForMemory(ctx context.Context, workspaceID, memoryID string, direction domain.Direction, relationshipTypes []string, minStrength float64) ([]domain.Association, error) {
	conditions := []string{"workspace_id = ?"}
	args := []any{workspaceID}

	switch direction {
	case domain.DirectionOutgoing:
		conditions = append(conditions, "source_id = ?")
		args = append(args, memoryID)
	case domain.DirectionIncoming:
		conditions = append(conditions, "target_id = ?")
		args = append(args, memoryID)
	default:
		conditions = append(conditions, "(source_id = ? OR target_id = ?)")
		args = append(args, memoryID, memoryID)
	}

	if len(relationshipTypes) > 0 {
		placeholders := make([]string, len(relationshipTypes))
		for i, rt := range relationshipTypes {
			placeholders[i] = "?"
			args = append(args, rt)
		}
		conditions = append(conditions, "relationship IN ("+strings.Join(placeholders, ", ")+")")
	}
	if minStrength > 0 {
		conditions = append(conditions, "strength >= ?")
		args = append(args, minStrength)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workspace_id, source_id, target_id, relationship, strength, metadata, created_at
		 FROM associations WHERE `+strings.Join(conditions, " AND ")+` ORDER BY strength DESC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("associations query: %w", err)
	}
	defer rows.Close()

	var edges []domain.Association
	for rows.Next() {
		var a domain.Association
		var metaJSON sql.NullString
		if err := rows.Scan(&a.ID, &a.WorkspaceID, &a.SourceID, &a.TargetID, &a.Relationship, &a.Strength, &metaJSON, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan association: %w", err)
		}
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &a.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal association metadata: %w", err)
			}
		}
		edges = append(edges, a)
	}
	return edges, rows.Err()
}

func (s *AssociationStore) Delete(ctx context.Context, workspaceID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM associations WHERE workspace_id = ? AND id = ?`, workspaceID, id)
	if err != nil {
		return fmt.Errorf("delete association: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}
