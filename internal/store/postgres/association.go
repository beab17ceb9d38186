package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mnemoslab/mnemo/internal/domain"
	"github.com/mnemoslab/mnemo/internal/store"
)

type AssociationStore struct {
	db *pgxpool.Pool
}

func NewAssociationStore(db *pgxpool.Pool) *AssociationStore {
	return &AssociationStore{db: db}
}

func (s *AssociationStore) Create(ctx context.Context, a *domain.Association) error {
	if a.ID == "" {
		a.ID = domain.NewAssociationID()
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO associations (id, workspace_id, source_id, target_id, relationship, strength, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		a.ID, a.WorkspaceID, a.SourceID, a.TargetID, a.Relationship, a.Strength, a.Metadata,
	).Scan(&a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert association: %w", err)
	}
	return nil
}

func (s *AssociationStore) GetForMemory(ctx context.Context, workspaceID, memoryID string, direction domain.Direction, relationshipTypes []string, minStrength float64) ([]domain.Association, error) {
	var conditions []string
	var args []any

	cond := func(expr string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(expr, len(args)))
	}

	cond("workspace_id = $%d", workspaceID)
	switch direction {
	case domain.DirectionOutgoing:
		cond("source_id = $%d", memoryID)
	case domain.DirectionIncoming:
		cond("target_id = $%d", memoryID)
	default:
		args = append(args, memoryID)
		conditions = append(conditions, fmt.Sprintf("(source_id = $%d OR target_id = $%d)", len(args), len(args)))
	}
	if len(relationshipTypes) > 0 {
		cond("relationship = ANY($%d)", relationshipTypes)
	}
	if minStrength > 0 {
		cond("strength >= $%d", minStrength)
	}

	rows, err := s.db.Query(ctx,
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
		if err := rows.Scan(&a.ID, &a.WorkspaceID, &a.SourceID, &a.TargetID, &a.Relationship, &a.Strength, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan association: %w", err)
		}
		edges = append(edges, a)
	}
	return edges, rows.Err()
}

func (s *AssociationStore) Delete(ctx context.Context, workspaceID, id string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM associations WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	if err != nil {
		return fmt.Errorf("delete association: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
