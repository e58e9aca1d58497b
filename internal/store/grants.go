package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maproulette/backend/internal/authz"
)

// GrantRepository persists authz.Grant rows and satisfies
// authz.GrantRepository so the authorisation checker can query it directly.
type GrantRepository struct {
	pool *pgxpool.Pool
}

var _ authz.GrantRepository = (*GrantRepository)(nil)

func (r *GrantRepository) GrantsForGrantee(ctx context.Context, kind authz.GranteeKind, granteeID int64) ([]authz.Grant, error) {
	const sql = `SELECT id, grantee_kind, grantee_id, role, target_kind, target_id
		FROM grants WHERE grantee_kind=$1 AND grantee_id=$2`
	rows, err := r.pool.Query(ctx, sql, string(kind), granteeID)
	if err != nil {
		return nil, fmt.Errorf("store: grants for grantee: %w", err)
	}
	defer rows.Close()

	var out []authz.Grant
	for rows.Next() {
		var g authz.Grant
		var granteeKind, targetKind string
		if err := rows.Scan(&g.ID, &granteeKind, &g.GranteeID, &g.Role, &targetKind, &g.TargetID); err != nil {
			return nil, fmt.Errorf("store: scan grant: %w", err)
		}
		g.GranteeKind = authz.GranteeKind(granteeKind)
		g.TargetKind = authz.TargetKind(targetKind)
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *GrantRepository) Create(ctx context.Context, g authz.Grant) (int64, error) {
	const sql = `INSERT INTO grants (grantee_kind, grantee_id, role, target_kind, target_id)
		VALUES ($1,$2,$3,$4,$5) RETURNING id`
	var id int64
	err := r.pool.QueryRow(ctx, sql, string(g.GranteeKind), g.GranteeID, g.Role, string(g.TargetKind), g.TargetID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: create grant: %w", err)
	}
	return id, nil
}

func (r *GrantRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM grants WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("store: delete grant: %w", err)
	}
	return nil
}

func (r *GrantRepository) ForTarget(ctx context.Context, kind authz.TargetKind, targetID int64) ([]authz.Grant, error) {
	const sql = `SELECT id, grantee_kind, grantee_id, role, target_kind, target_id
		FROM grants WHERE target_kind=$1 AND target_id=$2`
	rows, err := r.pool.Query(ctx, sql, string(kind), targetID)
	if err != nil {
		return nil, fmt.Errorf("store: grants for target: %w", err)
	}
	defer rows.Close()

	var out []authz.Grant
	for rows.Next() {
		var g authz.Grant
		var granteeKind, targetKind string
		if err := rows.Scan(&g.ID, &granteeKind, &g.GranteeID, &g.Role, &targetKind, &g.TargetID); err != nil {
			return nil, fmt.Errorf("store: scan grant: %w", err)
		}
		g.GranteeKind = authz.GranteeKind(granteeKind)
		g.TargetKind = authz.TargetKind(targetKind)
		out = append(out, g)
	}
	return out, rows.Err()
}
