package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maproulette/backend/internal/apperr"
	"github.com/maproulette/backend/internal/query"
)

// Project mirrors the projects table.
type Project struct {
	ID          int64
	Name        string
	DisplayName string
	Description string
	OwnerID     int64
	Enabled     bool
	Featured    bool
	IsVirtual   bool
}

func (p Project) CacheID() int64    { return p.ID }
func (p Project) CacheName() string { return p.Name }

// ProjectRepository persists projects.
type ProjectRepository struct {
	pool *pgxpool.Pool
}

func (r *ProjectRepository) Create(ctx context.Context, p Project) (int64, error) {
	const sql = `INSERT INTO projects (name, display_name, description, owner_id, enabled, featured, is_virtual)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	var id int64
	err := r.pool.QueryRow(ctx, sql, p.Name, p.DisplayName, p.Description, p.OwnerID, p.Enabled, p.Featured, p.IsVirtual).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: create project: %w", err)
	}
	return id, nil
}

func (r *ProjectRepository) ByID(ctx context.Context, id int64) (Project, error) {
	const sql = `SELECT id, name, display_name, description, owner_id, enabled, featured, is_virtual
		FROM projects WHERE id = $1`
	return r.scanOne(ctx, sql, id)
}

func (r *ProjectRepository) ByName(ctx context.Context, name string) (Project, error) {
	const sql = `SELECT id, name, display_name, description, owner_id, enabled, featured, is_virtual
		FROM projects WHERE name = $1`
	return r.scanOne(ctx, sql, name)
}

func (r *ProjectRepository) scanOne(ctx context.Context, sql string, arg any) (Project, error) {
	var p Project
	err := r.pool.QueryRow(ctx, sql, arg).Scan(&p.ID, &p.Name, &p.DisplayName, &p.Description, &p.OwnerID, &p.Enabled, &p.Featured, &p.IsVirtual)
	if err == pgx.ErrNoRows {
		return Project{}, apperr.NotFoundf("project not found")
	}
	if err != nil {
		return Project{}, fmt.Errorf("store: get project: %w", err)
	}
	return p, nil
}

// List returns projects matching the given query filter, ordered by name.
func (r *ProjectRepository) List(ctx context.Context, f query.Filter, limit, page int) ([]Project, error) {
	q := query.New(`SELECT id, name, display_name, description, owner_id, enabled, featured, is_virtual FROM projects`).
		WithFilter(f).
		WithOrder(query.NewOrder(query.OrderField{Name: "name", IsColumn: true})).
		WithPaging(query.NewPaging(limit, page))

	sqlText, args := q.Build()
	rows, err := r.pool.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.DisplayName, &p.Description, &p.OwnerID, &p.Enabled, &p.Featured, &p.IsVirtual); err != nil {
			return nil, fmt.Errorf("store: scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProjectRepository) Update(ctx context.Context, p Project) error {
	const sql = `UPDATE projects SET display_name=$2, description=$3, enabled=$4, featured=$5, modified_at=now() WHERE id=$1`
	tag, err := r.pool.Exec(ctx, sql, p.ID, p.DisplayName, p.Description, p.Enabled, p.Featured)
	if err != nil {
		return fmt.Errorf("store: update project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("project %d not found", p.ID)
	}
	return nil
}

func (r *ProjectRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("store: delete project: %w", err)
	}
	return nil
}
