package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maproulette/backend/internal/apperr"
)

// Tag mirrors the tags table.
type Tag struct {
	ID          int64
	Name        string
	Description string
}

func (t Tag) CacheID() int64    { return t.ID }
func (t Tag) CacheName() string { return t.Name }

// TagRepository persists tags and their task associations.
type TagRepository struct {
	pool *pgxpool.Pool
}

func (r *TagRepository) Create(ctx context.Context, t Tag) (int64, error) {
	const sql = `INSERT INTO tags (name, description) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET description=EXCLUDED.description RETURNING id`
	var id int64
	if err := r.pool.QueryRow(ctx, sql, t.Name, t.Description).Scan(&id); err != nil {
		return 0, fmt.Errorf("store: create tag: %w", err)
	}
	return id, nil
}

func (r *TagRepository) ByName(ctx context.Context, name string) (Tag, error) {
	var t Tag
	err := r.pool.QueryRow(ctx, `SELECT id, name, description FROM tags WHERE name=$1`, name).Scan(&t.ID, &t.Name, &t.Description)
	if err == pgx.ErrNoRows {
		return Tag{}, apperr.NotFoundf("tag %q not found", name)
	}
	if err != nil {
		return Tag{}, fmt.Errorf("store: tag by name: %w", err)
	}
	return t, nil
}

func (r *TagRepository) ForTask(ctx context.Context, taskID int64) ([]Tag, error) {
	const sql = `SELECT t.id, t.name, t.description FROM tags t
		JOIN task_tags tt ON tt.tag_id = t.id WHERE tt.task_id = $1 ORDER BY t.name`
	rows, err := r.pool.Query(ctx, sql, taskID)
	if err != nil {
		return nil, fmt.Errorf("store: tags for task: %w", err)
	}
	defer rows.Close()

	var out []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Description); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TagRepository) AttachToTask(ctx context.Context, taskID, tagID int64) error {
	const sql = `INSERT INTO task_tags (task_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	_, err := r.pool.Exec(ctx, sql, taskID, tagID)
	if err != nil {
		return fmt.Errorf("store: attach tag: %w", err)
	}
	return nil
}

func (r *TagRepository) DetachFromTask(ctx context.Context, taskID, tagID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM task_tags WHERE task_id=$1 AND tag_id=$2`, taskID, tagID)
	if err != nil {
		return fmt.Errorf("store: detach tag: %w", err)
	}
	return nil
}
