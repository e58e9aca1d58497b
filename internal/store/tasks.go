package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maproulette/backend/internal/apperr"
	"github.com/maproulette/backend/internal/query"
)

// Task status values, per the lifecycle engine.
const (
	StatusCreated       = 0
	StatusFixed         = 1
	StatusFalsePositive = 2
	StatusSkipped       = 3
	StatusDeleted       = 4
	StatusAlreadyFixed  = 5
	StatusTooHard       = 6
	StatusAnswered      = 7
	StatusValidated     = 9
	StatusDisabled      = 10
)

// Task mirrors the tasks table.
type Task struct {
	ID                  int64
	ChallengeID         int64
	Name                string
	Instruction         string
	Geometries          json.RawMessage
	Status              int
	Priority            int
	MapillaryImages     json.RawMessage
	CompletionResponses json.RawMessage
	ChangesetID         *int64
	CompletedTimeSpent  *int64
	CompletedBy         *int64
	Centroid            *Point
	// CooperativeWork is the pre-computed OSM edit (a serialised
	// osm.TagChange) a cooperative challenge's task carries; nil for a
	// regular task. Scheduled into the changeset pipeline on completion.
	CooperativeWork json.RawMessage
	BundleID        *int64
	IsBundlePrimary bool
}

func (t Task) CacheID() int64    { return t.ID }
func (t Task) CacheName() string { return t.Name }

// TaskRepository persists tasks.
type TaskRepository struct {
	pool *pgxpool.Pool
}

// Create inserts a task, deriving its centroid from Geometries when the
// caller hasn't already supplied one.
func (r *TaskRepository) Create(ctx context.Context, t Task) (int64, error) {
	if t.Centroid == nil {
		if c, ok := centroidOf(t.Geometries); ok {
			t.Centroid = &c
		}
	}

	sql := `INSERT INTO tasks (challenge_id, name, instruction, geometries, status, priority, mapillary_images,
		cooperative_work, bundle_id, is_bundle_primary, centroid)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,`
	args := []any{t.ChallengeID, t.Name, t.Instruction, t.Geometries, t.Status, t.Priority, t.MapillaryImages,
		t.CooperativeWork, t.BundleID, t.IsBundlePrimary}

	if t.Centroid != nil {
		sql += fmt.Sprintf("%s) RETURNING id", makePointSQL("$11", "$12"))
		args = append(args, t.Centroid.Lon, t.Centroid.Lat)
	} else {
		sql += "NULL) RETURNING id"
	}

	var id int64
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("store: create task: %w", err)
	}
	return id, nil
}

const taskColumns = `id, challenge_id, name, instruction, geometries, status, priority, mapillary_images,
	completion_responses, changeset_id, completed_time_spent, completed_by, ST_X(centroid), ST_Y(centroid),
	cooperative_work, bundle_id, is_bundle_primary`

func (r *TaskRepository) scanRow(row pgx.Row) (Task, error) {
	var t Task
	var lon, lat *float64
	err := row.Scan(&t.ID, &t.ChallengeID, &t.Name, &t.Instruction, &t.Geometries, &t.Status, &t.Priority,
		&t.MapillaryImages, &t.CompletionResponses, &t.ChangesetID, &t.CompletedTimeSpent, &t.CompletedBy, &lon, &lat,
		&t.CooperativeWork, &t.BundleID, &t.IsBundlePrimary)
	if err == pgx.ErrNoRows {
		return Task{}, apperr.NotFoundf("task not found")
	}
	if err != nil {
		return Task{}, fmt.Errorf("store: scan task: %w", err)
	}
	if lon != nil && lat != nil {
		t.Centroid = &Point{Lon: *lon, Lat: *lat}
	}
	return t, nil
}

func (r *TaskRepository) ByID(ctx context.Context, id int64) (Task, error) {
	sql := "SELECT " + taskColumns + " FROM tasks WHERE id = $1"
	return r.scanRow(r.pool.QueryRow(ctx, sql, id))
}

// ByBundleID returns every task sharing bundleID, primary task included, for
// the engine's status-mirroring step.
func (r *TaskRepository) ByBundleID(ctx context.Context, bundleID int64) ([]Task, error) {
	sql := "SELECT " + taskColumns + " FROM tasks WHERE bundle_id = $1"
	rows, err := r.pool.Query(ctx, sql, bundleID)
	if err != nil {
		return nil, fmt.Errorf("store: tasks by bundle: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Find runs a caller-assembled query (built from SearchParameters by the
// task engine) against the tasks table.
func (r *TaskRepository) Find(ctx context.Context, f query.Filter, order query.Order, limit, page int) ([]Task, error) {
	q := query.New("SELECT "+taskColumns+" FROM tasks").
		WithFilter(f).
		WithOrder(order).
		WithPaging(query.NewPaging(limit, page))

	sqlText, args := q.Build()
	rows, err := r.pool.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("store: find tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// NearestAvailable returns up to limit unlocked, Created-status task ids in
// the given challenge ordered by proximity to p using the PostGIS <-> operator.
func (r *TaskRepository) NearestAvailable(ctx context.Context, challengeID int64, p Point, limit int) ([]int64, error) {
	const sql = `SELECT t.id FROM tasks t
		LEFT JOIN task_locks l ON l.task_id = t.id
		WHERE t.challenge_id = $1 AND t.status = $2 AND l.task_id IS NULL
		ORDER BY t.centroid <-> ST_SetSRID(ST_MakePoint($3, $4), 4326)
		LIMIT $5`
	rows, err := r.pool.Query(ctx, sql, challengeID, StatusCreated, p.Lon, p.Lat, limit)
	if err != nil {
		return nil, fmt.Errorf("store: nearest available tasks: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetStatus transitions a task's status and, when the new status completes
// the task, records the completing user and elapsed time.
func (r *TaskRepository) SetStatus(ctx context.Context, id int64, status int, completedBy *int64, timeSpentMS *int64) error {
	const sql = `UPDATE tasks SET status=$2, completed_by=COALESCE($3, completed_by),
		completed_time_spent=COALESCE($4, completed_time_spent), modified_at=now() WHERE id=$1`
	tag, err := r.pool.Exec(ctx, sql, id, status, completedBy, timeSpentMS)
	if err != nil {
		return fmt.Errorf("store: set task status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("task %d not found", id)
	}
	return nil
}

// UpdateResponses overwrites a task's free-form completion response JSON.
func (r *TaskRepository) UpdateResponses(ctx context.Context, id int64, responses json.RawMessage) error {
	tag, err := r.pool.Exec(ctx, `UPDATE tasks SET completion_responses=$2, modified_at=now() WHERE id=$1`, id, responses)
	if err != nil {
		return fmt.Errorf("store: update completion responses: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("task %d not found", id)
	}
	return nil
}

func (r *TaskRepository) SetChangeset(ctx context.Context, id int64, changesetID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE tasks SET changeset_id=$2, modified_at=now() WHERE id=$1`, id, changesetID)
	if err != nil {
		return fmt.Errorf("store: set task changeset: %w", err)
	}
	return nil
}

// Centroids returns (id, Point) pairs for every task in a challenge, used by
// the k-means clustering engine.
func (r *TaskRepository) Centroids(ctx context.Context, challengeID int64) (map[int64]Point, error) {
	const sql = `SELECT id, ST_X(centroid), ST_Y(centroid) FROM tasks WHERE challenge_id=$1 AND centroid IS NOT NULL`
	rows, err := r.pool.Query(ctx, sql, challengeID)
	if err != nil {
		return nil, fmt.Errorf("store: task centroids: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]Point)
	for rows.Next() {
		var id int64
		var lon, lat float64
		if err := rows.Scan(&id, &lon, &lat); err != nil {
			return nil, err
		}
		out[id] = Point{Lon: lon, Lat: lat}
	}
	return out, rows.Err()
}

func (r *TaskRepository) CountByStatus(ctx context.Context, challengeID int64) (map[int]int64, error) {
	const sql = `SELECT status, count(*) FROM tasks WHERE challenge_id=$1 GROUP BY status`
	rows, err := r.pool.Query(ctx, sql, challengeID)
	if err != nil {
		return nil, fmt.Errorf("store: count tasks by status: %w", err)
	}
	defer rows.Close()

	out := make(map[int]int64)
	for rows.Next() {
		var status int
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}
