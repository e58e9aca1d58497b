package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maproulette/backend/internal/apperr"
	"github.com/maproulette/backend/internal/query"
)

// Challenge mirrors the challenges table.
type Challenge struct {
	ID                 int64
	ProjectID          int64
	Name               string
	Description        string
	Instruction        string
	OwnerID            int64
	Enabled            bool
	Featured           bool
	ReviewEnabled      bool
	Difficulty         int
	DefaultPriority    int
	HighPriorityRule   string
	MediumPriorityRule string
	LowPriorityRule    string
	CheckinComment     string
	CheckinSource      string
	Status             int
	ScheduleCron       string
	RemoteGeoJSONURL   string
	// CooperativeType names the kind of pre-computed OSM edit this
	// challenge's tasks carry ("tag-fix" etc.); empty means the challenge
	// is not cooperative and its tasks have no cooperative-work payload.
	CooperativeType string
	Bounding        *BoundingBox
}

func (c Challenge) CacheID() int64    { return c.ID }
func (c Challenge) CacheName() string { return c.Name }

// ChallengeRepository persists challenges.
type ChallengeRepository struct {
	pool *pgxpool.Pool
}

func (r *ChallengeRepository) Create(ctx context.Context, c Challenge) (int64, error) {
	sql := `INSERT INTO challenges (project_id, name, description, instruction, owner_id, enabled, featured,
		review_enabled, difficulty, default_priority, high_priority_rule, medium_priority_rule, low_priority_rule,
		checkin_comment, checkin_source, status, schedule_cron, remote_geojson_url, cooperative_type, bounding)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,`

	args := []any{c.ProjectID, c.Name, c.Description, c.Instruction, c.OwnerID, c.Enabled, c.Featured, c.ReviewEnabled,
		c.Difficulty, c.DefaultPriority, c.HighPriorityRule, c.MediumPriorityRule, c.LowPriorityRule,
		c.CheckinComment, c.CheckinSource, c.Status, c.ScheduleCron, c.RemoteGeoJSONURL, c.CooperativeType}

	if c.Bounding != nil {
		sql += fmt.Sprintf("%s) RETURNING id", envelopeSQL("$20", "$21", "$22", "$23"))
		args = append(args, c.Bounding.MinLon, c.Bounding.MinLat, c.Bounding.MaxLon, c.Bounding.MaxLat)
	} else {
		sql += "NULL) RETURNING id"
	}

	var id int64
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("store: create challenge: %w", err)
	}
	return id, nil
}

const challengeColumns = `id, project_id, name, description, instruction, owner_id, enabled, featured, review_enabled,
	difficulty, default_priority, high_priority_rule, medium_priority_rule, low_priority_rule,
	checkin_comment, checkin_source, status, schedule_cron, remote_geojson_url, cooperative_type,
	ST_XMin(bounding), ST_YMin(bounding), ST_XMax(bounding), ST_YMax(bounding)`

func (r *ChallengeRepository) scanRow(row pgx.Row) (Challenge, error) {
	var c Challenge
	var minLon, minLat, maxLon, maxLat *float64
	err := row.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Description, &c.Instruction, &c.OwnerID, &c.Enabled, &c.Featured, &c.ReviewEnabled,
		&c.Difficulty, &c.DefaultPriority, &c.HighPriorityRule, &c.MediumPriorityRule, &c.LowPriorityRule,
		&c.CheckinComment, &c.CheckinSource, &c.Status, &c.ScheduleCron, &c.RemoteGeoJSONURL, &c.CooperativeType,
		&minLon, &minLat, &maxLon, &maxLat)
	if err == pgx.ErrNoRows {
		return Challenge{}, apperr.NotFoundf("challenge not found")
	}
	if err != nil {
		return Challenge{}, fmt.Errorf("store: scan challenge: %w", err)
	}
	if minLon != nil && minLat != nil && maxLon != nil && maxLat != nil {
		c.Bounding = &BoundingBox{MinLon: *minLon, MinLat: *minLat, MaxLon: *maxLon, MaxLat: *maxLat}
	}
	return c, nil
}

func (r *ChallengeRepository) ByID(ctx context.Context, id int64) (Challenge, error) {
	sql := "SELECT " + challengeColumns + " FROM challenges WHERE id = $1"
	return r.scanRow(r.pool.QueryRow(ctx, sql, id))
}

// List returns challenges matching f, ordered by name.
func (r *ChallengeRepository) List(ctx context.Context, f query.Filter, limit, page int) ([]Challenge, error) {
	q := query.New("SELECT " + challengeColumns + " FROM challenges").
		WithFilter(f).
		WithOrder(query.NewOrder(query.OrderField{Name: "name", IsColumn: true})).
		WithPaging(query.NewPaging(limit, page))

	sqlText, args := q.Build()
	rows, err := r.pool.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list challenges: %w", err)
	}
	defer rows.Close()

	var out []Challenge
	for rows.Next() {
		c, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// WithinBounding returns challenge IDs whose bounding box intersects p,
// using the PostGIS && bounding-box operator.
func (r *ChallengeRepository) WithinBounding(ctx context.Context, p Point) ([]int64, error) {
	const sql = `SELECT id FROM challenges WHERE bounding && ST_SetSRID(ST_MakePoint($1, $2), 4326)`
	rows, err := r.pool.Query(ctx, sql, p.Lon, p.Lat)
	if err != nil {
		return nil, fmt.Errorf("store: challenges within bounding: %w", err)
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

func (r *ChallengeRepository) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE challenges SET enabled=$2, modified_at=now() WHERE id=$1`, id, enabled)
	if err != nil {
		return fmt.Errorf("store: set challenge enabled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("challenge %d not found", id)
	}
	return nil
}

func (r *ChallengeRepository) UpdateScheduleCron(ctx context.Context, id int64, cron string) error {
	_, err := r.pool.Exec(ctx, `UPDATE challenges SET schedule_cron=$2, modified_at=now() WHERE id=$1`, id, cron)
	if err != nil {
		return fmt.Errorf("store: update challenge schedule: %w", err)
	}
	return nil
}

// Scheduled returns (id, cron spec) for every challenge with a non-empty
// schedule_cron, for the scheduler's runChallengeSchedules job to evaluate
// against its own cron parser.
func (r *ChallengeRepository) Scheduled(ctx context.Context) (map[int64]string, error) {
	const sql = `SELECT id, schedule_cron FROM challenges WHERE schedule_cron <> ''`
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("store: scheduled challenges: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var id int64
		var cronSpec string
		if err := rows.Scan(&id, &cronSpec); err != nil {
			return nil, err
		}
		out[id] = cronSpec
	}
	return out, rows.Err()
}

// RecomputeLocation recalculates id's bounding box from the envelope of its
// tasks' current centroids. A challenge with no geolocated tasks yet is left
// untouched rather than cleared to NULL.
func (r *ChallengeRepository) RecomputeLocation(ctx context.Context, id int64) error {
	const sql = `UPDATE challenges SET
		bounding = (SELECT ST_Envelope(ST_Collect(centroid)) FROM tasks WHERE challenge_id=$1 AND centroid IS NOT NULL),
		modified_at = now()
		WHERE id=$1 AND EXISTS (SELECT 1 FROM tasks WHERE challenge_id=$1 AND centroid IS NOT NULL)`
	if _, err := r.pool.Exec(ctx, sql, id); err != nil {
		return fmt.Errorf("store: recompute challenge location: %w", err)
	}
	return nil
}

// AllIDs returns every challenge id, for jobs that must visit all challenges.
func (r *ChallengeRepository) AllIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM challenges`)
	if err != nil {
		return nil, fmt.Errorf("store: all challenge ids: %w", err)
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
