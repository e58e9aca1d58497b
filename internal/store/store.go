// Package store provides Postgres-backed persistence for every aggregate in
// the backend: projects, challenges, tasks, reviews, locks, grants, tags, and
// cached OSM objects.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps the shared connection pool. Repositories are thin structs that
// hold the same pool, so they share it without each opening its own.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres, applies the schema, and returns a ready Store.
func Open(ctx context.Context, dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime time.Duration) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	if maxOpenConns > 0 {
		cfg.MaxConns = int32(maxOpenConns)
	}
	if maxIdleConns > 0 {
		cfg.MinConns = int32(maxIdleConns)
	}
	if connMaxLifetime > 0 {
		cfg.MaxConnLifetime = connMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS postgis"); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: enable postgis: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Pool returns the underlying pgxpool for advanced queries.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Projects returns a repository bound to this store's pool.
func (s *Store) Projects() *ProjectRepository { return &ProjectRepository{pool: s.pool} }

// Challenges returns a repository bound to this store's pool.
func (s *Store) Challenges() *ChallengeRepository { return &ChallengeRepository{pool: s.pool} }

// Tasks returns a repository bound to this store's pool.
func (s *Store) Tasks() *TaskRepository { return &TaskRepository{pool: s.pool} }

// Reviews returns a repository bound to this store's pool.
func (s *Store) Reviews() *TaskReviewRepository { return &TaskReviewRepository{pool: s.pool} }

// Locks returns a repository bound to this store's pool.
func (s *Store) Locks() *LockRepository { return &LockRepository{pool: s.pool} }

// Grants returns a repository bound to this store's pool.
func (s *Store) Grants() *GrantRepository { return &GrantRepository{pool: s.pool} }

// Tags returns a repository bound to this store's pool.
func (s *Store) Tags() *TagRepository { return &TagRepository{pool: s.pool} }

// StatusActions returns a repository bound to this store's pool.
func (s *Store) StatusActions() *StatusActionRepository { return &StatusActionRepository{pool: s.pool} }

// UserMetrics returns a repository bound to this store's pool.
func (s *Store) UserMetrics() *UserMetricsRepository { return &UserMetricsRepository{pool: s.pool} }

// OSMObjects returns a repository bound to this store's pool.
func (s *Store) OSMObjects() *OSMObjectRepository { return &OSMObjectRepository{pool: s.pool} }

// Notifications returns a repository bound to this store's pool.
func (s *Store) Notifications() *NotificationRepository { return &NotificationRepository{pool: s.pool} }

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	owner_id BIGINT NOT NULL,
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	featured BOOLEAN NOT NULL DEFAULT FALSE,
	is_virtual BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	modified_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS challenges (
	id BIGSERIAL PRIMARY KEY,
	project_id BIGINT NOT NULL REFERENCES projects(id),
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	instruction TEXT NOT NULL DEFAULT '',
	owner_id BIGINT NOT NULL,
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	featured BOOLEAN NOT NULL DEFAULT FALSE,
	review_enabled BOOLEAN NOT NULL DEFAULT TRUE,
	difficulty SMALLINT NOT NULL DEFAULT 2,
	default_priority SMALLINT NOT NULL DEFAULT 1,
	high_priority_rule TEXT NOT NULL DEFAULT '',
	medium_priority_rule TEXT NOT NULL DEFAULT '',
	low_priority_rule TEXT NOT NULL DEFAULT '',
	checkin_comment TEXT NOT NULL DEFAULT '',
	checkin_source TEXT NOT NULL DEFAULT '',
	status SMALLINT NOT NULL DEFAULT 0,
	schedule_cron TEXT NOT NULL DEFAULT '',
	remote_geojson_url TEXT NOT NULL DEFAULT '',
	cooperative_type TEXT NOT NULL DEFAULT '',
	bounding GEOMETRY(Polygon, 4326),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	modified_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_challenges_bounding ON challenges USING GIST(bounding);

CREATE TABLE IF NOT EXISTS virtual_challenges (
	id BIGSERIAL PRIMARY KEY,
	owner_id BIGINT NOT NULL,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	search_parameters JSONB NOT NULL DEFAULT '{}',
	expiry TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tasks (
	id BIGSERIAL PRIMARY KEY,
	challenge_id BIGINT NOT NULL REFERENCES challenges(id),
	name TEXT NOT NULL DEFAULT '',
	instruction TEXT NOT NULL DEFAULT '',
	geometries JSONB NOT NULL,
	status SMALLINT NOT NULL DEFAULT 0,
	priority SMALLINT NOT NULL DEFAULT 1,
	mapillary_images JSONB NOT NULL DEFAULT '[]',
	completion_responses JSONB NOT NULL DEFAULT '{}',
	changeset_id BIGINT,
	completed_time_spent BIGINT,
	completed_by BIGINT,
	centroid GEOMETRY(Point, 4326),
	cooperative_work JSONB,
	bundle_id BIGINT,
	is_bundle_primary BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	modified_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_tasks_challenge_status ON tasks(challenge_id, status);
CREATE INDEX IF NOT EXISTS idx_tasks_priority ON tasks(challenge_id, priority, status);
CREATE INDEX IF NOT EXISTS idx_tasks_centroid ON tasks USING GIST(centroid);

CREATE TABLE IF NOT EXISTS task_review (
	id BIGSERIAL PRIMARY KEY,
	task_id BIGINT NOT NULL UNIQUE REFERENCES tasks(id),
	review_requested_by BIGINT NOT NULL,
	reviewed_by BIGINT,
	review_status SMALLINT NOT NULL DEFAULT 0,
	review_claimed_by BIGINT,
	review_claimed_at TIMESTAMPTZ,
	review_started_at TIMESTAMPTZ,
	reviewed_at TIMESTAMPTZ,
	review_comment TEXT NOT NULL DEFAULT '',
	meta_review_status SMALLINT,
	meta_reviewed_by BIGINT,
	meta_reviewed_at TIMESTAMPTZ,
	additional_reviewers BIGINT[] NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_task_review_task ON task_review(task_id);
CREATE INDEX IF NOT EXISTS idx_task_review_status ON task_review(review_status);

CREATE TABLE IF NOT EXISTS task_locks (
	task_id BIGINT PRIMARY KEY REFERENCES tasks(id),
	user_id BIGINT NOT NULL,
	locked_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS grants (
	id BIGSERIAL PRIMARY KEY,
	grantee_kind TEXT NOT NULL,
	grantee_id BIGINT NOT NULL,
	role SMALLINT NOT NULL,
	target_kind TEXT NOT NULL,
	target_id BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_grants_grantee ON grants(grantee_kind, grantee_id);
CREATE INDEX IF NOT EXISTS idx_grants_target ON grants(target_kind, target_id);

CREATE TABLE IF NOT EXISTS tags (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS task_tags (
	task_id BIGINT NOT NULL REFERENCES tasks(id),
	tag_id BIGINT NOT NULL REFERENCES tags(id),
	PRIMARY KEY (task_id, tag_id)
);

CREATE TABLE IF NOT EXISTS status_actions (
	id BIGSERIAL PRIMARY KEY,
	task_id BIGINT NOT NULL REFERENCES tasks(id),
	challenge_id BIGINT NOT NULL,
	project_id BIGINT NOT NULL,
	user_id BIGINT NOT NULL,
	old_status SMALLINT NOT NULL,
	new_status SMALLINT NOT NULL,
	started_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_status_actions_user ON status_actions(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_status_actions_challenge ON status_actions(challenge_id, created_at);

CREATE TABLE IF NOT EXISTS user_metrics (
	user_id BIGINT PRIMARY KEY,
	total_score BIGINT NOT NULL DEFAULT 0,
	tasks_completed BIGINT NOT NULL DEFAULT 0,
	tasks_fixed BIGINT NOT NULL DEFAULT 0,
	tasks_false_positive BIGINT NOT NULL DEFAULT 0,
	tasks_skipped BIGINT NOT NULL DEFAULT 0,
	tasks_reviewed BIGINT NOT NULL DEFAULT 0,
	tasks_review_approved BIGINT NOT NULL DEFAULT 0,
	tasks_review_rejected BIGINT NOT NULL DEFAULT 0,
	total_time_spent_ms BIGINT NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS osm_objects (
	id BIGSERIAL PRIMARY KEY,
	osm_type TEXT NOT NULL,
	osm_id BIGINT NOT NULL,
	version INT NOT NULL,
	changeset_id BIGINT,
	tags JSONB NOT NULL DEFAULT '{}',
	lon DOUBLE PRECISION,
	lat DOUBLE PRECISION,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(osm_type, osm_id, version)
);

CREATE INDEX IF NOT EXISTS idx_osm_objects_lookup ON osm_objects(osm_type, osm_id);

CREATE TABLE IF NOT EXISTS notifications (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL,
	notification_type SMALLINT NOT NULL,
	challenge_id BIGINT,
	task_id BIGINT,
	description TEXT NOT NULL DEFAULT '',
	is_read BOOLEAN NOT NULL DEFAULT FALSE,
	emailed_at TIMESTAMPTZ,
	digest BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_notifications_pending_immediate ON notifications(created_at) WHERE emailed_at IS NULL AND NOT digest;
CREATE INDEX IF NOT EXISTS idx_notifications_pending_digest ON notifications(user_id) WHERE emailed_at IS NULL AND digest;
`
