package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maproulette/backend/internal/apperr"
	"github.com/maproulette/backend/internal/query"
)

// Review status values, per §4.2.
const (
	ReviewStatusRequested = iota
	ReviewStatusApproved
	ReviewStatusRejected
	ReviewStatusAssisted
	ReviewStatusDisputed
	ReviewStatusUnnecessary
)

// TaskReview mirrors the task_review table.
type TaskReview struct {
	ID                  int64
	TaskID              int64
	RequestedBy         int64
	ReviewedBy          *int64
	ReviewStatus        int
	ReviewClaimedBy     *int64
	ReviewClaimedAt     *time.Time
	ReviewStartedAt     *time.Time
	ReviewedAt          *time.Time
	ReviewComment       string
	MetaReviewStatus    *int
	MetaReviewedBy      *int64
	MetaReviewedAt      *time.Time
	AdditionalReviewers []int64
}

// TaskReviewRepository persists review state.
type TaskReviewRepository struct {
	pool *pgxpool.Pool
}

const reviewColumns = `id, task_id, review_requested_by, reviewed_by, review_status, review_claimed_by,
	review_claimed_at, review_started_at, reviewed_at, review_comment,
	meta_review_status, meta_reviewed_by, meta_reviewed_at, additional_reviewers`

// reviewColumnsQualified is reviewColumns with every column prefixed by its
// table, needed once ClaimNext joins task_review against tasks so plain
// "id"/"task_id" would otherwise be ambiguous.
const reviewColumnsQualified = `task_review.id, task_review.task_id, task_review.review_requested_by,
	task_review.reviewed_by, task_review.review_status, task_review.review_claimed_by,
	task_review.review_claimed_at, task_review.review_started_at, task_review.reviewed_at,
	task_review.review_comment, task_review.meta_review_status, task_review.meta_reviewed_by,
	task_review.meta_reviewed_at, task_review.additional_reviewers`

func (r *TaskReviewRepository) scanRow(row pgx.Row) (TaskReview, error) {
	var v TaskReview
	err := row.Scan(&v.ID, &v.TaskID, &v.RequestedBy, &v.ReviewedBy, &v.ReviewStatus, &v.ReviewClaimedBy,
		&v.ReviewClaimedAt, &v.ReviewStartedAt, &v.ReviewedAt, &v.ReviewComment,
		&v.MetaReviewStatus, &v.MetaReviewedBy, &v.MetaReviewedAt, &v.AdditionalReviewers)
	if err == pgx.ErrNoRows {
		return TaskReview{}, apperr.NotFoundf("review not found")
	}
	if err != nil {
		return TaskReview{}, fmt.Errorf("store: scan review: %w", err)
	}
	return v, nil
}

// RequestReview creates (or replaces) the review row for a task.
func (r *TaskReviewRepository) RequestReview(ctx context.Context, taskID, requestedBy int64) (int64, error) {
	const sql = `INSERT INTO task_review (task_id, review_requested_by, review_status)
		VALUES ($1, $2, $3)
		ON CONFLICT (task_id) DO UPDATE SET review_requested_by=$2, review_status=$3,
			review_claimed_by=NULL, review_claimed_at=NULL, review_started_at=NULL
		RETURNING id`
	var id int64
	if err := r.pool.QueryRow(ctx, sql, taskID, requestedBy, ReviewStatusRequested).Scan(&id); err != nil {
		return 0, fmt.Errorf("store: request review: %w", err)
	}
	return id, nil
}

func (r *TaskReviewRepository) ByTaskID(ctx context.Context, taskID int64) (TaskReview, error) {
	sql := "SELECT " + reviewColumns + " FROM task_review WHERE task_id = $1"
	return r.scanRow(r.pool.QueryRow(ctx, sql, taskID))
}

// ClaimNext atomically claims the oldest unclaimed review matching f for
// reviewer, using SELECT ... FOR UPDATE SKIP LOCKED so concurrent reviewers
// never claim the same task. The join against tasks lets f (built by
// internal/review.BuildFilter) filter on the task's own status alongside
// the review row's columns.
func (r *TaskReviewRepository) ClaimNext(ctx context.Context, reviewer int64, f query.Filter) (TaskReview, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return TaskReview{}, fmt.Errorf("store: claim next review: %w", err)
	}
	defer tx.Rollback(ctx)

	q := query.New("SELECT " + reviewColumnsQualified + " FROM task_review JOIN tasks ON tasks.id = task_review.task_id" +
		" AND task_review.review_claimed_by IS NULL").
		WithFilter(f).
		WithOrder(query.NewOrder(query.OrderField{Name: "id", Table: "task_review", IsColumn: true})).
		WithPaging(query.NewPaging(1, 0))
	sqlText, args := q.Build()
	sqlText += " FOR UPDATE OF task_review SKIP LOCKED"

	v, err := r.scanRow(tx.QueryRow(ctx, sqlText, args...))
	if err != nil {
		return TaskReview{}, err
	}

	const claim = `UPDATE task_review SET review_claimed_by=$2, review_claimed_at=now(), review_started_at=now() WHERE id=$1`
	if _, err := tx.Exec(ctx, claim, v.ID, reviewer); err != nil {
		return TaskReview{}, fmt.Errorf("store: claim review: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return TaskReview{}, fmt.Errorf("store: commit review claim: %w", err)
	}

	v.ReviewClaimedBy = &reviewer
	return v, nil
}

// ClaimTask claims review id for reviewer, atomically refusing the claim if
// another reviewer already holds it. Re-claiming by the same reviewer (e.g.
// a retried request) succeeds and just refreshes the timestamps.
func (r *TaskReviewRepository) ClaimTask(ctx context.Context, id, reviewer int64) error {
	const sql = `UPDATE task_review SET review_claimed_by=$2, review_claimed_at=now(), review_started_at=now()
		WHERE id=$1 AND (review_claimed_by IS NULL OR review_claimed_by=$2)`
	tag, err := r.pool.Exec(ctx, sql, id, reviewer)
	if err != nil {
		return fmt.Errorf("store: claim review task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflictf("review %d is already claimed by another reviewer", id)
	}
	return nil
}

func (r *TaskReviewRepository) ClearClaim(ctx context.Context, id int64) error {
	const sql = `UPDATE task_review SET review_claimed_by=NULL, review_claimed_at=NULL, review_started_at=NULL WHERE id=$1`
	_, err := r.pool.Exec(ctx, sql, id)
	if err != nil {
		return fmt.Errorf("store: clear review claim: %w", err)
	}
	return nil
}

func (r *TaskReviewRepository) SetStatus(ctx context.Context, id int64, status int, reviewedBy int64, comment string) error {
	const sql = `UPDATE task_review SET review_status=$2, reviewed_by=$3, review_comment=$4, reviewed_at=now() WHERE id=$1`
	tag, err := r.pool.Exec(ctx, sql, id, status, reviewedBy, comment)
	if err != nil {
		return fmt.Errorf("store: set review status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("review %d not found", id)
	}
	return nil
}

func (r *TaskReviewRepository) SetMetaStatus(ctx context.Context, id int64, status int, reviewedBy int64) error {
	const sql = `UPDATE task_review SET meta_review_status=$2, meta_reviewed_by=$3, meta_reviewed_at=now() WHERE id=$1`
	_, err := r.pool.Exec(ctx, sql, id, status, reviewedBy)
	if err != nil {
		return fmt.Errorf("store: set meta review status: %w", err)
	}
	return nil
}

func (r *TaskReviewRepository) AddReviewer(ctx context.Context, id, reviewerID int64) error {
	const sql = `UPDATE task_review SET additional_reviewers = array_append(additional_reviewers, $2)
		WHERE id=$1 AND NOT ($2 = ANY(additional_reviewers))`
	_, err := r.pool.Exec(ctx, sql, id, reviewerID)
	if err != nil {
		return fmt.Errorf("store: add additional reviewer: %w", err)
	}
	return nil
}

// ClearRequest removes the review state for a task, used when a task
// reverts to a non-reviewable status.
func (r *TaskReviewRepository) ClearRequest(ctx context.Context, taskID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM task_review WHERE task_id=$1`, taskID)
	if err != nil {
		return fmt.Errorf("store: clear review request: %w", err)
	}
	return nil
}
