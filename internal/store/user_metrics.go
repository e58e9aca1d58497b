package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserMetrics mirrors the user_metrics table, a rolling tally kept in sync
// by the task/review engines on every status transition.
type UserMetrics struct {
	UserID              int64
	TotalScore          int64
	TasksCompleted      int64
	TasksFixed          int64
	TasksFalsePositive  int64
	TasksSkipped        int64
	TasksReviewed       int64
	TasksReviewApproved int64
	TasksReviewRejected int64
	TotalTimeSpentMS    int64
}

// UserMetricsRepository persists per-user aggregate counters.
type UserMetricsRepository struct {
	pool *pgxpool.Pool
}

func (r *UserMetricsRepository) ByUserID(ctx context.Context, userID int64) (UserMetrics, error) {
	const sql = `SELECT user_id, total_score, tasks_completed, tasks_fixed, tasks_false_positive, tasks_skipped,
		tasks_reviewed, tasks_review_approved, tasks_review_rejected, total_time_spent_ms
		FROM user_metrics WHERE user_id=$1`
	var m UserMetrics
	err := r.pool.QueryRow(ctx, sql, userID).Scan(&m.UserID, &m.TotalScore, &m.TasksCompleted, &m.TasksFixed, &m.TasksFalsePositive,
		&m.TasksSkipped, &m.TasksReviewed, &m.TasksReviewApproved, &m.TasksReviewRejected, &m.TotalTimeSpentMS)
	if err == pgx.ErrNoRows {
		return UserMetrics{UserID: userID}, nil
	}
	if err != nil {
		return UserMetrics{}, fmt.Errorf("store: user metrics: %w", err)
	}
	return m, nil
}

// AdjustScore applies delta (which may be negative, per the lifecycle
// engine's rollback-then-apply scoring rule) to a user's running total.
func (r *UserMetricsRepository) AdjustScore(ctx context.Context, userID int64, delta int64) error {
	const sql = `INSERT INTO user_metrics (user_id, total_score, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET total_score = user_metrics.total_score + $2, updated_at = now()`
	_, err := r.pool.Exec(ctx, sql, userID, delta)
	if err != nil {
		return fmt.Errorf("store: adjust score: %w", err)
	}
	return nil
}

// IncrementCompletion bumps the completion counters for the status a task
// landed on, plus elapsed time, creating the row on first activity.
func (r *UserMetricsRepository) IncrementCompletion(ctx context.Context, userID int64, status int, timeSpentMS int64) error {
	fixedDelta, falsePositiveDelta, skippedDelta := 0, 0, 0
	switch status {
	case StatusFixed:
		fixedDelta = 1
	case StatusFalsePositive:
		falsePositiveDelta = 1
	case StatusSkipped:
		skippedDelta = 1
	}

	const sql = `INSERT INTO user_metrics (user_id, tasks_completed, tasks_fixed, tasks_false_positive, tasks_skipped, total_time_spent_ms, updated_at)
		VALUES ($1, 1, $2, $3, $4, $5, now())
		ON CONFLICT (user_id) DO UPDATE SET
			tasks_completed = user_metrics.tasks_completed + 1,
			tasks_fixed = user_metrics.tasks_fixed + $2,
			tasks_false_positive = user_metrics.tasks_false_positive + $3,
			tasks_skipped = user_metrics.tasks_skipped + $4,
			total_time_spent_ms = user_metrics.total_time_spent_ms + $5,
			updated_at = now()`
	_, err := r.pool.Exec(ctx, sql, userID, fixedDelta, falsePositiveDelta, skippedDelta, timeSpentMS)
	if err != nil {
		return fmt.Errorf("store: increment completion metrics: %w", err)
	}
	return nil
}

func (r *UserMetricsRepository) IncrementReview(ctx context.Context, userID int64, approved bool) error {
	approvedDelta, rejectedDelta := 0, 0
	if approved {
		approvedDelta = 1
	} else {
		rejectedDelta = 1
	}

	const sql = `INSERT INTO user_metrics (user_id, tasks_reviewed, tasks_review_approved, tasks_review_rejected, updated_at)
		VALUES ($1, 1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE SET
			tasks_reviewed = user_metrics.tasks_reviewed + 1,
			tasks_review_approved = user_metrics.tasks_review_approved + $2,
			tasks_review_rejected = user_metrics.tasks_review_rejected + $3,
			updated_at = now()`
	_, err := r.pool.Exec(ctx, sql, userID, approvedDelta, rejectedDelta)
	if err != nil {
		return fmt.Errorf("store: increment review metrics: %w", err)
	}
	return nil
}

func (r *UserMetricsRepository) Leaderboard(ctx context.Context, limit int) ([]UserMetrics, error) {
	const sql = `SELECT user_id, total_score, tasks_completed, tasks_fixed, tasks_false_positive, tasks_skipped,
		tasks_reviewed, tasks_review_approved, tasks_review_rejected, total_time_spent_ms
		FROM user_metrics ORDER BY total_score DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("store: leaderboard: %w", err)
	}
	defer rows.Close()

	var out []UserMetrics
	for rows.Next() {
		var m UserMetrics
		if err := rows.Scan(&m.UserID, &m.TotalScore, &m.TasksCompleted, &m.TasksFixed, &m.TasksFalsePositive,
			&m.TasksSkipped, &m.TasksReviewed, &m.TasksReviewApproved, &m.TasksReviewRejected, &m.TotalTimeSpentMS); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
