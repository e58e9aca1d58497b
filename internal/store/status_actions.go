package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// StatusAction records one task status transition for the audit trail and
// leaderboard/user-metrics aggregation.
type StatusAction struct {
	ID          int64
	TaskID      int64
	ChallengeID int64
	ProjectID   int64
	UserID      int64
	OldStatus   int
	NewStatus   int
	StartedAt   *time.Time
	CreatedAt   time.Time
}

// StatusActionRepository persists status_actions.
type StatusActionRepository struct {
	pool *pgxpool.Pool
}

func (r *StatusActionRepository) Record(ctx context.Context, a StatusAction) error {
	const sql = `INSERT INTO status_actions (task_id, challenge_id, project_id, user_id, old_status, new_status, started_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.pool.Exec(ctx, sql, a.TaskID, a.ChallengeID, a.ProjectID, a.UserID, a.OldStatus, a.NewStatus, a.StartedAt)
	if err != nil {
		return fmt.Errorf("store: record status action: %w", err)
	}
	return nil
}

func (r *StatusActionRepository) RecentForUser(ctx context.Context, userID int64, limit int) ([]StatusAction, error) {
	const sql = `SELECT id, task_id, challenge_id, project_id, user_id, old_status, new_status, started_at, created_at
		FROM status_actions WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, sql, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent status actions: %w", err)
	}
	defer rows.Close()

	var out []StatusAction
	for rows.Next() {
		var a StatusAction
		if err := rows.Scan(&a.ID, &a.TaskID, &a.ChallengeID, &a.ProjectID, &a.UserID, &a.OldStatus, &a.NewStatus, &a.StartedAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *StatusActionRepository) CountByChallenge(ctx context.Context, challengeID int64, since time.Time) (int64, error) {
	const sql = `SELECT count(*) FROM status_actions WHERE challenge_id=$1 AND created_at >= $2`
	var n int64
	if err := r.pool.QueryRow(ctx, sql, challengeID, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count status actions: %w", err)
	}
	return n, nil
}
