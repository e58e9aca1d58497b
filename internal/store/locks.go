package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maproulette/backend/internal/apperr"
)

// Lock mirrors the task_locks table: one row per currently-held task lock.
type Lock struct {
	TaskID   int64
	UserID   int64
	LockedAt time.Time
}

// LockRepository manages task locks, acquired when a user starts a task and
// released on completion, skip, or expiry.
type LockRepository struct {
	pool *pgxpool.Pool
}

// Acquire takes the lock for taskID on behalf of userID. If the task is
// already locked by a different user, it returns apperr.Conflict.
func (r *LockRepository) Acquire(ctx context.Context, taskID, userID int64) error {
	existing, err := r.heldBy(ctx, taskID)
	if err == nil && existing != 0 && existing != userID {
		return apperr.Conflictf("task %d is locked by another user", taskID)
	}

	const sql = `INSERT INTO task_locks (task_id, user_id) VALUES ($1, $2)
		ON CONFLICT (task_id) DO UPDATE SET user_id=$2, locked_at=now()`
	if _, err := r.pool.Exec(ctx, sql, taskID, userID); err != nil {
		return fmt.Errorf("store: acquire lock: %w", err)
	}
	return nil
}

func (r *LockRepository) heldBy(ctx context.Context, taskID int64) (int64, error) {
	var userID int64
	err := r.pool.QueryRow(ctx, `SELECT user_id FROM task_locks WHERE task_id=$1`, taskID).Scan(&userID)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	return userID, err
}

// Release drops the lock, requiring it to still be held by userID.
func (r *LockRepository) Release(ctx context.Context, taskID, userID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM task_locks WHERE task_id=$1 AND user_id=$2`, taskID, userID)
	if err != nil {
		return fmt.Errorf("store: release lock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Forbiddenf("task %d is not locked by user %d", taskID, userID)
	}
	return nil
}

// ForceRelease drops the lock regardless of owner, used by the scheduler's
// expireLocks job.
func (r *LockRepository) ForceRelease(ctx context.Context, taskID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM task_locks WHERE task_id=$1`, taskID)
	if err != nil {
		return fmt.Errorf("store: force release lock: %w", err)
	}
	return nil
}

// Expired returns locks older than olderThan, for the scheduler to sweep.
func (r *LockRepository) Expired(ctx context.Context, olderThan time.Duration) ([]Lock, error) {
	const sql = `SELECT task_id, user_id, locked_at FROM task_locks WHERE locked_at < now() - $1::interval`
	rows, err := r.pool.Query(ctx, sql, olderThan.String())
	if err != nil {
		return nil, fmt.Errorf("store: expired locks: %w", err)
	}
	defer rows.Close()

	var out []Lock
	for rows.Next() {
		var l Lock
		if err := rows.Scan(&l.TaskID, &l.UserID, &l.LockedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *LockRepository) ByTaskID(ctx context.Context, taskID int64) (Lock, bool, error) {
	var l Lock
	l.TaskID = taskID
	err := r.pool.QueryRow(ctx, `SELECT user_id, locked_at FROM task_locks WHERE task_id=$1`, taskID).Scan(&l.UserID, &l.LockedAt)
	if err == pgx.ErrNoRows {
		return Lock{}, false, nil
	}
	if err != nil {
		return Lock{}, false, fmt.Errorf("store: lock by task: %w", err)
	}
	return l, true, nil
}
