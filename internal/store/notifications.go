package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maproulette/backend/internal/apperr"
)

// Notification types, per §4.7's digest jobs and §4.8's event list.
const (
	NotificationTaskClaimed = iota
	NotificationTaskReleased
	NotificationTaskCompleted
	NotificationReviewRequested
	NotificationReviewCompleted
)

// Notification mirrors the notifications table. Digest marks a notification
// destined for the once-daily per-user email rather than the immediate batch.
type Notification struct {
	ID          int64
	UserID      int64
	Type        int
	ChallengeID *int64
	TaskID      *int64
	Description string
	IsRead      bool
	EmailedAt   *time.Time
	Digest      bool
	CreatedAt   time.Time
}

// NotificationRepository persists notification rows.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

const notificationColumns = `id, user_id, notification_type, challenge_id, task_id, description,
	is_read, emailed_at, digest, created_at`

func (r *NotificationRepository) scanRow(row pgx.Row) (Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.ChallengeID, &n.TaskID, &n.Description,
		&n.IsRead, &n.EmailedAt, &n.Digest, &n.CreatedAt)
	if err == pgx.ErrNoRows {
		return Notification{}, apperr.NotFoundf("notification not found")
	}
	if err != nil {
		return Notification{}, fmt.Errorf("store: scan notification: %w", err)
	}
	return n, nil
}

func (r *NotificationRepository) ByID(ctx context.Context, id int64) (Notification, error) {
	sql := "SELECT " + notificationColumns + " FROM notifications WHERE id = $1"
	return r.scanRow(r.pool.QueryRow(ctx, sql, id))
}

// Create inserts a notification, marked for the daily digest rather than the
// immediate batch when digest is true.
func (r *NotificationRepository) Create(ctx context.Context, n Notification) (int64, error) {
	const sql = `INSERT INTO notifications (user_id, notification_type, challenge_id, task_id, description, digest)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`
	var id int64
	err := r.pool.QueryRow(ctx, sql, n.UserID, n.Type, n.ChallengeID, n.TaskID, n.Description, n.Digest).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: create notification: %w", err)
	}
	return id, nil
}

// PendingImmediate returns up to limit unemailed, non-digest notifications,
// oldest first, for the immediate-dispatch job.
func (r *NotificationRepository) PendingImmediate(ctx context.Context, limit int) ([]Notification, error) {
	const sql = `SELECT ` + notificationColumns + ` FROM notifications
		WHERE emailed_at IS NULL AND NOT digest ORDER BY created_at ASC LIMIT $1`
	rows, err := r.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("store: pending immediate notifications: %w", err)
	}
	defer rows.Close()
	return collectNotifications(rows)
}

// PendingDigestByUser groups unemailed digest notifications by user, for the
// once-daily dispatch job.
func (r *NotificationRepository) PendingDigestByUser(ctx context.Context) (map[int64][]Notification, error) {
	const sql = `SELECT ` + notificationColumns + ` FROM notifications
		WHERE emailed_at IS NULL AND digest ORDER BY user_id, created_at ASC`
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("store: pending digest notifications: %w", err)
	}
	defer rows.Close()

	all, err := collectNotifications(rows)
	if err != nil {
		return nil, err
	}
	byUser := make(map[int64][]Notification)
	for _, n := range all {
		byUser[n.UserID] = append(byUser[n.UserID], n)
	}
	return byUser, nil
}

// MarkEmailed stamps emailed_at=now() for the given notification ids,
// idempotent: re-marking an already-emailed row is a no-op.
func (r *NotificationRepository) MarkEmailed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	const sql = `UPDATE notifications SET emailed_at = now() WHERE id = ANY($1) AND emailed_at IS NULL`
	if _, err := r.pool.Exec(ctx, sql, ids); err != nil {
		return fmt.Errorf("store: mark notifications emailed: %w", err)
	}
	return nil
}

func collectNotifications(rows pgx.Rows) ([]Notification, error) {
	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.ChallengeID, &n.TaskID, &n.Description,
			&n.IsRead, &n.EmailedAt, &n.Digest, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan notification row: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate notifications: %w", err)
	}
	return out, nil
}
