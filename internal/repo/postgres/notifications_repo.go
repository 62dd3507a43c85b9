package postgres

import (
	"context"

	"github.com/geocoder89/sitehub/internal/domain/notification"
	"github.com/geocoder89/sitehub/internal/observability"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationsRepo struct {
	base
}

func NewNotificationsRepo(pool *pgxpool.Pool, prom *observability.Prom) *NotificationsRepo {
	return &NotificationsRepo{base{pool: pool, prom: prom}}
}

// Insert is idempotent per (job, user): a retried job never notifies twice.
// It reports whether a row was written.
func (r *NotificationsRepo) Insert(ctx context.Context, n notification.Notification) (bool, error) {
	var inserted bool
	err := r.observe("notifications.insert", func() error {
		tag, err := r.pool.Exec(ctx, `
			INSERT INTO notifications (id, user_id, project_id, kind, message, job_id, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (job_id, user_id) DO NOTHING`,
			n.ID, n.UserID, n.ProjectID, string(n.Kind), n.Message, n.JobID, n.CreatedAt,
		)
		inserted = tag.RowsAffected() == 1
		return err
	})
	return inserted, err
}

func (r *NotificationsRepo) ListForUser(ctx context.Context, userID string, f notification.ListFilter) ([]notification.Notification, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}

	q := `
		SELECT id, user_id, project_id, kind, message, job_id, read_at, created_at
		FROM notifications
		WHERE user_id = $1`
	if f.UnreadOnly {
		q += ` AND read_at IS NULL`
	}
	q += ` ORDER BY created_at DESC LIMIT $2`

	out := []notification.Notification{}
	err := r.observe("notifications.list", func() error {
		rows, err := r.pool.Query(ctx, q, userID, f.Limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var n notification.Notification
			var kind string
			if err := rows.Scan(&n.ID, &n.UserID, &n.ProjectID, &kind, &n.Message, &n.JobID, &n.ReadAt, &n.CreatedAt); err != nil {
				return err
			}
			n.Kind = notification.Kind(kind)
			out = append(out, n)
		}
		return rows.Err()
	})

	return out, err
}

// MarkRead stamps read_at once; marking an already read notification is a no-op.
func (r *NotificationsRepo) MarkRead(ctx context.Context, userID, id string) error {
	var n int64
	err := r.observe("notifications.mark_read", func() error {
		tag, err := r.pool.Exec(ctx, `
			UPDATE notifications
			SET read_at = COALESCE(read_at, NOW())
			WHERE user_id = $1 AND id = $2
		`, userID, id)
		n = tag.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return notification.ErrNotFound
	}
	return nil
}
