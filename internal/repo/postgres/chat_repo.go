package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/sitehub/internal/domain/chat"
	"github.com/geocoder89/sitehub/internal/jobs"
	"github.com/geocoder89/sitehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ChatRepo struct {
	base
	jobs *JobsRepo
}

func NewChatRepo(pool *pgxpool.Pool, prom *observability.Prom, jobsRepo *JobsRepo) *ChatRepo {
	return &ChatRepo{base: base{pool: pool, prom: prom}, jobs: jobsRepo}
}

// Post stores the message and enqueues its notification fan-out in the same
// transaction. The job is keyed by message id so it is enqueued once.
func (r *ChatRepo) Post(ctx context.Context, m chat.Message, requestID string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		err := r.observe("chat.post", func() error {
			_, err := tx.Exec(ctx, `
				INSERT INTO chat_messages (id, project_id, author_id, body, created_at)
				VALUES ($1,$2,$3,$4,$5)`,
				m.ID, m.ProjectID, m.AuthorID, m.Body, m.CreatedAt,
			)
			return err
		})
		if err != nil {
			return err
		}

		req, err := jobs.NewRequest(jobs.ChatNotifyPayload{
			MessageID: m.ID,
			ProjectID: m.ProjectID,
			AuthorID:  m.AuthorID,
			RequestID: requestID,
		}, "chat.notify:"+m.ID, m.CreatedAt)
		if err != nil {
			return err
		}

		_, err = r.jobs.CreateTx(ctx, tx, req)
		return err
	})
}

func scanMessage(row pgx.Row) (chat.Message, error) {
	var m chat.Message
	err := row.Scan(&m.ID, &m.ProjectID, &m.AuthorID, &m.AuthorName, &m.Body, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.Message{}, chat.ErrNotFound
	}
	return m, err
}

const messageSelect = `
	SELECT c.id, c.project_id, c.author_id, u.name, c.body, c.created_at
	FROM chat_messages c
	JOIN users u ON u.id = c.author_id`

func (r *ChatRepo) GetByID(ctx context.Context, id string) (m chat.Message, err error) {
	err = r.observe("chat.get_by_id", func() error {
		m, err = scanMessage(r.pool.QueryRow(ctx, messageSelect+` WHERE c.id = $1`, id))
		return err
	})
	return m, err
}

// List returns the newest messages first. Query filters by body substring.
func (r *ChatRepo) List(ctx context.Context, projectID string, f chat.ListFilter) ([]chat.Message, error) {
	q := messageSelect + ` WHERE c.project_id = $1`
	args := []any{projectID}

	if f.Query != "" {
		args = append(args, containsPattern(f.Query))
		q += ` AND c.body ILIKE $2 ESCAPE '\'`
	}

	args = append(args, f.Limit, f.Offset)
	q += ` ORDER BY c.created_at DESC, c.id DESC LIMIT $` + itoa(len(args)-1) + ` OFFSET $` + itoa(len(args))

	out := []chat.Message{}
	err := r.observe("chat.list", func() error {
		rows, err := r.pool.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			m, err := scanMessage(rows)
			if err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})

	return out, err
}

// DeleteOwn removes a message only when authorID wrote it.
func (r *ChatRepo) DeleteOwn(ctx context.Context, projectID, id, authorID string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		var owner string
		err := r.observe("chat.lock", func() error {
			return tx.QueryRow(ctx, `
				SELECT author_id FROM chat_messages
				WHERE project_id = $1 AND id = $2
				FOR UPDATE
			`, projectID, id).Scan(&owner)
		})
		if errors.Is(err, pgx.ErrNoRows) {
			return chat.ErrNotFound
		}
		if err != nil {
			return err
		}
		if owner != authorID {
			return chat.ErrNotAuthor
		}

		return r.observe("chat.delete", func() error {
			_, err := tx.Exec(ctx, `DELETE FROM chat_messages WHERE id = $1`, id)
			return err
		})
	})
}
