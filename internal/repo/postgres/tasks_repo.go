package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/sitehub/internal/domain/task"
	"github.com/geocoder89/sitehub/internal/jobs"
	"github.com/geocoder89/sitehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const taskColumns = `id, project_id, title, description, status, priority, assignee_id, due_date,
	created_by, created_at, updated_at`

// TasksRepo owns tasks and their comments. Every write that can change
// project progress enqueues a recalculation job in the same transaction.
type TasksRepo struct {
	base
	jobs *JobsRepo
}

func NewTasksRepo(pool *pgxpool.Pool, prom *observability.Prom, jobsRepo *JobsRepo) *TasksRepo {
	return &TasksRepo{base: base{pool: pool, prom: prom}, jobs: jobsRepo}
}

func scanTask(row pgx.Row) (task.Task, error) {
	var t task.Task
	var status, priority string

	err := row.Scan(
		&t.ID, &t.ProjectID, &t.Title, &t.Description, &status, &priority,
		&t.AssigneeID, &t.DueDate, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return task.Task{}, task.ErrNotFound
	}
	if err != nil {
		return task.Task{}, err
	}

	t.Status = task.Status(status)
	t.Priority = task.Priority(priority)
	return t, nil
}

func (r *TasksRepo) enqueueRecalc(ctx context.Context, tx pgx.Tx, projectID, actorID string) error {
	req, err := jobs.NewRequest(jobs.RecalculateProgressPayload{
		ProjectID: projectID,
		ActorID:   actorID,
	}, "", time.Now().UTC())
	if err != nil {
		return err
	}

	_, err = r.jobs.CreateTx(ctx, tx, req)
	return err
}

// checkAssignee rejects assignees without an active membership in the project.
func (r *TasksRepo) checkAssignee(ctx context.Context, tx pgx.Tx, projectID string, assigneeID *string) error {
	if assigneeID == nil {
		return nil
	}

	var ok bool
	err := r.observe("tasks.check_assignee", func() error {
		return tx.QueryRow(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM project_members
				WHERE project_id = $1 AND user_id = $2 AND active
			)`, projectID, *assigneeID).Scan(&ok)
	})
	if err != nil {
		return err
	}
	if !ok {
		return task.ErrAssigneeNotMember
	}
	return nil
}

func (r *TasksRepo) Create(ctx context.Context, t task.Task) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if err := r.checkAssignee(ctx, tx, t.ProjectID, t.AssigneeID); err != nil {
			return err
		}

		err := r.observe("tasks.create", func() error {
			_, err := tx.Exec(ctx, `INSERT INTO tasks (`+taskColumns+`)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
				t.ID, t.ProjectID, t.Title, t.Description, string(t.Status), string(t.Priority),
				t.AssigneeID, t.DueDate, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
			)
			return err
		})
		if err != nil {
			return err
		}

		return r.enqueueRecalc(ctx, tx, t.ProjectID, t.CreatedBy)
	})
}

func (r *TasksRepo) GetByID(ctx context.Context, projectID, id string) (t task.Task, err error) {
	err = r.observe("tasks.get_by_id", func() error {
		t, err = scanTask(r.pool.QueryRow(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE project_id = $1 AND id = $2`, projectID, id))
		return err
	})
	return t, err
}

func (r *TasksRepo) List(ctx context.Context, projectID string, f task.ListFilter) ([]task.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE project_id = $1`
	args := []any{projectID}

	if f.Status != nil {
		args = append(args, string(*f.Status))
		q += ` AND status = $` + itoa(len(args))
	}
	if f.AssigneeID != nil {
		args = append(args, *f.AssigneeID)
		q += ` AND assignee_id = $` + itoa(len(args))
	}
	q += ` ORDER BY due_date ASC NULLS LAST, created_at DESC`

	out := []task.Task{}
	err := r.observe("tasks.list", func() error {
		rows, err := r.pool.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			t, err := scanTask(rows)
			if err != nil {
				return err
			}
			out = append(out, t)
		}
		return rows.Err()
	})

	return out, err
}

func (r *TasksRepo) Update(ctx context.Context, projectID, id, actorID string, req task.UpdateTaskRequest) (task.Task, error) {
	var u updateSet

	if req.Title != nil {
		u.add("title", *req.Title)
	}
	if req.Description != nil {
		u.add("description", *req.Description)
	}
	if req.Status != nil {
		u.add("status", string(*req.Status))
	}
	if req.Priority != nil {
		u.add("priority", string(*req.Priority))
	}
	if req.AssigneeID != nil {
		u.add("assignee_id", *req.AssigneeID)
	}
	if req.DueDate != nil {
		u.add("due_date", *req.DueDate)
	}
	if u.empty() {
		return task.Task{}, task.ErrNoChanges
	}

	q := `UPDATE tasks SET ` + joinSets(u.sets) + `, updated_at = NOW()
		WHERE project_id = ` + u.arg(projectID) + ` AND id = ` + u.arg(id) + `
		RETURNING ` + taskColumns

	var out task.Task
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		if err := r.checkAssignee(ctx, tx, projectID, req.AssigneeID); err != nil {
			return err
		}

		err := r.observe("tasks.update", func() error {
			var err error
			out, err = scanTask(tx.QueryRow(ctx, q, u.args...))
			return err
		})
		if err != nil {
			return err
		}

		return r.enqueueRecalc(ctx, tx, projectID, actorID)
	})

	return out, err
}

func (r *TasksRepo) Delete(ctx context.Context, projectID, id, actorID string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		var n int64
		err := r.observe("tasks.delete", func() error {
			tag, err := tx.Exec(ctx, `DELETE FROM tasks WHERE project_id = $1 AND id = $2`, projectID, id)
			n = tag.RowsAffected()
			return err
		})
		if err != nil {
			return err
		}
		if n == 0 {
			return task.ErrNotFound
		}

		return r.enqueueRecalc(ctx, tx, projectID, actorID)
	})
}

// AddComment inserts a comment on a task of the given project.
func (r *TasksRepo) AddComment(ctx context.Context, projectID string, c task.Comment) error {
	var n int64
	err := r.observe("tasks.add_comment", func() error {
		tag, err := r.pool.Exec(ctx, `
			INSERT INTO task_comments (id, task_id, author_id, body, created_at)
			SELECT $1, t.id, $3, $4, $5
			FROM tasks t
			WHERE t.id = $2 AND t.project_id = $6
		`, c.ID, c.TaskID, c.AuthorID, c.Body, c.CreatedAt, projectID)
		n = tag.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return task.ErrNotFound
	}
	return nil
}

func (r *TasksRepo) ListComments(ctx context.Context, projectID, taskID string) ([]task.Comment, error) {
	if _, err := r.GetByID(ctx, projectID, taskID); err != nil {
		return nil, err
	}

	out := []task.Comment{}
	err := r.observe("tasks.list_comments", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT id, task_id, author_id, body, created_at
			FROM task_comments
			WHERE task_id = $1
			ORDER BY created_at ASC
		`, taskID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var c task.Comment
			if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})

	return out, err
}
