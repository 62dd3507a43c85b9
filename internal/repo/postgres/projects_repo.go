package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/sitehub/internal/domain/membership"
	"github.com/geocoder89/sitehub/internal/domain/project"
	"github.com/geocoder89/sitehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const projectColumns = `id, name, description, address, client, total_value, start_date, planned_end_date,
	actual_end_date, status, progress, creator_id, created_at, updated_at`

type ProjectsRepo struct {
	base
}

func NewProjectsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ProjectsRepo {
	return &ProjectsRepo{base{pool: pool, prom: prom}}
}

func scanProject(row pgx.Row) (project.Project, error) {
	var p project.Project
	var status string

	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Address, &p.Client, &p.TotalValue,
		&p.StartDate, &p.PlannedEndDate, &p.ActualEndDate,
		&status, &p.Progress, &p.CreatorID, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return project.Project{}, project.ErrNotFound
	}
	if err != nil {
		return project.Project{}, err
	}

	p.Status = project.Status(status)
	return p, nil
}

// Create inserts the project and the creator's manager membership in one
// transaction: a project never exists without its first member.
func (r *ProjectsRepo) Create(ctx context.Context, p project.Project, m membership.Membership) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		err := r.observe("projects.create", func() error {
			_, err := tx.Exec(ctx, `INSERT INTO projects (`+projectColumns+`)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
				p.ID, p.Name, p.Description, p.Address, p.Client, p.TotalValue,
				p.StartDate, p.PlannedEndDate, p.ActualEndDate,
				string(p.Status), p.Progress, p.CreatorID, p.CreatedAt, p.UpdatedAt,
			)
			return err
		})
		if err != nil {
			return err
		}

		return insertMembership(ctx, tx, r.base, m)
	})
}

func (r *ProjectsRepo) GetByID(ctx context.Context, id string) (p project.Project, err error) {
	err = r.observe("projects.get_by_id", func() error {
		p, err = scanProject(r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
		return err
	})
	return p, err
}

func (r *ProjectsRepo) Update(ctx context.Context, id string, req project.UpdateProjectRequest) (project.Project, error) {
	var u updateSet

	if req.Name != nil {
		u.add("name", *req.Name)
	}
	if req.Description != nil {
		u.add("description", *req.Description)
	}
	if req.Address != nil {
		u.add("address", *req.Address)
	}
	if req.Client != nil {
		u.add("client", *req.Client)
	}
	if req.TotalValue != nil {
		u.add("total_value", *req.TotalValue)
	}
	if req.StartDate != nil {
		u.add("start_date", *req.StartDate)
	}
	if req.PlannedEndDate != nil {
		u.add("planned_end_date", *req.PlannedEndDate)
	}
	if req.ActualEndDate != nil {
		u.add("actual_end_date", *req.ActualEndDate)
	}
	if req.Status != nil {
		u.add("status", string(*req.Status))
	}
	if req.Progress != nil {
		u.add("progress", project.ClampProgress(*req.Progress))
	}
	if u.empty() {
		return project.Project{}, project.ErrNoChanges
	}

	q := `UPDATE projects SET ` + joinSets(u.sets) + `, updated_at = NOW()
		WHERE id = ` + u.arg(id) + ` RETURNING ` + projectColumns

	var p project.Project
	err := r.observe("projects.update", func() error {
		var err error
		p, err = scanProject(r.pool.QueryRow(ctx, q, u.args...))
		return err
	})
	return p, err
}

// Delete is a hard delete; sub-resources and memberships cascade.
func (r *ProjectsRepo) Delete(ctx context.Context, id string) error {
	var n int64
	err := r.observe("projects.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
		n = tag.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return project.ErrNotFound
	}
	return nil
}

// RecalculateProgress sets progress to the share of done tasks. A project
// without tasks keeps its current progress.
func (r *ProjectsRepo) RecalculateProgress(ctx context.Context, id string) (float64, error) {
	var progress float64
	err := r.observe("projects.recalculate_progress", func() error {
		err := r.pool.QueryRow(ctx, `
			WITH counts AS (
				SELECT COUNT(*) AS total,
				       COUNT(*) FILTER (WHERE status = 'done') AS done
				FROM tasks
				WHERE project_id = $1
			)
			UPDATE projects p
			SET progress = CASE
			        WHEN c.total = 0 THEN p.progress
			        ELSE LEAST(100, ROUND(c.done * 100.0 / c.total, 2))
			    END,
			    updated_at = NOW()
			FROM counts c
			WHERE p.id = $1
			RETURNING p.progress
		`, id).Scan(&progress)
		if errors.Is(err, pgx.ErrNoRows) {
			return project.ErrNotFound
		}
		return err
	})
	return progress, err
}
