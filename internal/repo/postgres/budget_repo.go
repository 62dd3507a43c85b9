package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/sitehub/internal/domain/budget"
	"github.com/geocoder89/sitehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const budgetColumns = `id, project_id, category, description, planned_amount, spent_amount,
	planned_date, paid_date, status, created_at, updated_at`

type BudgetRepo struct {
	base
}

func NewBudgetRepo(pool *pgxpool.Pool, prom *observability.Prom) *BudgetRepo {
	return &BudgetRepo{base{pool: pool, prom: prom}}
}

func scanBudgetItem(row pgx.Row) (budget.Item, error) {
	var it budget.Item
	var status string

	err := row.Scan(
		&it.ID, &it.ProjectID, &it.Category, &it.Description, &it.PlannedAmount, &it.SpentAmount,
		&it.PlannedDate, &it.PaidDate, &status, &it.CreatedAt, &it.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return budget.Item{}, budget.ErrNotFound
	}
	if err != nil {
		return budget.Item{}, err
	}

	it.Status = budget.Status(status)
	return it, nil
}

func (r *BudgetRepo) Create(ctx context.Context, it budget.Item) error {
	return r.observe("budget.create", func() error {
		_, err := r.pool.Exec(ctx, `INSERT INTO budget_items (`+budgetColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			it.ID, it.ProjectID, it.Category, it.Description, it.PlannedAmount, it.SpentAmount,
			it.PlannedDate, it.PaidDate, string(it.Status), it.CreatedAt, it.UpdatedAt,
		)
		return err
	})
}

func (r *BudgetRepo) List(ctx context.Context, projectID string, f budget.ListFilter) ([]budget.Item, error) {
	q := `SELECT ` + budgetColumns + ` FROM budget_items WHERE project_id = $1`
	args := []any{projectID}

	if f.Category != nil {
		args = append(args, *f.Category)
		q += ` AND category = $` + itoa(len(args))
	}
	if f.Status != nil {
		args = append(args, string(*f.Status))
		q += ` AND status = $` + itoa(len(args))
	}
	q += ` ORDER BY planned_date ASC NULLS LAST, created_at ASC`

	out := []budget.Item{}
	err := r.observe("budget.list", func() error {
		rows, err := r.pool.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			it, err := scanBudgetItem(rows)
			if err != nil {
				return err
			}
			out = append(out, it)
		}
		return rows.Err()
	})

	return out, err
}

func (r *BudgetRepo) Update(ctx context.Context, projectID, id string, req budget.UpdateItemRequest) (budget.Item, error) {
	var u updateSet

	if req.Category != nil {
		u.add("category", *req.Category)
	}
	if req.Description != nil {
		u.add("description", *req.Description)
	}
	if req.PlannedAmount != nil {
		u.add("planned_amount", *req.PlannedAmount)
	}
	if req.SpentAmount != nil {
		u.add("spent_amount", *req.SpentAmount)
	}
	if req.PlannedDate != nil {
		u.add("planned_date", *req.PlannedDate)
	}
	if req.PaidDate != nil {
		u.add("paid_date", *req.PaidDate)
	}
	if req.Status != nil {
		u.add("status", string(*req.Status))
	}
	if u.empty() {
		return budget.Item{}, budget.ErrNoChanges
	}

	q := `UPDATE budget_items SET ` + joinSets(u.sets) + `, updated_at = NOW()
		WHERE project_id = ` + u.arg(projectID) + ` AND id = ` + u.arg(id) + `
		RETURNING ` + budgetColumns

	var it budget.Item
	err := r.observe("budget.update", func() error {
		var err error
		it, err = scanBudgetItem(r.pool.QueryRow(ctx, q, u.args...))
		return err
	})
	return it, err
}

// RegisterPayment adds amount to the spent total and marks the item paid.
func (r *BudgetRepo) RegisterPayment(ctx context.Context, projectID, id string, amount float64, paidAt time.Time) (budget.Item, error) {
	var it budget.Item
	err := r.observe("budget.register_payment", func() error {
		var err error
		it, err = scanBudgetItem(r.pool.QueryRow(ctx, `
			UPDATE budget_items
			SET spent_amount = spent_amount + $3,
			    paid_date = $4,
			    status = 'paid',
			    updated_at = NOW()
			WHERE project_id = $1 AND id = $2
			RETURNING `+budgetColumns,
			projectID, id, amount, paidAt,
		))
		return err
	})
	return it, err
}

func (r *BudgetRepo) Delete(ctx context.Context, projectID, id string) error {
	var n int64
	err := r.observe("budget.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM budget_items WHERE project_id = $1 AND id = $2`, projectID, id)
		n = tag.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return budget.ErrNotFound
	}
	return nil
}

// Summary totals every item of the project. Items still planned past their
// planned date count as overdue.
func (r *BudgetRepo) Summary(ctx context.Context, projectID string) (budget.Summary, error) {
	s := budget.Summary{ProjectID: projectID}

	err := r.observe("budget.summary", func() error {
		err := r.pool.QueryRow(ctx, `
			SELECT COALESCE(SUM(planned_amount), 0)::float8,
			       COALESCE(SUM(spent_amount), 0)::float8,
			       COUNT(*) FILTER (WHERE status = 'planned' AND planned_date < NOW())
			FROM budget_items
			WHERE project_id = $1
		`, projectID).Scan(&s.TotalPlanned, &s.TotalSpent, &s.OverdueItems)
		if err != nil {
			return err
		}

		rows, err := r.pool.Query(ctx, `
			SELECT category,
			       COALESCE(SUM(planned_amount), 0)::float8,
			       COALESCE(SUM(spent_amount), 0)::float8
			FROM budget_items
			WHERE project_id = $1
			GROUP BY category
			ORDER BY category
		`, projectID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var c budget.CategoryTotals
			if err := rows.Scan(&c.Category, &c.Planned, &c.Spent); err != nil {
				return err
			}
			s.ByCategory = append(s.ByCategory, c)
		}
		return rows.Err()
	})
	if err != nil {
		return budget.Summary{}, err
	}

	s.Finalize()
	return s, nil
}
