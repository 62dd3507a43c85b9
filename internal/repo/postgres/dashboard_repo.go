package postgres

import (
	"context"

	"github.com/geocoder89/sitehub/internal/domain/dashboard"
	"github.com/geocoder89/sitehub/internal/observability"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DashboardRepo holds the aggregate queries behind the project dashboard.
// Each method is one round trip so callers can run them concurrently.
type DashboardRepo struct {
	base
}

func NewDashboardRepo(pool *pgxpool.Pool, prom *observability.Prom) *DashboardRepo {
	return &DashboardRepo{base{pool: pool, prom: prom}}
}

func (r *DashboardRepo) TaskCounts(ctx context.Context, projectID string) (c dashboard.TaskCounts, err error) {
	err = r.observe("dashboard.task_counts", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT COUNT(*),
			       COUNT(*) FILTER (WHERE status = 'todo'),
			       COUNT(*) FILTER (WHERE status = 'in_progress'),
			       COUNT(*) FILTER (WHERE status = 'done'),
			       COUNT(*) FILTER (WHERE status <> 'done' AND due_date < NOW())
			FROM tasks
			WHERE project_id = $1
		`, projectID).Scan(&c.Total, &c.Todo, &c.InProgress, &c.Done, &c.Overdue)
	})
	return c, err
}

func (r *DashboardRepo) TeamSize(ctx context.Context, projectID string) (n int, err error) {
	err = r.observe("dashboard.team_size", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM project_members WHERE project_id = $1 AND active`, projectID).Scan(&n)
	})
	return n, err
}

func (r *DashboardRepo) MaterialSummary(ctx context.Context, projectID string) (s dashboard.MaterialSummary, err error) {
	err = r.observe("dashboard.materials", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT COUNT(*), COALESCE(SUM(unit_price * stock_quantity), 0)::float8
			FROM materials
			WHERE project_id = $1
		`, projectID).Scan(&s.Items, &s.StockValue)
	})
	return s, err
}

func (r *DashboardRepo) DocumentCount(ctx context.Context, projectID string) (n int, err error) {
	err = r.observe("dashboard.documents", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM documents WHERE project_id = $1`, projectID).Scan(&n)
	})
	return n, err
}
