package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/geocoder89/sitehub/internal/domain/job"
	"github.com/geocoder89/sitehub/internal/utils"
)

// ListCursor pages jobs newest-update first. nextCursor is nil on the last
// page.
func (r *JobsRepo) ListCursor(ctx context.Context, f job.ListFilter, after *utils.Cursor) (items []job.Job, nextCursor *string, err error) {
	var (
		q     updateSet
		where []string
	)
	if f.Status != nil {
		where = append(where, "status = "+q.arg(string(*f.Status)))
	}
	if f.Type != nil {
		where = append(where, "type = "+q.arg(*f.Type))
	}
	if after != nil {
		where = append(where, "(updated_at, id) < ("+q.arg(after.At)+", "+q.arg(after.ID)+")")
	}

	sql := `SELECT ` + jobColumns + ` FROM jobs`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY updated_at DESC, id DESC LIMIT ` + q.arg(f.Limit+1)

	items = make([]job.Job, 0, f.Limit+1)
	err = r.observe("jobs.admin.list", func() error {
		rows, err := r.pool.Query(ctx, sql, q.args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			j, err := scanJob(rows)
			if err != nil {
				return err
			}
			items = append(items, j)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nil, err
	}

	if len(items) <= f.Limit {
		return items, nil, nil
	}

	items = items[:f.Limit]
	last := items[len(items)-1]
	cur, err := utils.EncodeCursor(last.UpdatedAt, last.ID)
	if err != nil {
		return nil, nil, err
	}
	return items, &cur, nil
}

func (r *JobsRepo) GetByID(ctx context.Context, id string) (job.Job, error) {
	return r.queryJob(ctx, "jobs.admin.get", `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
}

// Retry gives a failed job a fresh attempt budget and makes it runnable now.
// A job in any other state is left alone and reported as job.ErrJobNotFailed.
func (r *JobsRepo) Retry(ctx context.Context, id string) (job.Job, error) {
	j, err := r.queryJob(ctx, "jobs.admin.retry", `
		UPDATE jobs SET status = 'pending', attempts = 0, run_at = NOW(), last_error = NULL, `+releaseLock+`
		WHERE id = $1 AND status = 'failed'
		RETURNING `+jobColumns, id)
	if !errors.Is(err, job.ErrJobNotFound) {
		return j, err
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return job.Job{}, err
	}
	if !current.Status.Retryable() {
		return job.Job{}, job.ErrJobNotFailed
	}
	return job.Job{}, job.ErrJobNotFound
}
