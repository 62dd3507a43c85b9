package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/sitehub/internal/domain/job"
	"github.com/geocoder89/sitehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const jobColumns = `id, type, payload, status, attempts, max_attempts, run_at, locked_at, locked_by,
	last_error, idempotency_key, created_at, updated_at`

// releaseLock is appended to every transition out of processing.
const releaseLock = `locked_at = NULL, locked_by = NULL, updated_at = NOW()`

// JobsRepo is the durable queue behind the worker. Producers enqueue inside
// their own transaction through CreateTx; the worker claims with SKIP LOCKED.
type JobsRepo struct {
	base
}

func NewJobsRepo(pool *pgxpool.Pool, prom *observability.Prom) *JobsRepo {
	return &JobsRepo{base{pool: pool, prom: prom}}
}

func scanJob(row pgx.Row) (j job.Job, err error) {
	var status string
	err = row.Scan(
		&j.ID, &j.Type, &j.Payload, &status,
		&j.Attempts, &j.MaxAttempts,
		&j.RunAt, &j.LockedAt, &j.LockedBy,
		&j.LastError, &j.IdempotencyKey,
		&j.CreatedAt, &j.UpdatedAt,
	)
	j.Status = job.Status(status)
	return j, err
}

// queryJob runs a single-row query and maps no rows to job.ErrJobNotFound.
func (r *JobsRepo) queryJob(ctx context.Context, op, sql string, args ...any) (j job.Job, err error) {
	err = r.observe(op, func() error {
		j, err = scanJob(r.pool.QueryRow(ctx, sql, args...))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return job.Job{}, job.ErrJobNotFound
	}
	return j, err
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *JobsRepo) insert(ctx context.Context, db execer, op string, req job.CreateRequest) (job.Job, error) {
	j := job.New(req)

	err := r.observe(op, func() error {
		_, err := db.Exec(ctx, `INSERT INTO jobs (`+jobColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			j.ID, j.Type, j.Payload, string(j.Status), j.Attempts, j.MaxAttempts, j.RunAt,
			j.LockedAt, j.LockedBy, j.LastError, j.IdempotencyKey, j.CreatedAt, j.UpdatedAt)
		return err
	})
	if IsUniqueViolation(err) {
		return job.Job{}, job.ErrAlreadyEnqueued
	}
	if err != nil {
		return job.Job{}, err
	}
	return j, nil
}

func (r *JobsRepo) Create(ctx context.Context, req job.CreateRequest) (job.Job, error) {
	return r.insert(ctx, r.pool, "jobs.create", req)
}

// CreateTx enqueues inside the caller's transaction so the job only exists
// if the change that caused it commits.
func (r *JobsRepo) CreateTx(ctx context.Context, tx pgx.Tx, req job.CreateRequest) (job.Job, error) {
	return r.insert(ctx, tx, "jobs.create_tx", req)
}

func (r *JobsRepo) GetByIdempotencyKey(ctx context.Context, key string) (job.Job, error) {
	return r.queryJob(ctx, "jobs.get_by_idempotency_key",
		`SELECT `+jobColumns+` FROM jobs WHERE idempotency_key = $1`, key)
}

// ClaimNext moves the oldest runnable job to processing. Concurrent workers
// skip each other's locked rows. job.ErrJobNotFound means the queue is idle.
func (r *JobsRepo) ClaimNext(ctx context.Context, workerID string) (job.Job, error) {
	return r.queryJob(ctx, "jobs.claim_next", `
		UPDATE jobs
		SET status = 'processing', locked_at = NOW(), locked_by = $1, updated_at = NOW()
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'pending' AND run_at <= NOW() AND attempts < max_attempts
			ORDER BY run_at, created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns, workerID)
}

// exec runs a transition and reports job.ErrJobNotFound when no row was in
// a state the transition applies to.
func (r *JobsRepo) exec(ctx context.Context, op, sql string, args ...any) error {
	return r.observe(op, func() error {
		tag, err := r.pool.Exec(ctx, sql, args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return job.ErrJobNotFound
		}
		return nil
	})
}

// MarkDone only applies to a job still in processing. A job whose lock was
// swept meanwhile reports job.ErrJobNotFound.
func (r *JobsRepo) MarkDone(ctx context.Context, id string) error {
	return r.exec(ctx, "jobs.mark_done", `
		UPDATE jobs SET status = 'done', last_error = NULL, `+releaseLock+`
		WHERE id = $1 AND status = 'processing'`, id)
}

func (r *JobsRepo) MarkFailed(ctx context.Context, id, errMsg string) error {
	return r.exec(ctx, "jobs.mark_failed", `
		UPDATE jobs SET status = 'failed', attempts = attempts + 1, last_error = $2, `+releaseLock+`
		WHERE id = $1 AND status <> 'done'`, id, errMsg)
}

// Reschedule returns a job to pending for another attempt at runAt.
func (r *JobsRepo) Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error {
	return r.exec(ctx, "jobs.reschedule", `
		UPDATE jobs SET status = 'pending', attempts = attempts + 1, run_at = $2, last_error = $3, `+releaseLock+`
		WHERE id = $1 AND status = 'processing'`, id, runAt, errMsg)
}

// RequeueStaleProcessing releases jobs locked for longer than lockTTL, which
// happens when a worker dies mid-job. The attempt is not counted.
func (r *JobsRepo) RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error) {
	if lockTTL < time.Second {
		lockTTL = 30 * time.Second
	}

	var n int64
	err := r.observe("jobs.requeue_stale", func() error {
		tag, err := r.pool.Exec(ctx, `
			UPDATE jobs SET status = 'pending', `+releaseLock+`
			WHERE status = 'processing' AND locked_at < NOW() - make_interval(secs => $1)`,
			lockTTL.Seconds())
		n = tag.RowsAffected()
		return err
	})
	return n, err
}
