package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/sitehub/internal/domain/job"
	"github.com/geocoder89/sitehub/internal/jobs"
)

// ProcessOne claims and runs at most one job. It reports whether a job was
// claimed.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}
		return false, err
	}

	start := time.Now()
	untrack := w.prom.TrackJob()
	err = w.execute(ctx, j)
	untrack()

	if err != nil {
		w.handleFailure(ctx, j, err, time.Since(start))
		return true, nil
	}

	// detached so a shutdown mid-job still records the result
	doneCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := w.repo.MarkDone(doneCtx, j.ID); err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			// the stale sweep released it; another run will repeat the work
			w.log.WarnContext(ctx, "job.lock_lost", "job_id", j.ID, "type", j.Type)
			return true, nil
		}
		return true, fmt.Errorf("mark job %s done: %w", j.ID, err)
	}

	w.prom.ObserveJob(j.Type, "done", time.Since(start))
	w.log.InfoContext(ctx, "job.done",
		"job_id", j.ID,
		"type", j.Type,
		"attempt", j.Attempts+1,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return true, nil
}

func (w *Worker) execute(ctx context.Context, j job.Job) (err error) {
	h, ok := w.handlers[jobs.JobType(j.Type)]
	if !ok {
		return fmt.Errorf("%w: no handler for %q", ErrPermanent, j.Type)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	return h(runCtx, j)
}

func (w *Worker) handleFailure(ctx context.Context, j job.Job, jobErr error, took time.Duration) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	attempt := j.Attempts + 1
	msg := jobErr.Error()

	permanent := errors.Is(jobErr, ErrPermanent) ||
		errors.Is(jobErr, jobs.ErrInvalidJobType) ||
		errors.Is(jobErr, jobs.ErrInvalidJobPayload) ||
		errors.Is(jobErr, jobs.ErrPayloadTypeMismatch)

	if permanent || j.OnLastAttempt() {
		if err := w.repo.MarkFailed(ctx, j.ID, msg); err != nil {
			w.log.ErrorContext(ctx, "job.mark_failed_error", "job_id", j.ID, "err", err)
		}
		w.prom.ObserveJob(j.Type, "failed", took)
		w.log.ErrorContext(ctx, "job.failed",
			"job_id", j.ID,
			"type", j.Type,
			"attempt", attempt,
			"permanent", permanent,
			"err", jobErr,
		)
		return
	}

	delay := ExponentialBackoff(j.Attempts)
	if err := w.repo.Reschedule(ctx, j.ID, time.Now().UTC().Add(delay), msg); err != nil {
		w.log.ErrorContext(ctx, "job.reschedule_error", "job_id", j.ID, "err", err)
	}
	w.prom.ObserveJob(j.Type, "retry", took)
	w.log.WarnContext(ctx, "job.retry",
		"job_id", j.ID,
		"type", j.Type,
		"attempt", attempt,
		"delay_ms", delay.Milliseconds(),
		"err", jobErr,
	)
}
