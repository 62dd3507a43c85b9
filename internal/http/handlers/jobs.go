package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/sitehub/internal/domain/job"
	"github.com/geocoder89/sitehub/internal/http/middlewares"
	"github.com/geocoder89/sitehub/internal/jobs"
	"github.com/gin-gonic/gin"
)

type JobsEnqueuer interface {
	Create(ctx context.Context, req job.CreateRequest) (job.Job, error)
	GetByIdempotencyKey(ctx context.Context, key string) (job.Job, error)
}

type JobsHandler struct {
	jobs JobsEnqueuer
}

func NewJobsHandler(enqueuer JobsEnqueuer) *JobsHandler {
	return &JobsHandler{jobs: enqueuer}
}

// POST /projects/:projectId/progress/recalculate[?runAt=RFC3339]
//
// Progress is normally recalculated whenever tasks change; this lets a
// manager force it. An Idempotency-Key header makes retries safe.
func (h *JobsHandler) RecalculateProgress(ctx *gin.Context) {
	pid := projectID(ctx)
	runAt := time.Now().UTC()

	if raw := ctx.Query("runAt"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondBadRequest(ctx, "runAt must be an RFC 3339 datetime", nil)
			return
		}
		// allow slight clock drift
		if t.Before(runAt.Add(-30 * time.Second)) {
			RespondBadRequest(ctx, "runAt must be now or in the future", nil)
			return
		}
		runAt = t.UTC()
	}

	key := ""
	if k := strings.TrimSpace(ctx.GetHeader("Idempotency-Key")); k != "" {
		key = "progress:" + pid + ":" + k
	}

	req, err := jobs.NewRequest(jobs.RecalculateProgressPayload{
		ProjectID: pid,
		ActorID:   actorID(ctx),
		RequestID: requestIDFrom(ctx),
	}, key, runAt)
	if err != nil {
		RespondInternal(ctx, "Could not enqueue job", err)
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	j, err := h.jobs.Create(cctx, req)
	already := false
	if errors.Is(err, job.ErrAlreadyEnqueued) && key != "" {
		j, err = h.jobs.GetByIdempotencyKey(cctx, key)
		already = true
	}
	if err != nil {
		RespondInternal(ctx, "Could not enqueue job", err)
		return
	}

	ctx.Set(middlewares.CtxJobID, j.ID)
	slog.Default().InfoContext(cctx, "job.enqueue",
		"job_id", j.ID,
		"job_type", j.Type,
		"already_enqueued", already,
	)

	ctx.JSON(http.StatusAccepted, gin.H{
		"jobId":           j.ID,
		"status":          j.Status,
		"type":            j.Type,
		"runAt":           j.RunAt,
		"alreadyEnqueued": already,
	})
}
