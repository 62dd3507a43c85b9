package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/geocoder89/sitehub/internal/domain/job"
	"github.com/geocoder89/sitehub/internal/http/middlewares"
	"github.com/geocoder89/sitehub/internal/utils"
	"github.com/gin-gonic/gin"
)

// AdminJobsRepo is the operator view of the durable queue.
type AdminJobsRepo interface {
	ListCursor(ctx context.Context, f job.ListFilter, after *utils.Cursor) ([]job.Job, *string, error)
	GetByID(ctx context.Context, id string) (job.Job, error)
	Retry(ctx context.Context, id string) (job.Job, error)
}

type AdminJobsHandler struct {
	repo AdminJobsRepo
}

func NewAdminJobsHandler(repo AdminJobsRepo) *AdminJobsHandler {
	return &AdminJobsHandler{repo: repo}
}

type jobsPage struct {
	Limit      int       `json:"limit"`
	Count      int       `json:"count"`
	Items      []job.Job `json:"items"`
	HasMore    bool      `json:"hasMore"`
	NextCursor *string   `json:"nextCursor"`
}

// GET /admin/jobs?status=failed&type=&limit=50&cursor=
func (h *AdminJobsHandler) List(ctx *gin.Context) {
	f, after, ok := jobsListQuery(ctx)
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	items, next, err := h.repo.ListCursor(cctx, f, after)
	if err != nil {
		RespondInternal(ctx, "Could not list jobs", err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, jobsPage{
		Limit:      f.Limit,
		Count:      len(items),
		Items:      items,
		HasMore:    next != nil,
		NextCursor: next,
	})
}

func jobsListQuery(ctx *gin.Context) (job.ListFilter, *utils.Cursor, bool) {
	f := job.ListFilter{
		Type:  queryString(ctx, "type"),
		Limit: utils.ParseLimit(ctx.Query("limit"), 20, 100),
	}

	if raw := queryString(ctx, "status"); raw != nil {
		st, ok := job.ParseStatus(*raw)
		if !ok {
			RespondBadRequest(ctx, "status must be one of pending, processing, done, failed", nil)
			return f, nil, false
		}
		f.Status = &st
	}

	raw := ctx.Query("cursor")
	if raw == "" {
		return f, nil, true
	}
	cur, err := utils.DecodeCursor(raw)
	if err != nil {
		RespondBadRequest(ctx, "cursor is invalid", nil)
		return f, nil, false
	}
	return f, &cur, true
}

// GET /admin/jobs/:id
func (h *AdminJobsHandler) GetByID(ctx *gin.Context) {
	h.withJob(ctx, "Could not fetch job", h.repo.GetByID)
}

// POST /admin/jobs/:id/retry
func (h *AdminJobsHandler) Retry(ctx *gin.Context) {
	h.withJob(ctx, "Could not retry job", h.repo.Retry)
}

func (h *AdminJobsHandler) withJob(ctx *gin.Context, failMsg string, op func(context.Context, string) (job.Job, error)) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	ctx.Set(middlewares.CtxJobID, id)

	cctx, cancel := requestContext(ctx)
	defer cancel()

	j, err := op(cctx, id)
	switch {
	case errors.Is(err, job.ErrJobNotFound):
		RespondNotFound(ctx, "Job not found")
	case errors.Is(err, job.ErrJobNotFailed):
		RespondConflict(ctx, "job_not_failed", "Only failed jobs can be retried")
	case err != nil:
		RespondInternal(ctx, failMsg, err)
	case ctx.Request.Method == http.MethodGet:
		RespondJSONWithETag(ctx, http.StatusOK, j)
	default:
		ctx.JSON(http.StatusOK, j)
	}
}
