package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/geocoder89/sitehub/internal/domain/dashboard"
	"github.com/geocoder89/sitehub/internal/domain/project"
	"github.com/gin-gonic/gin"
)

type DashboardSource interface {
	Get(ctx context.Context, projectID string) (dashboard.Dashboard, error)
}

type DashboardHandler struct {
	source DashboardSource
}

func NewDashboardHandler(source DashboardSource) *DashboardHandler {
	return &DashboardHandler{source: source}
}

// GET /projects/:projectId/dashboard
func (h *DashboardHandler) Get(ctx *gin.Context) {
	cctx, cancel := requestContext(ctx)
	defer cancel()

	d, err := h.source.Get(cctx, projectID(ctx))
	if err != nil {
		if errors.Is(err, project.ErrNotFound) {
			RespondNotFound(ctx, "Project not found")
			return
		}
		RespondInternal(ctx, "Could not build dashboard", err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, d)
}
