package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/geocoder89/sitehub/internal/domain/membership"
	"github.com/geocoder89/sitehub/internal/domain/project"
	"github.com/gin-gonic/gin"
)

type ProjectStore interface {
	Create(ctx context.Context, p project.Project, m membership.Membership) error
	GetByID(ctx context.Context, id string) (project.Project, error)
	Update(ctx context.Context, id string, req project.UpdateProjectRequest) (project.Project, error)
	Delete(ctx context.Context, id string) error
}

// ProjectAccess is the subset of access control the project endpoints
// report back to clients.
type ProjectAccess interface {
	ListUserProjects(ctx context.Context, userID string) ([]project.UserProject, error)
	RoleInProject(ctx context.Context, userID, projectID string) (membership.Role, bool, error)
	IsProjectOwner(ctx context.Context, userID, projectID string) (bool, error)
	CanModifyProject(ctx context.Context, userID, projectID string) (bool, error)
}

type ProjectsHandler struct {
	projects ProjectStore
	access   ProjectAccess
}

func NewProjectsHandler(projects ProjectStore, access ProjectAccess) *ProjectsHandler {
	return &ProjectsHandler{projects: projects, access: access}
}

// GET /projects lists the caller's active projects, most recently joined first.
func (h *ProjectsHandler) List(ctx *gin.Context) {
	cctx, cancel := requestContext(ctx)
	defer cancel()

	items, err := h.access.ListUserProjects(cctx, actorID(ctx))
	if err != nil {
		RespondInternal(ctx, "Could not list projects", err)
		return
	}

	if s := queryString(ctx, "status"); s != nil {
		filtered := items[:0]
		for _, it := range items {
			if string(it.Status) == *s {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

// POST /projects. The creator becomes owner and first manager.
func (h *ProjectsHandler) Create(ctx *gin.Context) {
	var req project.CreateProjectRequest
	if !BindJSON(ctx, &req) {
		return
	}

	p, m := project.NewFromCreateRequest(req, actorID(ctx))

	cctx, cancel := requestContext(ctx)
	defer cancel()

	if err := h.projects.Create(cctx, p, m); err != nil {
		RespondInternal(ctx, "Could not create project", err)
		return
	}

	ctx.JSON(http.StatusCreated, p)
}

func (h *ProjectsHandler) Get(ctx *gin.Context) {
	cctx, cancel := requestContext(ctx)
	defer cancel()

	p, err := h.projects.GetByID(cctx, projectID(ctx))
	if err != nil {
		h.respondErr(ctx, err, "Could not fetch project")
		return
	}

	ctx.JSON(http.StatusOK, p)
}

// GET /projects/:projectId/access describes what the caller may do.
func (h *ProjectsHandler) Access(ctx *gin.Context) {
	cctx, cancel := requestContext(ctx)
	defer cancel()

	userID, pid := actorID(ctx), projectID(ctx)

	role, member, err := h.access.RoleInProject(cctx, userID, pid)
	if err != nil {
		RespondInternal(ctx, "Could not resolve access", err)
		return
	}
	owner, err := h.access.IsProjectOwner(cctx, userID, pid)
	if err != nil {
		RespondInternal(ctx, "Could not resolve access", err)
		return
	}
	canModify, err := h.access.CanModifyProject(cctx, userID, pid)
	if err != nil {
		RespondInternal(ctx, "Could not resolve access", err)
		return
	}

	body := gin.H{
		"projectId": pid,
		"member":    member,
		"isOwner":   owner,
		"canModify": canModify,
		"canDelete": owner,
	}
	if member {
		body["role"] = role
	}

	ctx.JSON(http.StatusOK, body)
}

func (h *ProjectsHandler) Update(ctx *gin.Context) {
	var req project.UpdateProjectRequest
	if !BindJSON(ctx, &req) {
		return
	}
	if req.IsEmpty() {
		RespondNoChanges(ctx)
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	p, err := h.projects.Update(cctx, projectID(ctx), req)
	if err != nil {
		h.respondErr(ctx, err, "Could not update project")
		return
	}

	ctx.JSON(http.StatusOK, p)
}

func (h *ProjectsHandler) Delete(ctx *gin.Context) {
	cctx, cancel := requestContext(ctx)
	defer cancel()

	if err := h.projects.Delete(cctx, projectID(ctx)); err != nil {
		h.respondErr(ctx, err, "Could not delete project")
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *ProjectsHandler) respondErr(ctx *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, project.ErrNotFound):
		RespondNotFound(ctx, "Project not found")
	case errors.Is(err, project.ErrNoChanges):
		RespondNoChanges(ctx)
	default:
		RespondInternal(ctx, msg, err)
	}
}
