package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/sitehub/internal/access"
	"github.com/geocoder89/sitehub/internal/actorctx"
	"github.com/geocoder89/sitehub/internal/domain/membership"
	"github.com/geocoder89/sitehub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	projectIDParam = "projectId"

	msgNoProjectAccess = "You do not have access to this project"
)

// Authorizer is the slice of access.Control the guards need.
type Authorizer interface {
	Authorize(ctx context.Context, userID, projectID string, req access.Requirement) error
}

// AccessRecorder receives one call per decision. *observability.Prom
// satisfies it; nil disables recording.
type AccessRecorder interface {
	ObserveAccess(requirement, outcome string)
}

// ProjectGuard turns access decisions into gin middleware for routes under
// /projects/:projectId.
type ProjectGuard struct {
	authz   Authorizer
	metrics AccessRecorder
	tracer  trace.Tracer
	log     *slog.Logger
}

func NewProjectGuard(authz Authorizer, metrics AccessRecorder, logger *slog.Logger) *ProjectGuard {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectGuard{
		authz:   authz,
		metrics: metrics,
		tracer:  observability.Tracer(),
		log:     logger,
	}
}

func (g *ProjectGuard) RequireMember() gin.HandlerFunc {
	return g.require(access.RequireMember)
}

func (g *ProjectGuard) RequireModify() gin.HandlerFunc {
	return g.require(access.RequireModify)
}

func (g *ProjectGuard) RequireOwner() gin.HandlerFunc {
	return g.require(access.RequireOwner)
}

func (g *ProjectGuard) RequireRole(role membership.Role) gin.HandlerFunc {
	return g.require(access.RequireRole(role))
}

func (g *ProjectGuard) require(req access.Requirement) gin.HandlerFunc {
	name := req.String()

	return func(c *gin.Context) {
		userID, ok := UserIDFromContext(c)
		if !ok {
			g.record(name, "unauthenticated")
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Missing identity context")
			return
		}

		projectID := c.Param(projectIDParam)
		if _, err := uuid.Parse(projectID); err != nil {
			g.record(name, "not_member")
			abortWithError(c, http.StatusForbidden, "forbidden", msgNoProjectAccess)
			return
		}

		ctx, span := g.tracer.Start(c.Request.Context(), "access.authorize",
			trace.WithAttributes(
				attribute.String("access.requirement", name),
				attribute.String("project.id", projectID),
				attribute.String("user.id", userID),
			),
		)
		err := g.authz.Authorize(ctx, userID, projectID, req)
		outcome := outcomeOf(err)
		span.SetAttributes(attribute.String("access.outcome", outcome))
		if outcome == "error" {
			span.RecordError(err)
			span.SetStatus(codes.Error, "authorize failed")
		}
		span.End()

		g.record(name, outcome)

		var roleErr *access.InsufficientRoleError
		switch {
		case err == nil:
			c.Set(CtxProjectID, projectID)
			c.Request = c.Request.WithContext(actorctx.WithProjectID(c.Request.Context(), projectID))
			c.Next()

		case errors.Is(err, access.ErrNotAMember):
			abortWithError(c, http.StatusForbidden, "forbidden", msgNoProjectAccess)

		case errors.As(err, &roleErr):
			abortWithError(c, http.StatusForbidden, "insufficient_role", roleErr.Error())

		default:
			g.log.ErrorContext(c.Request.Context(), "access_check_failed",
				"err", err,
				"requirement", name,
				"project_id", projectID,
				"user_id", userID,
			)
			abortWithError(c, http.StatusInternalServerError, "internal_error", "Internal server error")
		}
	}
}

func (g *ProjectGuard) record(requirement, outcome string) {
	if g.metrics != nil {
		g.metrics.ObserveAccess(requirement, outcome)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "allowed"
	case errors.Is(err, access.ErrNotAMember):
		return "not_member"
	case access.IsInsufficientRole(err):
		return "insufficient_role"
	default:
		return "error"
	}
}
