package handlers

import (
	"context"
	"time"

	"github.com/geocoder89/sitehub/internal/config"
	"github.com/geocoder89/sitehub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

const defaultTimeout = 3 * time.Second

// requestContext bounds a handler's storage calls by defaultTimeout.
func requestContext(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return config.WithTimeout(ctx.Request.Context(), defaultTimeout)
}

// actorID is the authenticated caller. Routes using it sit behind RequireAuth.
func actorID(ctx *gin.Context) string {
	id, _ := middlewares.UserIDFromContext(ctx)
	return id
}

func projectID(ctx *gin.Context) string {
	return ctx.Param("projectId")
}
