package middlewares

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/geocoder89/sitehub/internal/actorctx"
	"github.com/geocoder89/sitehub/internal/auth"
	"github.com/gin-gonic/gin"
)

type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Missing or invalid access token")
			return
		}

		claims, err := m.jwt.VerifyAccessToken(raw)
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			abortWithError(c, http.StatusUnauthorized, "token_expired", "Access token expired")
			return
		case err != nil:
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Invalid access token")
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxEmail, claims.Email)
		c.Set(CtxRole, claims.Role)
		c.Request = c.Request.WithContext(actorctx.WithUserID(c.Request.Context(), claims.UserID))

		c.Next()
	}
}

// RequirePlatformRole gates ops endpoints on the role carried in the access
// token. Project data is never gated here; see ProjectGuard.
func (m *AuthMiddleware) RequirePlatformRole(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := RoleFromContext(c)
		switch {
		case !ok:
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Missing identity context")
		case !slices.Contains(allowed, role):
			abortWithError(c, http.StatusForbidden, "forbidden", "Platform role "+strings.Join(allowed, " or ")+" required")
		default:
			c.Next()
		}
	}
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	id := c.GetString(CtxUserID)
	return id, id != ""
}

func RoleFromContext(c *gin.Context) (string, bool) {
	role := c.GetString(CtxRole)
	return role, role != ""
}
