package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/sitehub/internal/actorctx"
	"github.com/geocoder89/sitehub/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authRouter(m *AuthMiddleware, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	chain := append([]gin.HandlerFunc{m.RequireAuth()}, extra...)
	chain = append(chain, func(c *gin.Context) {
		actor, _ := actorctx.UserIDFrom(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"userId": c.GetString(CtxUserID), "actor": actor})
	})
	r.GET("/me", chain...)
	return r
}

func getWithToken(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	jwt := auth.NewManager("mw-secret", time.Minute, time.Hour)
	expired := auth.NewManager("mw-secret", -time.Hour, time.Hour)
	r := authRouter(NewAuthMiddleware(jwt))

	good, err := jwt.GenerateAccessToken("u1", "u1@site.test", "user")
	require.NoError(t, err)
	old, err := expired.GenerateAccessToken("u1", "u1@site.test", "user")
	require.NoError(t, err)
	refresh, _, _, err := jwt.GenerateRefreshToken("u1", "u1@site.test", "user")
	require.NoError(t, err)

	w := getWithToken(r, "Bearer "+good)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":"u1","actor":"u1"}`, w.Body.String())

	tests := []struct {
		name, header, code string
	}{
		{"missing header", "", "unauthorized"},
		{"wrong scheme", "Basic abc", "unauthorized"},
		{"empty bearer", "Bearer ", "unauthorized"},
		{"expired", "Bearer " + old, "token_expired"},
		{"refresh token", "Bearer " + refresh, "unauthorized"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := getWithToken(r, tc.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tc.code, decodeError(t, w).Error.Code)
		})
	}
}

func TestRequirePlatformRole(t *testing.T) {
	jwt := auth.NewManager("mw-secret", time.Minute, time.Hour)
	m := NewAuthMiddleware(jwt)
	r := authRouter(m, m.RequirePlatformRole("admin"))

	user, err := jwt.GenerateAccessToken("u1", "u1@site.test", "user")
	require.NoError(t, err)
	admin, err := jwt.GenerateAccessToken("a1", "a1@site.test", "admin")
	require.NoError(t, err)

	w := getWithToken(r, "Bearer "+user)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Platform role admin required")
	assert.Equal(t, http.StatusOK, getWithToken(r, "Bearer "+admin).Code)

	either := authRouter(m, m.RequirePlatformRole("admin", "user"))
	assert.Equal(t, http.StatusOK, getWithToken(either, "Bearer "+user).Code)
}
