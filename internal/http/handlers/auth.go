package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/sitehub/internal/auth"
	"github.com/geocoder89/sitehub/internal/config"
	"github.com/geocoder89/sitehub/internal/domain/user"
	"github.com/geocoder89/sitehub/internal/http/middlewares"
	"github.com/geocoder89/sitehub/internal/repo/postgres"
	"github.com/geocoder89/sitehub/internal/security"
	"github.com/gin-gonic/gin"
)

type UserStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	Deactivate(ctx context.Context, id string) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

type SessionStore interface {
	Store(ctx context.Context, row postgres.RefreshTokenRow) error
	Rotate(ctx context.Context, oldID, presentedHash string, next postgres.RefreshTokenRow) error
	RevokeOne(ctx context.Context, id string) error
}

type AuthHandler struct {
	users    UserStore
	sessions SessionStore
	jwt      *auth.Manager
	cfg      config.Config
}

func NewAuthHandler(users UserStore, sessions SessionStore, jwtManager *auth.Manager, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		users:    users,
		sessions: sessions,
		jwt:      jwtManager,
		cfg:      cfg,
	}
}

const refreshCookieName = "refresh_token"

type LoginRequest struct {
	Email    string `json:"email" binding:"required,trimmed_email"`
	Password string `json:"password" binding:"required"`
}

type SignUpRequest struct {
	Email     string  `json:"email" binding:"required,trimmed_email"`
	Password  string  `json:"password" binding:"required,min=8,max=72"`
	Name      string  `json:"name" binding:"required,min=2,max=120"`
	Phone     *string `json:"phone" binding:"omitempty,max=30"`
	JobTitle  *string `json:"jobTitle" binding:"omitempty,max=80"`
	Specialty *string `json:"specialty" binding:"omitempty,max=80"`
}

// POST /auth/signup
func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req SignUpRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		RespondInternal(ctx, "Could not create user", err)
		return
	}

	u, err := h.users.Create(cctx, user.New(req.Email, hash, req.Name, user.RoleUser, user.Profile{
		Phone:     req.Phone,
		JobTitle:  req.JobTitle,
		Specialty: req.Specialty,
	}))
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondConflict(ctx, "email_taken", "Email is already in use.")
			return
		}
		RespondInternal(ctx, "Could not create user", err)
		return
	}

	accessToken, ok := h.startSession(cctx, ctx, u)
	if !ok {
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"accessToken": accessToken,
		"user":        u,
	})
}

// POST /auth/login
func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := h.users.GetByEmail(cctx, user.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			security.BurnCompare(req.Password)
			RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
			return
		}
		RespondInternal(ctx, "Could not log in", err)
		return
	}

	if err := security.CheckPassword(u.PasswordHash, req.Password); err != nil {
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	if !u.Active {
		RespondForbidden(ctx, "user_inactive", "This account has been deactivated.")
		return
	}

	if security.NeedsRehash(u.PasswordHash) {
		h.upgradeHash(cctx, u.ID, req.Password)
	}

	accessToken, ok := h.startSession(cctx, ctx, u)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"accessToken": accessToken,
		"user":        u,
	})
}

// POST /auth/refresh rotates the refresh cookie and issues a new access token.
func (h *AuthHandler) Refresh(ctx *gin.Context) {
	raw, err := ctx.Cookie(refreshCookieName)
	if err != nil || raw == "" {
		RespondUnAuthorized(ctx, "no_refresh", "Missing refresh token")
		return
	}

	claims, err := h.jwt.VerifyRefreshToken(raw)
	if err != nil {
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, claims.UserID)
	if err != nil || !u.Active {
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	newRaw, newJTI, newExpiresAt, err := h.jwt.GenerateRefreshToken(u.ID, u.Email, u.Role)
	if err != nil {
		RespondInternal(ctx, "Could not refresh session", err)
		return
	}

	err = h.sessions.Rotate(cctx, claims.JTI, h.jwt.HashRefreshToken(raw), postgres.RefreshTokenRow{
		ID:        newJTI,
		UserID:    u.ID,
		TokenHash: h.jwt.HashRefreshToken(newRaw),
		ExpiresAt: newExpiresAt,
		CreatedAt: time.Now().UTC(),
	})
	switch {
	case errors.Is(err, postgres.ErrRefreshTokenExpired):
		RespondUnAuthorized(ctx, "expired_refresh", "Refresh token expired.")
		return
	case errors.Is(err, postgres.ErrRefreshTokenReused):
		slog.Default().WarnContext(cctx, "refresh_token_reuse", "user_id", u.ID, "jti", claims.JTI)
		h.clearRefreshCookie(ctx)
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	case errors.Is(err, postgres.ErrRefreshTokenNotFound),
		errors.Is(err, postgres.ErrRefreshTokenRevoked),
		errors.Is(err, postgres.ErrRefreshTokenMismatch):
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	case err != nil:
		RespondInternal(ctx, "Could not refresh session", err)
		return
	}

	accessToken, err := h.jwt.GenerateAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		RespondInternal(ctx, "Could not generate access token", err)
		return
	}

	h.setRefreshCookie(ctx, newRaw, newExpiresAt)
	ctx.JSON(http.StatusOK, gin.H{"accessToken": accessToken})
}

// POST /auth/logout always clears the cookie; the token is revoked when valid.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	defer func() {
		h.clearRefreshCookie(ctx)
		ctx.Status(http.StatusNoContent)
	}()

	raw, err := ctx.Cookie(refreshCookieName)
	if err != nil || raw == "" {
		return
	}

	claims, err := h.jwt.VerifyRefreshToken(raw)
	if err != nil {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	_ = h.sessions.RevokeOne(cctx, claims.JTI)
}

// GET /auth/me
func (h *AuthHandler) Me(ctx *gin.Context) {
	userID, _ := middlewares.UserIDFromContext(ctx)

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not load user", err)
		return
	}

	ctx.JSON(http.StatusOK, u)
}

// DELETE /auth/me deactivates the caller. Memberships stay as they are.
func (h *AuthHandler) Deactivate(ctx *gin.Context) {
	userID, _ := middlewares.UserIDFromContext(ctx)

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.users.Deactivate(cctx, userID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not deactivate user", err)
		return
	}

	h.clearRefreshCookie(ctx)
	ctx.Status(http.StatusNoContent)
}

func (h *AuthHandler) startSession(cctx context.Context, ctx *gin.Context, u user.User) (string, bool) {
	accessToken, err := h.jwt.GenerateAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		RespondInternal(ctx, "Could not generate access token", err)
		return "", false
	}

	raw, jti, expiresAt, err := h.jwt.GenerateRefreshToken(u.ID, u.Email, u.Role)
	if err != nil {
		RespondInternal(ctx, "Could not generate refresh token", err)
		return "", false
	}

	err = h.sessions.Store(cctx, postgres.RefreshTokenRow{
		ID:        jti,
		UserID:    u.ID,
		TokenHash: h.jwt.HashRefreshToken(raw),
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		RespondInternal(ctx, "Could not create session", err)
		return "", false
	}

	h.setRefreshCookie(ctx, raw, expiresAt)
	return accessToken, true
}

func (h *AuthHandler) setRefreshCookie(ctx *gin.Context, raw string, expiresAt time.Time) {
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(refreshCookieName, raw, int(time.Until(expiresAt).Seconds()), "/auth", "", h.cfg.Env == "prod", true)
}

func (h *AuthHandler) clearRefreshCookie(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(refreshCookieName, "", -1, "/auth", "", h.cfg.Env == "prod", true)
}

// upgradeHash re-hashes at the current cost after a successful login. A
// failure leaves the old hash in place.
func (h *AuthHandler) upgradeHash(ctx context.Context, userID, plain string) {
	hash, err := security.HashPassword(plain)
	if err == nil {
		err = h.users.UpdatePasswordHash(ctx, userID, hash)
	}
	if err != nil {
		slog.Default().WarnContext(ctx, "password_rehash_failed", "user_id", userID, "err", err)
	}
}
