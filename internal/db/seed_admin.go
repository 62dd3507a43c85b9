package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/geocoder89/sitehub/internal/config"
	"github.com/geocoder89/sitehub/internal/domain/user"
	"github.com/geocoder89/sitehub/internal/security"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureAdminUser creates the bootstrap platform admin when ADMIN_EMAIL and
// ADMIN_PASSWORD are set. An existing account with that email is left as is.
// The admin role grants /admin access only, never project access.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config, log *slog.Logger) error {
	email := user.NormalizeEmail(cfg.AdminEmail)
	if email == "" || cfg.AdminPassword == "" {
		return nil
	}

	var exists bool
	if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists); err != nil {
		return fmt.Errorf("look up admin: %w", err)
	}
	if exists {
		log.Debug("admin_seed_skipped", "email", email)
		return nil
	}

	hash, err := security.HashPassword(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := user.New(email, hash, cfg.AdminName, user.RoleAdmin, user.Profile{})
	tag, err := pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, name, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (email) DO NOTHING`,
		admin.ID, admin.Email, admin.PasswordHash, admin.Name, admin.Role, admin.Active, admin.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}

	if tag.RowsAffected() == 1 {
		log.Info("admin_seeded", "email", email)
	}
	return nil
}
