package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/sitehub/internal/domain/user"
	"github.com/geocoder89/sitehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, password_hash, name, phone, job_title, specialty, role, active, created_at, updated_at`

type UsersRepo struct {
	base
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{base{pool: pool, prom: prom}}
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.Phone,
		&u.JobTitle,
		&u.Specialty,
		&u.Role,
		&u.Active,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return user.User{}, user.ErrNotFound
	}
	return u, err
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	err := r.observe("users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (`+userColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			u.ID, u.Email, u.PasswordHash, u.Name, u.Phone, u.JobTitle, u.Specialty,
			u.Role, u.Active, u.CreatedAt, u.UpdatedAt,
		)
		return err
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (u user.User, err error) {
	err = r.observe("users.get_by_email", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
		return err
	})
	return u, err
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (u user.User, err error) {
	err = r.observe("users.get_by_id", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return err
	})
	return u, err
}

// Deactivate flips the active flag and revokes every refresh token in one
// transaction. Memberships are left alone; an inactive user cannot log in.
func (r *UsersRepo) Deactivate(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		var n int64
		err := r.observe("users.deactivate", func() error {
			tag, err := tx.Exec(ctx,
				`UPDATE users SET active = FALSE, updated_at = NOW() WHERE id = $1 AND active`, id)
			n = tag.RowsAffected()
			return err
		})
		if err != nil {
			return err
		}
		if n == 0 {
			return user.ErrNotFound
		}

		return revokeAllForUser(ctx, tx, r.base, id)
	})
}

func (r *UsersRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return r.observe("users.update_password_hash", func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}
		return nil
	})
}
