package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/sitehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenRevoked  = errors.New("refresh token revoked")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")
	ErrRefreshTokenMismatch = errors.New("refresh token hash mismatch")
	// ErrRefreshTokenReused means an already rotated token came back. Every
	// session of its user has been revoked.
	ErrRefreshTokenReused = errors.New("refresh token reused")
)

type RefreshTokenRow struct {
	ID         string
	UserID     string
	TokenHash  string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *string
	CreatedAt  time.Time
}

const refreshTokenColumns = `id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at`

// RefreshTokensRepo stores hashed refresh tokens. Rotation keeps the chain
// through replaced_by so reuse of an old link can be detected.
type RefreshTokensRepo struct {
	base
}

func NewRefreshTokensRepo(pool *pgxpool.Pool, prom *observability.Prom) *RefreshTokensRepo {
	return &RefreshTokensRepo{base{pool: pool, prom: prom}}
}

func (r *RefreshTokensRepo) insert(ctx context.Context, tx pgx.Tx, row RefreshTokenRow) error {
	return r.observe("refresh_tokens.insert", func() error {
		_, err := tx.Exec(ctx,
			`INSERT INTO refresh_tokens (`+refreshTokenColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			row.ID, row.UserID, row.TokenHash, row.ExpiresAt, row.RevokedAt, row.ReplacedBy, row.CreatedAt,
		)
		return err
	})
}

// lock reads a row FOR UPDATE so concurrent refreshes of the same token
// serialize.
func (r *RefreshTokensRepo) lock(ctx context.Context, tx pgx.Tx, id string) (row RefreshTokenRow, err error) {
	err = r.observe("refresh_tokens.lock", func() error {
		return tx.QueryRow(ctx,
			`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE id = $1 FOR UPDATE`, id,
		).Scan(&row.ID, &row.UserID, &row.TokenHash, &row.ExpiresAt, &row.RevokedAt, &row.ReplacedBy, &row.CreatedAt)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return RefreshTokenRow{}, ErrRefreshTokenNotFound
	}
	return row, err
}

func (r *RefreshTokensRepo) revoke(ctx context.Context, tx pgx.Tx, id string, replacedBy *string) error {
	return r.observe("refresh_tokens.revoke", func() error {
		_, err := tx.Exec(ctx,
			`UPDATE refresh_tokens SET revoked_at = NOW(), replaced_by = $2 WHERE id = $1 AND revoked_at IS NULL`,
			id, replacedBy)
		return err
	})
}

// revokeAllForUser ends every open session of a user inside tx.
func revokeAllForUser(ctx context.Context, tx pgx.Tx, b base, userID string) error {
	return b.observe("refresh_tokens.revoke_all", func() error {
		_, err := tx.Exec(ctx,
			`UPDATE refresh_tokens SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`, userID)
		return err
	})
}

// Store persists a freshly issued refresh token.
func (r *RefreshTokensRepo) Store(ctx context.Context, row RefreshTokenRow) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		return r.insert(ctx, tx, row)
	})
}

// Rotate revokes the presented token and stores next in its place. A token
// that was already rotated revokes the whole family and yields
// ErrRefreshTokenReused.
func (r *RefreshTokensRepo) Rotate(ctx context.Context, oldID, presentedHash string, next RefreshTokenRow) error {
	reused := false

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		row, err := r.lock(ctx, tx, oldID)
		if err != nil {
			return err
		}

		if row.TokenHash != presentedHash {
			return ErrRefreshTokenMismatch
		}
		if row.RevokedAt != nil {
			if row.ReplacedBy == nil {
				return ErrRefreshTokenRevoked
			}
			// commit the family revocation, then report
			reused = true
			return revokeAllForUser(ctx, tx, r.base, row.UserID)
		}
		if time.Now().UTC().After(row.ExpiresAt) {
			return ErrRefreshTokenExpired
		}

		next.UserID = row.UserID
		if err := r.revoke(ctx, tx, row.ID, &next.ID); err != nil {
			return err
		}
		return r.insert(ctx, tx, next)
	})

	if err == nil && reused {
		return ErrRefreshTokenReused
	}
	return err
}

// RevokeOne revokes a single token. Unknown ids are ignored.
func (r *RefreshTokensRepo) RevokeOne(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		return r.revoke(ctx, tx, id, nil)
	})
}

// DeleteExpired purges rows that expired before the cutoff. Run by the
// worker's maintenance schedule.
func (r *RefreshTokensRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := r.observe("refresh_tokens.delete_expired", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, before)
		n = tag.RowsAffected()
		return err
	})
	return n, err
}
