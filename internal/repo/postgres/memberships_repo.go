package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/sitehub/internal/domain/membership"
	"github.com/geocoder89/sitehub/internal/domain/project"
	"github.com/geocoder89/sitehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const membershipColumns = `m.id, m.project_id, m.user_id, m.role, m.joined_at, m.left_at, m.active`

type MembershipsRepo struct {
	base
}

func NewMembershipsRepo(pool *pgxpool.Pool, prom *observability.Prom) *MembershipsRepo {
	return &MembershipsRepo{base{pool: pool, prom: prom}}
}

func membershipDest(m *membership.Membership) []any {
	return []any{&m.ID, &m.ProjectID, &m.UserID, &m.Role, &m.JoinedAt, &m.LeftAt, &m.Active}
}

func insertMembership(ctx context.Context, tx pgx.Tx, b base, m membership.Membership) error {
	err := b.observe("memberships.insert", func() error {
		_, err := tx.Exec(ctx, `
			INSERT INTO project_members (id, project_id, user_id, role, joined_at, left_at, active)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			m.ID, m.ProjectID, m.UserID, string(m.Role), m.JoinedAt, m.LeftAt, m.Active,
		)
		return err
	})

	switch {
	case IsUniqueViolation(err):
		return membership.ErrAlreadyActive
	case IsForeignKeyViolation(err):
		return membership.ErrNotFound
	}
	return err
}

// FindActiveMemberships returns every active row for the pair. The partial
// unique index allows at most one; callers treat more as corruption.
func (r *MembershipsRepo) FindActiveMemberships(ctx context.Context, projectID, userID string) ([]membership.Membership, error) {
	var out []membership.Membership

	err := r.observe("memberships.find_active", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT `+membershipColumns+`
			FROM project_members m
			WHERE m.project_id = $1 AND m.user_id = $2 AND m.active
		`, projectID, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var m membership.Membership
			if err := rows.Scan(membershipDest(&m)...); err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})

	return out, err
}

func (r *MembershipsRepo) ListActiveMembershipsForUser(ctx context.Context, userID string) ([]membership.ProjectMembership, error) {
	out := []membership.ProjectMembership{}

	err := r.observe("memberships.list_for_user", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT `+membershipColumns+`, p.name, p.status, p.creator_id
			FROM project_members m
			JOIN projects p ON p.id = m.project_id
			WHERE m.user_id = $1 AND m.active
			ORDER BY m.joined_at DESC, m.id DESC
		`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var pm membership.ProjectMembership
			dest := append(membershipDest(&pm.Membership), &pm.ProjectName, &pm.ProjectStatus, &pm.CreatorID)
			if err := rows.Scan(dest...); err != nil {
				return err
			}
			out = append(out, pm)
		}
		return rows.Err()
	})

	return out, err
}

// Add inserts a new active row. Removed members get a fresh row; the old
// one stays as history.
func (r *MembershipsRepo) Add(ctx context.Context, m membership.Membership) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		err := r.observe("memberships.add.project_check", func() error {
			return tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM projects WHERE id = $1)`, m.ProjectID).Scan(&exists)
		})
		if err != nil {
			return err
		}
		if !exists {
			return project.ErrNotFound
		}

		return insertMembership(ctx, tx, r.base, m)
	})
}

func (r *MembershipsRepo) GetMember(ctx context.Context, projectID, membershipID string) (membership.Member, error) {
	var mem membership.Member

	err := r.observe("memberships.get", func() error {
		dest := append(membershipDest(&mem.Membership), &mem.UserName, &mem.UserEmail, &mem.UserJobTitle)
		return r.pool.QueryRow(ctx, `
			SELECT `+membershipColumns+`, u.name, u.email, u.job_title
			FROM project_members m
			JOIN users u ON u.id = m.user_id
			WHERE m.project_id = $1 AND m.id = $2
		`, projectID, membershipID).Scan(dest...)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return membership.Member{}, membership.ErrNotFound
	}
	return mem, err
}

func (r *MembershipsRepo) ListMembers(ctx context.Context, projectID string, f membership.ListMembersFilter) ([]membership.Member, error) {
	q := `
		SELECT ` + membershipColumns + `, u.name, u.email, u.job_title
		FROM project_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.project_id = $1`
	args := []any{projectID}

	if f.Active != nil {
		args = append(args, *f.Active)
		q += ` AND m.active = $2`
	}
	q += ` ORDER BY m.active DESC, m.joined_at ASC`

	out := []membership.Member{}
	err := r.observe("memberships.list_members", func() error {
		rows, err := r.pool.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var mem membership.Member
			dest := append(membershipDest(&mem.Membership), &mem.UserName, &mem.UserEmail, &mem.UserJobTitle)
			if err := rows.Scan(dest...); err != nil {
				return err
			}
			out = append(out, mem)
		}
		return rows.Err()
	})

	return out, err
}

// ListActiveUserIDs is used to fan notifications out to a project's team.
func (r *MembershipsRepo) ListActiveUserIDs(ctx context.Context, projectID string) ([]string, error) {
	var out []string

	err := r.observe("memberships.list_active_user_ids", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT user_id FROM project_members WHERE project_id = $1 AND active
		`, projectID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			out = append(out, id)
		}
		return rows.Err()
	})

	return out, err
}

func (r *MembershipsRepo) UpdateRole(ctx context.Context, projectID, membershipID string, role membership.Role) (membership.Membership, error) {
	var m membership.Membership

	err := r.observe("memberships.update_role", func() error {
		return r.pool.QueryRow(ctx, `
			UPDATE project_members m
			SET role = $3
			WHERE m.project_id = $1 AND m.id = $2 AND m.active
			RETURNING `+membershipColumns,
			projectID, membershipID, string(role),
		).Scan(membershipDest(&m)...)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return membership.Membership{}, r.missingOrInactive(ctx, projectID, membershipID)
	}
	return m, err
}

// Remove soft-deletes the membership. The row is kept with active = false
// and left_at stamped.
func (r *MembershipsRepo) Remove(ctx context.Context, projectID, membershipID string) error {
	var n int64
	err := r.observe("memberships.remove", func() error {
		tag, err := r.pool.Exec(ctx, `
			UPDATE project_members
			SET active = FALSE, left_at = NOW()
			WHERE project_id = $1 AND id = $2 AND active
		`, projectID, membershipID)
		n = tag.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return r.missingOrInactive(ctx, projectID, membershipID)
	}
	return nil
}

func (r *MembershipsRepo) missingOrInactive(ctx context.Context, projectID, membershipID string) error {
	var exists bool
	err := r.observe("memberships.exists", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM project_members WHERE project_id = $1 AND id = $2)
		`, projectID, membershipID).Scan(&exists)
	})
	if err != nil {
		return err
	}
	if exists {
		return membership.ErrInactive
	}
	return membership.ErrNotFound
}

// CountMemberships counts every row for the project, active or not.
func (r *MembershipsRepo) CountMemberships(ctx context.Context, projectID string) (int, error) {
	var n int
	err := r.observe("memberships.count", func() error {
		return r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM project_members WHERE project_id = $1`, projectID).Scan(&n)
	})
	return n, err
}
