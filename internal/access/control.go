package access

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/geocoder89/sitehub/internal/domain/membership"
	"github.com/geocoder89/sitehub/internal/domain/project"
)

// Store is the read side of the membership and project tables.
type Store interface {
	FindActiveMemberships(ctx context.Context, projectID, userID string) ([]membership.Membership, error)
	FindProject(ctx context.Context, projectID string) (project.Project, error)
	ListActiveMembershipsForUser(ctx context.Context, userID string) ([]membership.ProjectMembership, error)
}

// Control answers per-project permission questions. It holds no state of
// its own and is safe for concurrent use. Errors are only ever storage
// errors and are returned unchanged.
type Control struct {
	store Store
	log   *slog.Logger
}

// New returns a Control over store. A nil logger means slog.Default.
func New(store Store, logger *slog.Logger) *Control {
	if logger == nil {
		logger = slog.Default()
	}
	return &Control{store: store, log: logger}
}

// IsProjectMember reports whether the user has an active membership.
func (c *Control) IsProjectMember(ctx context.Context, userID, projectID string) (bool, error) {
	_, ok, err := c.RoleInProject(ctx, userID, projectID)
	return ok, err
}

// RoleInProject returns the role of the user's active membership. More than
// one active row is an integrity violation: it is logged and the least
// privileged role wins.
func (c *Control) RoleInProject(ctx context.Context, userID, projectID string) (membership.Role, bool, error) {
	rows, err := c.store.FindActiveMemberships(ctx, projectID, userID)
	if err != nil {
		return "", false, err
	}

	switch len(rows) {
	case 0:
		return "", false, nil
	case 1:
		return rows[0].Role, true, nil
	}

	lowest := rows[0].Role
	roles := make([]string, 0, len(rows))
	for _, m := range rows {
		roles = append(roles, string(m.Role))
		if m.Role.Level() < lowest.Level() {
			lowest = m.Role
		}
	}

	c.log.WarnContext(ctx, "multiple_active_memberships",
		"project_id", projectID,
		"user_id", userID,
		"roles", roles,
		"resolved_role", string(lowest),
	)

	return lowest, true, nil
}

// HasPermission reports whether the user's active role is at least
// required. An empty requirement means collaborator; unknown roles never pass.
func (c *Control) HasPermission(ctx context.Context, userID, projectID string, required membership.Role) (bool, error) {
	if required == "" {
		required = membership.RoleCollaborator
	}

	role, ok, err := c.RoleInProject(ctx, userID, projectID)
	if err != nil || !ok {
		return false, err
	}

	return role.IsValid() && role.AtLeast(required), nil
}

// IsProjectOwner is independent of membership: a creator who left the team
// still owns the project.
func (c *Control) IsProjectOwner(ctx context.Context, userID, projectID string) (bool, error) {
	p, err := c.store.FindProject(ctx, projectID)
	if errors.Is(err, project.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return p.CreatorID == userID, nil
}

// IsProjectManager reports whether the user's active role is manager.
func (c *Control) IsProjectManager(ctx context.Context, userID, projectID string) (bool, error) {
	role, ok, err := c.RoleInProject(ctx, userID, projectID)
	if err != nil || !ok {
		return false, err
	}

	return role == membership.RoleManager, nil
}

// CanModifyProject is true for the owner and for active managers.
func (c *Control) CanModifyProject(ctx context.Context, userID, projectID string) (bool, error) {
	owner, err := c.IsProjectOwner(ctx, userID, projectID)
	if err != nil || owner {
		return owner, err
	}

	return c.IsProjectManager(ctx, userID, projectID)
}

// CanDeleteProject is owner only. No role grants it, manager included.
func (c *Control) CanDeleteProject(ctx context.Context, userID, projectID string) (bool, error) {
	return c.IsProjectOwner(ctx, userID, projectID)
}

// ListUserProjects returns the projects the user actively belongs to, most
// recently joined first.
func (c *Control) ListUserProjects(ctx context.Context, userID string) ([]project.UserProject, error) {
	rows, err := c.store.ListActiveMembershipsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]project.UserProject, 0, len(rows))
	for _, m := range rows {
		if !m.Active {
			continue
		}
		out = append(out, project.UserProject{
			ProjectID: m.ProjectID,
			Name:      m.ProjectName,
			Status:    project.Status(m.ProjectStatus),
			Role:      m.Role,
			JoinedAt:  m.JoinedAt,
			IsOwner:   m.CreatorID == userID,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].JoinedAt.After(out[j].JoinedAt)
	})

	return out, nil
}

// Authorize checks a requirement in one call. Someone who is neither an
// active member nor the owner always gets ErrNotAMember, whatever the
// requirement, so a denial does not reveal whether the project exists.
func (c *Control) Authorize(ctx context.Context, userID, projectID string, req Requirement) error {
	role, member, err := c.RoleInProject(ctx, userID, projectID)
	if err != nil {
		return err
	}

	switch req.kind {
	case kindMember:
		if member {
			return nil
		}
		return ErrNotAMember

	case kindRole:
		if member && role.AtLeast(req.role) && role.IsValid() {
			return nil
		}
		return c.deny(ctx, userID, projectID, member, &InsufficientRoleError{Required: req.role})

	case kindModify:
		if member && role == membership.RoleManager {
			return nil
		}
		owner, err := c.IsProjectOwner(ctx, userID, projectID)
		if err != nil {
			return err
		}
		if owner {
			return nil
		}
		if !member {
			return ErrNotAMember
		}
		return &InsufficientRoleError{Required: membership.RoleManager, OwnerAllowed: true}

	case kindOwner:
		owner, err := c.IsProjectOwner(ctx, userID, projectID)
		if err != nil {
			return err
		}
		if owner {
			return nil
		}
		if !member {
			return ErrNotAMember
		}
		return &InsufficientRoleError{}
	}

	return ErrNotAMember
}

// deny picks between the role error and the uniform denial. The owner
// already knows the project exists, so they get the specific message.
func (c *Control) deny(ctx context.Context, userID, projectID string, member bool, roleErr error) error {
	if member {
		return roleErr
	}

	owner, err := c.IsProjectOwner(ctx, userID, projectID)
	if err != nil {
		return err
	}
	if owner {
		return roleErr
	}

	return ErrNotAMember
}
