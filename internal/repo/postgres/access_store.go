package postgres

import (
	"context"

	"github.com/geocoder89/sitehub/internal/domain/membership"
	"github.com/geocoder89/sitehub/internal/domain/project"
)

// AccessStore is the read side access control needs, backed by the
// projects and memberships repositories.
type AccessStore struct {
	Projects    *ProjectsRepo
	Memberships *MembershipsRepo
}

func NewAccessStore(projects *ProjectsRepo, memberships *MembershipsRepo) *AccessStore {
	return &AccessStore{Projects: projects, Memberships: memberships}
}

func (s *AccessStore) FindActiveMemberships(ctx context.Context, projectID, userID string) ([]membership.Membership, error) {
	return s.Memberships.FindActiveMemberships(ctx, projectID, userID)
}

func (s *AccessStore) FindProject(ctx context.Context, projectID string) (project.Project, error) {
	return s.Projects.GetByID(ctx, projectID)
}

func (s *AccessStore) ListActiveMembershipsForUser(ctx context.Context, userID string) ([]membership.ProjectMembership, error) {
	return s.Memberships.ListActiveMembershipsForUser(ctx, userID)
}
