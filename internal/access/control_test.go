package access

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/geocoder89/sitehub/internal/domain/membership"
	"github.com/geocoder89/sitehub/internal/domain/project"
	"github.com/geocoder89/sitehub/internal/repo/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ctx   context.Context
	store *memory.Store
	ac    *Control
	logs  *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logs := &bytes.Buffer{}
	store := memory.NewStore()
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	return &fixture{
		ctx:   context.Background(),
		store: store,
		ac:    New(store, logger),
		logs:  logs,
	}
}

func (f *fixture) createProject(t *testing.T, creatorID, name string) project.Project {
	t.Helper()

	p, m := project.NewFromCreateRequest(project.CreateProjectRequest{Name: name}, creatorID)
	require.NoError(t, f.store.Create(f.ctx, p, m))
	return p
}

func (f *fixture) addMember(t *testing.T, projectID, userID string, role membership.Role) membership.Membership {
	t.Helper()

	m := membership.New(projectID, userID, role)
	require.NoError(t, f.store.Add(f.ctx, m))
	return m
}

func (f *fixture) ownMembership(t *testing.T, projectID, userID string) membership.Membership {
	t.Helper()

	rows, err := f.store.FindActiveMemberships(f.ctx, projectID, userID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	return rows[0]
}

func TestHasPermission_HierarchyIsMonotonic(t *testing.T) {
	f := newFixture(t)
	owner := uuid.NewString()
	p := f.createProject(t, owner, "Hierarchy")

	users := map[membership.Role]string{}
	for _, r := range membership.Roles() {
		id := uuid.NewString()
		users[r] = id
		f.addMember(t, p.ID, id, r)
	}

	for _, high := range membership.Roles() {
		for _, low := range membership.Roles() {
			if high.Level() <= low.Level() {
				continue
			}

			ok, err := f.ac.HasPermission(f.ctx, users[high], p.ID, low)
			require.NoError(t, err)
			assert.True(t, ok, "%s should satisfy %s", high, low)

			ok, err = f.ac.HasPermission(f.ctx, users[low], p.ID, high)
			require.NoError(t, err)
			assert.False(t, ok, "%s should not satisfy %s", low, high)
		}
	}
}

func TestHasPermission_EmptyRequirementMeansMember(t *testing.T) {
	f := newFixture(t)
	p := f.createProject(t, uuid.NewString(), "Default role")
	collaborator := uuid.NewString()
	f.addMember(t, p.ID, collaborator, membership.RoleCollaborator)

	ok, err := f.ac.HasPermission(f.ctx, collaborator, p.ID, "")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.ac.HasPermission(f.ctx, uuid.NewString(), p.ID, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnknownRole_NeverSatisfiesARequirement(t *testing.T) {
	f := newFixture(t)
	p := f.createProject(t, uuid.NewString(), "Unknown role")
	u := uuid.NewString()
	f.store.Insert(membership.Membership{
		ID: uuid.NewString(), ProjectID: p.ID, UserID: u,
		Role: "superintendent", JoinedAt: time.Now(), Active: true,
	})

	member, err := f.ac.IsProjectMember(f.ctx, u, p.ID)
	require.NoError(t, err)
	assert.True(t, member)

	ok, err := f.ac.HasPermission(f.ctx, u, p.ID, membership.RoleCollaborator)
	require.NoError(t, err)
	assert.False(t, ok)

	var roleErr *InsufficientRoleError
	err = f.ac.Authorize(f.ctx, u, p.ID, RequireRole(membership.RoleCollaborator))
	require.ErrorAs(t, err, &roleErr)
}

func TestNonMember_IsDeniedEverything(t *testing.T) {
	f := newFixture(t)
	p := f.createProject(t, uuid.NewString(), "Closed")
	stranger := uuid.NewString()

	member, err := f.ac.IsProjectMember(f.ctx, stranger, p.ID)
	require.NoError(t, err)
	assert.False(t, member)

	for _, r := range append(membership.Roles(), "") {
		ok, err := f.ac.HasPermission(f.ctx, stranger, p.ID, r)
		require.NoError(t, err)
		assert.False(t, ok, "role %q", r)
	}

	for _, req := range []Requirement{RequireMember, RequireModify, RequireOwner, RequireRole(membership.RoleCollaborator), RequireRole(membership.RoleManager)} {
		assert.ErrorIs(t, f.ac.Authorize(f.ctx, stranger, p.ID, req), ErrNotAMember, req.String())
	}
}

func TestAuthorize_MissingProjectLooksLikeNonMember(t *testing.T) {
	f := newFixture(t)
	u := uuid.NewString()
	missing := uuid.NewString()

	for _, req := range []Requirement{RequireMember, RequireModify, RequireOwner, RequireRole(membership.RoleEngineer)} {
		assert.ErrorIs(t, f.ac.Authorize(f.ctx, u, missing, req), ErrNotAMember, req.String())
	}

	owner, err := f.ac.IsProjectOwner(f.ctx, u, missing)
	require.NoError(t, err)
	assert.False(t, owner)
}

func TestOwner_CanDeleteWithInactiveOrAbsentMembership(t *testing.T) {
	f := newFixture(t)
	owner := uuid.NewString()
	p := f.createProject(t, owner, "Owner leaves")

	m := f.ownMembership(t, p.ID, owner)
	require.NoError(t, f.store.Remove(f.ctx, p.ID, m.ID))

	ok, err := f.ac.CanDeleteProject(f.ctx, owner, p.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.ac.CanModifyProject(f.ctx, owner, p.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.ac.Authorize(f.ctx, owner, p.ID, RequireOwner))
	require.NoError(t, f.ac.Authorize(f.ctx, owner, p.ID, RequireModify))
	assert.ErrorIs(t, f.ac.Authorize(f.ctx, owner, p.ID, RequireMember), ErrNotAMember)

	// A project seeded without any membership for its creator.
	creator := uuid.NewString()
	bare := project.Project{ID: uuid.NewString(), Name: "Bare", CreatorID: creator, Status: project.StatusPlanning}
	other := membership.New(bare.ID, uuid.NewString(), membership.RoleManager)
	require.NoError(t, f.store.Create(f.ctx, bare, other))

	ok, err = f.ac.CanDeleteProject(f.ctx, creator, bare.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestManagerNotOwner_CanModifyButNotDelete(t *testing.T) {
	f := newFixture(t)
	p := f.createProject(t, uuid.NewString(), "Managed")
	manager := uuid.NewString()
	f.addMember(t, p.ID, manager, membership.RoleManager)

	ok, err := f.ac.CanModifyProject(f.ctx, manager, p.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.ac.CanDeleteProject(f.ctx, manager, p.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	var roleErr *InsufficientRoleError
	err = f.ac.Authorize(f.ctx, manager, p.ID, RequireOwner)
	require.ErrorAs(t, err, &roleErr)
	assert.Equal(t, "must be the project owner", roleErr.Error())
}

func TestSoftRemoval_KeepsHistoricalRow(t *testing.T) {
	f := newFixture(t)
	p := f.createProject(t, uuid.NewString(), "History")
	u := uuid.NewString()
	m := f.addMember(t, p.ID, u, membership.RoleEngineer)

	before, err := f.store.CountMemberships(f.ctx, p.ID)
	require.NoError(t, err)

	require.NoError(t, f.store.Remove(f.ctx, p.ID, m.ID))

	member, err := f.ac.IsProjectMember(f.ctx, u, p.ID)
	require.NoError(t, err)
	assert.False(t, member)

	after, err := f.store.CountMemberships(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	removed, err := f.store.GetMember(f.ctx, p.ID, m.ID)
	require.NoError(t, err)
	assert.False(t, removed.Active)
	assert.NotNil(t, removed.LeftAt)

	// re-adding creates a new row rather than reviving the old one
	again := f.addMember(t, p.ID, u, membership.RoleTechnician)
	assert.NotEqual(t, m.ID, again.ID)

	total, err := f.store.CountMemberships(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, after+1, total)

	assert.ErrorIs(t, f.store.Remove(f.ctx, p.ID, m.ID), membership.ErrInactive)
}

func TestListUserProjects_ExcludesInactiveAndSortsByJoinedAt(t *testing.T) {
	f := newFixture(t)
	u := uuid.NewString()

	owned := f.createProject(t, u, "Owned")
	left := f.createProject(t, uuid.NewString(), "Left")
	joined := f.createProject(t, uuid.NewString(), "Joined")

	lm := f.addMember(t, left.ID, u, membership.RoleEngineer)
	require.NoError(t, f.store.Remove(f.ctx, left.ID, lm.ID))

	jm := membership.New(joined.ID, u, membership.RoleTechnician)
	jm.JoinedAt = time.Now().Add(time.Hour)
	require.NoError(t, f.store.Add(f.ctx, jm))

	list, err := f.ac.ListUserProjects(f.ctx, u)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, joined.ID, list[0].ProjectID)
	assert.Equal(t, membership.RoleTechnician, list[0].Role)
	assert.False(t, list[0].IsOwner)

	assert.Equal(t, owned.ID, list[1].ProjectID)
	assert.Equal(t, membership.RoleManager, list[1].Role)
	assert.True(t, list[1].IsOwner)

	for _, up := range list {
		assert.NotEqual(t, left.ID, up.ProjectID)
	}
}

func TestScenario_PromotionToManager(t *testing.T) {
	f := newFixture(t)
	a := uuid.NewString()
	b := uuid.NewString()
	p1 := f.createProject(t, a, "P1")

	owner, err := f.ac.IsProjectOwner(f.ctx, a, p1.ID)
	require.NoError(t, err)
	assert.True(t, owner)

	isManager, err := f.ac.IsProjectManager(f.ctx, a, p1.ID)
	require.NoError(t, err)
	assert.True(t, isManager)

	bm := f.addMember(t, p1.ID, b, membership.RoleTechnician)

	canModify := func() bool {
		ok, err := f.ac.CanModifyProject(f.ctx, b, p1.ID)
		require.NoError(t, err)
		return ok
	}

	assert.False(t, canModify())

	_, err = f.store.UpdateRole(f.ctx, p1.ID, bm.ID, membership.RoleEngineer)
	require.NoError(t, err)
	assert.False(t, canModify())

	var roleErr *InsufficientRoleError
	err = f.ac.Authorize(f.ctx, b, p1.ID, RequireModify)
	require.ErrorAs(t, err, &roleErr)
	assert.Equal(t, "must be at least manager or the project owner", roleErr.Error())

	_, err = f.store.UpdateRole(f.ctx, p1.ID, bm.ID, membership.RoleManager)
	require.NoError(t, err)
	assert.True(t, canModify())

	canDelete, err := f.ac.CanDeleteProject(f.ctx, b, p1.ID)
	require.NoError(t, err)
	assert.False(t, canDelete)
}

func TestScenario_DemotedOwnerKeepsOwnership(t *testing.T) {
	f := newFixture(t)
	a := uuid.NewString()
	p1 := f.createProject(t, a, "P1")

	am := f.ownMembership(t, p1.ID, a)
	_, err := f.store.UpdateRole(f.ctx, p1.ID, am.ID, membership.RoleCollaborator)
	require.NoError(t, err)

	isManager, err := f.ac.IsProjectManager(f.ctx, a, p1.ID)
	require.NoError(t, err)
	assert.False(t, isManager)

	ok, err := f.ac.CanModifyProject(f.ctx, a, p1.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.ac.CanDeleteProject(f.ctx, a, p1.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// ownership does not lift role requirements
	var roleErr *InsufficientRoleError
	err = f.ac.Authorize(f.ctx, a, p1.ID, RequireRole(membership.RoleEngineer))
	require.ErrorAs(t, err, &roleErr)
	assert.Equal(t, "must be at least engineer", roleErr.Error())
}

func TestRoleInProject_DuplicateActiveRowsResolveToLowest(t *testing.T) {
	f := newFixture(t)
	p := f.createProject(t, uuid.NewString(), "Corrupt")
	u := uuid.NewString()

	for _, r := range []membership.Role{membership.RoleManager, membership.RoleTechnician, membership.RoleEngineer} {
		f.store.Insert(membership.New(p.ID, u, r))
	}

	role, ok, err := f.ac.RoleInProject(f.ctx, u, p.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, membership.RoleTechnician, role)

	assert.Contains(t, f.logs.String(), "multiple_active_memberships")
	assert.Contains(t, f.logs.String(), `"level":"WARN"`)
	assert.Contains(t, f.logs.String(), u)
}

func TestStorageErrors_PropagateUnchanged(t *testing.T) {
	f := newFixture(t)
	p := f.createProject(t, uuid.NewString(), "Down")
	boom := errors.New("connection refused")
	f.store.Err = boom

	_, err := f.ac.IsProjectMember(f.ctx, "u", p.ID)
	assert.ErrorIs(t, err, boom)

	_, err = f.ac.IsProjectOwner(f.ctx, "u", p.ID)
	assert.ErrorIs(t, err, boom)

	_, err = f.ac.CanModifyProject(f.ctx, "u", p.ID)
	assert.ErrorIs(t, err, boom)

	_, err = f.ac.ListUserProjects(f.ctx, "u")
	assert.ErrorIs(t, err, boom)

	err = f.ac.Authorize(f.ctx, "u", p.ID, RequireMember)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotAMember)
}

func TestInsufficientRoleError_Messages(t *testing.T) {
	assert.Equal(t, "must be at least engineer", (&InsufficientRoleError{Required: membership.RoleEngineer}).Error())
	assert.Equal(t, "must be the project owner", (&InsufficientRoleError{}).Error())
	assert.Equal(t, "must be at least manager or the project owner",
		(&InsufficientRoleError{Required: membership.RoleManager, OwnerAllowed: true}).Error())

	assert.True(t, IsInsufficientRole(&InsufficientRoleError{}))
	assert.False(t, IsInsufficientRole(ErrNotAMember))
}

func TestRequireRole_EmptyDefaultsToCollaborator(t *testing.T) {
	assert.Equal(t, "role:collaborator", RequireRole("").String())
	assert.Equal(t, "modify", RequireModify.String())
}
