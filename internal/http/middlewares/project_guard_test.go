package middlewares

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/sitehub/internal/access"
	"github.com/geocoder89/sitehub/internal/domain/membership"
	"github.com/geocoder89/sitehub/internal/domain/project"
	"github.com/geocoder89/sitehub/internal/repo/memory"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuthorizer struct {
	fn    func(ctx context.Context, userID, projectID string, req access.Requirement) error
	calls int
}

func (f *fakeAuthorizer) Authorize(ctx context.Context, userID, projectID string, req access.Requirement) error {
	f.calls++
	return f.fn(ctx, userID, projectID, req)
}

type recordedDecision struct {
	requirement string
	outcome     string
}

type fakeRecorder struct {
	decisions []recordedDecision
}

func (r *fakeRecorder) ObserveAccess(requirement, outcome string) {
	r.decisions = append(r.decisions, recordedDecision{requirement, outcome})
}

type errorBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

func newGuardRouter(guard gin.HandlerFunc, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set(CtxUserID, userID)
		}
		c.Next()
	})
	r.POST("/projects/:projectId/things", guard, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"projectId": c.GetString(CtxProjectID)})
	})
	return r
}

func doPost(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestProjectGuard_Allowed(t *testing.T) {
	pid := uuid.NewString()
	authz := &fakeAuthorizer{fn: func(_ context.Context, userID, projectID string, req access.Requirement) error {
		assert.Equal(t, "u1", userID)
		assert.Equal(t, pid, projectID)
		assert.Equal(t, "role:engineer", req.String())
		return nil
	}}
	rec := &fakeRecorder{}
	g := NewProjectGuard(authz, rec, nil)

	w := doPost(newGuardRouter(g.RequireRole(membership.RoleEngineer), "u1"), "/projects/"+pid+"/things")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), pid)
	assert.Equal(t, []recordedDecision{{"role:engineer", "allowed"}}, rec.decisions)
}

func TestProjectGuard_NotAMemberIsUniform(t *testing.T) {
	authz := &fakeAuthorizer{fn: func(context.Context, string, string, access.Requirement) error {
		return access.ErrNotAMember
	}}
	rec := &fakeRecorder{}
	g := NewProjectGuard(authz, rec, nil)

	w := doPost(newGuardRouter(g.RequireModify(), "u1"), "/projects/"+uuid.NewString()+"/things")

	require.Equal(t, http.StatusForbidden, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "forbidden", body.Error.Code)
	assert.Equal(t, "You do not have access to this project", body.Error.Message)
	assert.NotEmpty(t, body.Error.RequestID)
	assert.Equal(t, []recordedDecision{{"modify", "not_member"}}, rec.decisions)
}

func TestProjectGuard_InsufficientRoleNamesTheRole(t *testing.T) {
	authz := &fakeAuthorizer{fn: func(context.Context, string, string, access.Requirement) error {
		return &access.InsufficientRoleError{Required: membership.RoleManager}
	}}
	g := NewProjectGuard(authz, nil, nil)

	w := doPost(newGuardRouter(g.RequireRole(membership.RoleManager), "u1"), "/projects/"+uuid.NewString()+"/things")

	require.Equal(t, http.StatusForbidden, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "insufficient_role", body.Error.Code)
	assert.Equal(t, "must be at least manager", body.Error.Message)
}

func TestProjectGuard_StorageErrorIs500(t *testing.T) {
	authz := &fakeAuthorizer{fn: func(context.Context, string, string, access.Requirement) error {
		return errors.New("dial tcp: connection refused")
	}}
	rec := &fakeRecorder{}
	g := NewProjectGuard(authz, rec, nil)

	w := doPost(newGuardRouter(g.RequireMember(), "u1"), "/projects/"+uuid.NewString()+"/things")

	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "internal_error", body.Error.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
	assert.Equal(t, []recordedDecision{{"member", "error"}}, rec.decisions)
}

func TestProjectGuard_MissingIdentityIs401(t *testing.T) {
	authz := &fakeAuthorizer{fn: func(context.Context, string, string, access.Requirement) error { return nil }}
	g := NewProjectGuard(authz, nil, nil)

	w := doPost(newGuardRouter(g.RequireMember(), ""), "/projects/"+uuid.NewString()+"/things")

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, authz.calls)
}

func TestProjectGuard_MalformedProjectIDIsUniformDenial(t *testing.T) {
	authz := &fakeAuthorizer{fn: func(context.Context, string, string, access.Requirement) error { return nil }}
	g := NewProjectGuard(authz, nil, nil)

	w := doPost(newGuardRouter(g.RequireOwner(), "u1"), "/projects/not-a-uuid/things")

	require.Equal(t, http.StatusForbidden, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "forbidden", body.Error.Code)
	assert.Equal(t, "You do not have access to this project", body.Error.Message)
	assert.Equal(t, 0, authz.calls)
}

func TestProjectGuard_WithAccessControl(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ac := access.New(store, nil)

	owner := uuid.NewString()
	tech := uuid.NewString()
	stranger := uuid.NewString()

	p, m := project.NewFromCreateRequest(project.CreateProjectRequest{Name: "Bridge"}, owner)
	require.NoError(t, store.Create(ctx, p, m))
	require.NoError(t, store.Add(ctx, membership.New(p.ID, tech, membership.RoleTechnician)))

	g := NewProjectGuard(ac, nil, nil)
	path := "/projects/" + p.ID + "/things"

	cases := []struct {
		name    string
		guard   gin.HandlerFunc
		user    string
		status  int
		code    string
		message string
	}{
		{"owner deletes", g.RequireOwner(), owner, http.StatusOK, "", ""},
		{"technician cannot delete", g.RequireOwner(), tech, http.StatusForbidden, "insufficient_role", "must be the project owner"},
		{"technician cannot modify", g.RequireModify(), tech, http.StatusForbidden, "insufficient_role", "must be at least manager or the project owner"},
		{"technician creates tasks", g.RequireRole(membership.RoleTechnician), tech, http.StatusOK, "", ""},
		{"technician cannot delete tasks", g.RequireRole(membership.RoleEngineer), tech, http.StatusForbidden, "insufficient_role", "must be at least engineer"},
		{"stranger reads", g.RequireMember(), stranger, http.StatusForbidden, "forbidden", "You do not have access to this project"},
		{"stranger deletes", g.RequireOwner(), stranger, http.StatusForbidden, "forbidden", "You do not have access to this project"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doPost(newGuardRouter(tc.guard, tc.user), path)
			require.Equal(t, tc.status, w.Code, w.Body.String())
			if tc.code != "" {
				body := decodeError(t, w)
				assert.Equal(t, tc.code, body.Error.Code)
				assert.Equal(t, tc.message, body.Error.Message)
			}
		})
	}

	// a project that does not exist answers exactly like one the user cannot see
	missing := doPost(newGuardRouter(g.RequireMember(), stranger), "/projects/"+uuid.NewString()+"/things")
	hidden := doPost(newGuardRouter(g.RequireMember(), stranger), path)
	assert.Equal(t, hidden.Code, missing.Code)
	assert.Equal(t, decodeError(t, hidden).Error.Message, decodeError(t, missing).Error.Message)
}
