package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/sitehub/internal/access"
	"github.com/geocoder89/sitehub/internal/auth"
	"github.com/geocoder89/sitehub/internal/cache"
	"github.com/geocoder89/sitehub/internal/config"
	"github.com/geocoder89/sitehub/internal/dashboards"
	apphttp "github.com/geocoder89/sitehub/internal/http"
	"github.com/geocoder89/sitehub/internal/http/handlers"
	"github.com/geocoder89/sitehub/internal/jobs"
	"github.com/geocoder89/sitehub/internal/notifications"
	"github.com/geocoder89/sitehub/internal/queue/worker"
	"github.com/geocoder89/sitehub/internal/repo/postgres"
	"github.com/geocoder89/sitehub/internal/testutil/pgtest"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stack struct {
	t      *testing.T
	router *gin.Engine
	worker *worker.Worker
}

func newStack(t *testing.T, pool *pgxpool.Pool) stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{Env: "test", MaxBodyBytes: 1 << 20}

	jobsRepo := postgres.NewJobsRepo(pool, nil)
	projects := postgres.NewProjectsRepo(pool, nil)
	memberships := postgres.NewMembershipsRepo(pool, nil)
	budget := postgres.NewBudgetRepo(pool, nil)
	chatRepo := postgres.NewChatRepo(pool, nil, jobsRepo)
	inbox := postgres.NewNotificationsRepo(pool, nil)
	dash := dashboards.NewService(projects, budget, postgres.NewDashboardRepo(pool, nil), cache.NewMemory(16, time.Minute), nil, logger)

	router := apphttp.NewRouter(apphttp.Deps{
		Config: cfg,
		Log:    logger,
		JWT:    auth.NewManager("integration-secret", 15*time.Minute, time.Hour),
		Access: access.New(postgres.NewAccessStore(projects, memberships), logger),
		Health: map[string]handlers.Pinger{"postgres": pool},

		Users:         postgres.NewUsersRepo(pool, nil),
		Sessions:      postgres.NewRefreshTokensRepo(pool, nil),
		Projects:      projects,
		Members:       memberships,
		Tasks:         postgres.NewTasksRepo(pool, nil, jobsRepo),
		Budget:        budget,
		Materials:     postgres.NewMaterialsRepo(pool, nil),
		Documents:     postgres.NewDocumentsRepo(pool, nil),
		Chat:          chatRepo,
		Dashboards:    dash,
		Notifications: inbox,
		Jobs:          jobsRepo,
		AdminJobs:     jobsRepo,
	})

	w := worker.New(worker.Config{WorkerID: "integration"}, jobsRepo, nil, logger)
	w.Handle(jobs.JobChatNotify, worker.ChatNotifyHandler(chatRepo, memberships, notifications.NewInboxNotifier(inbox, logger), logger))
	w.Handle(jobs.JobRecalculateProgress, worker.RecalculateProgressHandler(projects, dash, logger))

	return stack{t: t, router: router, worker: w}
}

func (s stack) do(token, method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()

	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		rdr = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type session struct {
	token  string
	userID string
}

func (s stack) signUp(name string) session {
	s.t.Helper()

	w := s.do("", http.MethodPost, "/auth/signup", map[string]any{
		"email":    name + "-" + uuid.NewString()[:8] + "@site.test",
		"password": "correct-horse-battery",
		"name":     name,
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	var out struct {
		AccessToken string `json:"accessToken"`
		User        struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &out))
	return session{token: out.AccessToken, userID: out.User.ID}
}

// runQueue processes jobs until the queue is empty.
func (s stack) runQueue() {
	s.t.Helper()
	for i := 0; i < 50; i++ {
		processed, err := s.worker.ProcessOne(context.Background())
		require.NoError(s.t, err)
		if !processed {
			return
		}
	}
	s.t.Fatal("queue did not drain")
}

func decodeInto[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestPipeline_ChatFanOutAndProgress(t *testing.T) {
	pool := pgtest.Pool(t)
	s := newStack(t, pool)

	alice := s.signUp("alice")
	bob := s.signUp("bob")
	carol := s.signUp("carol")

	w := s.do(alice.token, http.MethodPost, "/projects", map[string]any{"name": "Harbour Bridge"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	pid := decodeInto[struct {
		ID string `json:"id"`
	}](t, w).ID
	base := "/projects/" + pid

	for _, u := range []session{bob, carol} {
		w = s.do(alice.token, http.MethodPost, base+"/members", map[string]any{"userId": u.userID, "role": "technician"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	// outsiders are turned away before any handler runs
	outsider := s.signUp("dave")
	assert.Equal(t, http.StatusForbidden, s.do(outsider.token, http.MethodPost, base+"/chat/messages", map[string]any{"body": "hi"}).Code)

	w = s.do(bob.token, http.MethodPost, base+"/chat/messages", map[string]any{"body": "Concrete arrives at 7"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(alice.token, http.MethodPost, base+"/tasks", map[string]any{"title": "Pour slab", "status": "done"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.do(alice.token, http.MethodPost, base+"/tasks", map[string]any{"title": "Frame walls"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	s.runQueue()

	type inbox struct {
		Count int `json:"count"`
		Items []struct {
			ID        string `json:"id"`
			ProjectID string `json:"projectId"`
			Message   string `json:"message"`
		} `json:"items"`
	}

	got := decodeInto[inbox](t, s.do(alice.token, http.MethodGet, "/notifications", nil))
	require.Equal(t, 1, got.Count)
	assert.Equal(t, pid, got.Items[0].ProjectID)
	assert.Equal(t, "New message: Concrete arrives at 7", got.Items[0].Message)

	assert.Equal(t, 1, decodeInto[inbox](t, s.do(carol.token, http.MethodGet, "/notifications", nil)).Count)
	assert.Equal(t, 0, decodeInto[inbox](t, s.do(bob.token, http.MethodGet, "/notifications", nil)).Count)

	// only the recipient may mark it read
	noteID := got.Items[0].ID
	assert.Equal(t, http.StatusNotFound, s.do(carol.token, http.MethodPost, "/notifications/"+noteID+"/read", nil).Code)
	assert.Equal(t, http.StatusNoContent, s.do(alice.token, http.MethodPost, "/notifications/"+noteID+"/read", nil).Code)

	proj := decodeInto[struct {
		Progress float64 `json:"progress"`
	}](t, s.do(bob.token, http.MethodGet, base, nil))
	assert.InDelta(t, 50.0, proj.Progress, 0.01)
}

func TestPipeline_RemovedMemberIsLockedOut(t *testing.T) {
	pool := pgtest.Pool(t)
	s := newStack(t, pool)

	alice := s.signUp("alice")
	bob := s.signUp("bob")

	w := s.do(alice.token, http.MethodPost, "/projects", map[string]any{"name": "Water Tower"})
	require.Equal(t, http.StatusCreated, w.Code)
	pid := decodeInto[struct {
		ID string `json:"id"`
	}](t, w).ID
	base := "/projects/" + pid

	w = s.do(alice.token, http.MethodPost, base+"/members", map[string]any{"userId": bob.userID, "role": "manager"})
	require.Equal(t, http.StatusCreated, w.Code)
	mid := decodeInto[struct {
		ID string `json:"id"`
	}](t, w).ID

	assert.Equal(t, http.StatusOK, s.do(bob.token, http.MethodPut, base, map[string]any{"name": "Water Tower II"}).Code)

	require.Equal(t, http.StatusNoContent, s.do(alice.token, http.MethodDelete, base+"/members/"+mid, nil).Code)

	w = s.do(bob.token, http.MethodPut, base, map[string]any{"name": "Water Tower III"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	members := decodeInto[struct {
		Items []struct {
			ID     string `json:"id"`
			Active bool   `json:"active"`
		} `json:"items"`
	}](t, s.do(alice.token, http.MethodGet, base+"/members?active=false", nil))
	require.Len(t, members.Items, 1)
	assert.Equal(t, mid, members.Items[0].ID)
	assert.False(t, members.Items[0].Active)
}
