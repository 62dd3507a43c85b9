package dashboards

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/geocoder89/sitehub/internal/cache"
	"github.com/geocoder89/sitehub/internal/domain/budget"
	"github.com/geocoder89/sitehub/internal/domain/dashboard"
	"github.com/geocoder89/sitehub/internal/domain/project"
	"github.com/stretchr/testify/require"
)

const pid = "7b0e6f0e-8d8c-4a43-9d0a-3f5f2f7f6c11"

type fakeProjects struct {
	calls atomic.Int32
	err   error
}

func (f *fakeProjects) GetByID(_ context.Context, id string) (project.Project, error) {
	f.calls.Add(1)
	if f.err != nil {
		return project.Project{}, f.err
	}
	return project.Project{ID: id, Name: "Tower A", Status: project.StatusInProgress, Progress: 40}, nil
}

type fakeBudget struct{}

func (fakeBudget) Summary(_ context.Context, projectID string) (budget.Summary, error) {
	s := budget.Summary{ProjectID: projectID, TotalPlanned: 1000, TotalSpent: 250}
	s.Finalize()
	return s, nil
}

type fakeAgg struct {
	taskErr error
}

func (f fakeAgg) TaskCounts(context.Context, string) (dashboard.TaskCounts, error) {
	if f.taskErr != nil {
		return dashboard.TaskCounts{}, f.taskErr
	}
	return dashboard.TaskCounts{Total: 5, Todo: 2, InProgress: 1, Done: 2, Overdue: 1}, nil
}

func (fakeAgg) TeamSize(context.Context, string) (int, error) { return 4, nil }

func (fakeAgg) MaterialSummary(context.Context, string) (dashboard.MaterialSummary, error) {
	return dashboard.MaterialSummary{Items: 3, StockValue: 120.5}, nil
}

func (fakeAgg) DocumentCount(context.Context, string) (int, error) { return 7, nil }

type recorder struct {
	mu      sync.Mutex
	results []string
}

func (r *recorder) ObserveCache(_, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func TestBuild_CombinesAllAggregates(t *testing.T) {
	svc := NewService(&fakeProjects{}, fakeBudget{}, fakeAgg{}, nil, nil, nil)

	d, err := svc.Build(context.Background(), pid)
	require.NoError(t, err)

	require.Equal(t, "Tower A", d.Project.Name)
	require.Equal(t, 5, d.Tasks.Total)
	require.Equal(t, 1, d.Tasks.Overdue)
	require.Equal(t, 4, d.TeamSize)
	require.Equal(t, 750.0, d.Budget.Balance)
	require.Equal(t, 25.0, d.Budget.PercentSpent)
	require.Equal(t, 3, d.Materials.Items)
	require.Equal(t, 7, d.Documents)
	require.False(t, d.GeneratedAt.IsZero())
}

func TestBuild_FirstErrorWins(t *testing.T) {
	boom := errors.New("boom")
	svc := NewService(&fakeProjects{}, fakeBudget{}, fakeAgg{taskErr: boom}, nil, nil, nil)

	_, err := svc.Build(context.Background(), pid)
	require.ErrorIs(t, err, boom)
}

func TestBuild_MissingProject(t *testing.T) {
	svc := NewService(&fakeProjects{err: project.ErrNotFound}, fakeBudget{}, fakeAgg{}, nil, nil, nil)

	_, err := svc.Get(context.Background(), pid)
	require.ErrorIs(t, err, project.ErrNotFound)
}

func TestGet_CachesUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	projects := &fakeProjects{}
	rec := &recorder{}
	svc := NewService(projects, fakeBudget{}, fakeAgg{}, cache.NewMemory(16, time.Minute), rec, nil)

	first, err := svc.Get(ctx, pid)
	require.NoError(t, err)

	second, err := svc.Get(ctx, pid)
	require.NoError(t, err)
	require.Equal(t, int32(1), projects.calls.Load())
	require.Equal(t, first.Tasks, second.Tasks)

	require.NoError(t, svc.Invalidate(ctx, pid))
	_, err = svc.Get(ctx, pid)
	require.NoError(t, err)
	require.Equal(t, int32(2), projects.calls.Load())

	require.Equal(t, []string{"miss", "hit", "miss"}, rec.results)
}

func TestGet_RedisBackedCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := cache.NewRedisClient(cache.RedisConfig{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	projects := &fakeProjects{}
	svc := NewService(projects, fakeBudget{}, fakeAgg{}, cache.NewRedis(rdb, cache.RedisConfig{TTL: time.Minute}), nil, nil)

	_, err := svc.Get(ctx, pid)
	require.NoError(t, err)
	require.True(t, mr.Exists("sitehub:"+cacheKey(pid)))

	_, err = svc.Get(ctx, pid)
	require.NoError(t, err)
	require.Equal(t, int32(1), projects.calls.Load())
}

func TestGet_CacheOutageFallsBackToDatabase(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := cache.NewRedisClient(cache.RedisConfig{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	svc := NewService(&fakeProjects{}, fakeBudget{}, fakeAgg{}, cache.NewRedis(rdb, cache.RedisConfig{}), nil, nil)

	d, err := svc.Get(ctx, pid)
	require.NoError(t, err)
	require.Equal(t, 4, d.TeamSize)
}
