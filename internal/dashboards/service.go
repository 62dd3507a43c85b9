// Package dashboards builds the per-project dashboard from several
// aggregate queries and caches the result for a short time.
package dashboards

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/geocoder89/sitehub/internal/cache"
	"github.com/geocoder89/sitehub/internal/domain/budget"
	"github.com/geocoder89/sitehub/internal/domain/dashboard"
	"github.com/geocoder89/sitehub/internal/domain/project"
	"golang.org/x/sync/errgroup"
)

type ProjectReader interface {
	GetByID(ctx context.Context, id string) (project.Project, error)
}

type BudgetSummarizer interface {
	Summary(ctx context.Context, projectID string) (budget.Summary, error)
}

type Aggregates interface {
	TaskCounts(ctx context.Context, projectID string) (dashboard.TaskCounts, error)
	TeamSize(ctx context.Context, projectID string) (int, error)
	MaterialSummary(ctx context.Context, projectID string) (dashboard.MaterialSummary, error)
	DocumentCount(ctx context.Context, projectID string) (int, error)
}

type CacheRecorder interface {
	ObserveCache(cache, result string)
}

type Service struct {
	projects ProjectReader
	budget   BudgetSummarizer
	agg      Aggregates
	cache    cache.Store
	metrics  CacheRecorder
	log      *slog.Logger
	now      func() time.Time
}

func NewService(projects ProjectReader, budget BudgetSummarizer, agg Aggregates, store cache.Store, metrics CacheRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		projects: projects,
		budget:   budget,
		agg:      agg,
		cache:    store,
		metrics:  metrics,
		log:      logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func cacheKey(projectID string) string {
	return "dashboard:v1:" + projectID
}

// Get returns the cached dashboard when present. Cache failures are logged
// and the dashboard is rebuilt from the database.
func (s *Service) Get(ctx context.Context, projectID string) (dashboard.Dashboard, error) {
	if d, ok := s.fromCache(ctx, projectID); ok {
		return d, nil
	}

	d, err := s.Build(ctx, projectID)
	if err != nil {
		return dashboard.Dashboard{}, err
	}

	if s.cache != nil {
		if b, err := json.Marshal(d); err == nil {
			if err := s.cache.Set(ctx, cacheKey(projectID), b); err != nil {
				s.log.WarnContext(ctx, "dashboard_cache_set_failed", "project_id", projectID, "err", err)
			}
		}
	}

	return d, nil
}

func (s *Service) fromCache(ctx context.Context, projectID string) (dashboard.Dashboard, bool) {
	if s.cache == nil {
		return dashboard.Dashboard{}, false
	}

	b, ok, err := s.cache.Get(ctx, cacheKey(projectID))
	if err != nil {
		s.observe("error")
		s.log.WarnContext(ctx, "dashboard_cache_get_failed", "project_id", projectID, "err", err)
		return dashboard.Dashboard{}, false
	}
	if !ok {
		s.observe("miss")
		return dashboard.Dashboard{}, false
	}

	var d dashboard.Dashboard
	if err := json.Unmarshal(b, &d); err != nil {
		s.observe("error")
		return dashboard.Dashboard{}, false
	}

	s.observe("hit")
	return d, true
}

func (s *Service) observe(result string) {
	if s.metrics != nil {
		s.metrics.ObserveCache(s.cache.Name(), result)
	}
}

// Build runs every aggregate concurrently. The first failure cancels the rest.
func (s *Service) Build(ctx context.Context, projectID string) (dashboard.Dashboard, error) {
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return dashboard.Dashboard{}, err
	}

	var d dashboard.Dashboard
	eg, gctx := errgroup.WithContext(ctx)

	eg.Go(func() (err error) {
		d.Tasks, err = s.agg.TaskCounts(gctx, projectID)
		return err
	})
	eg.Go(func() (err error) {
		d.TeamSize, err = s.agg.TeamSize(gctx, projectID)
		return err
	})
	eg.Go(func() (err error) {
		d.Budget, err = s.budget.Summary(gctx, projectID)
		return err
	})
	eg.Go(func() (err error) {
		d.Materials, err = s.agg.MaterialSummary(gctx, projectID)
		return err
	})
	eg.Go(func() (err error) {
		d.Documents, err = s.agg.DocumentCount(gctx, projectID)
		return err
	})

	if err := eg.Wait(); err != nil {
		return dashboard.Dashboard{}, err
	}

	d.Project = dashboard.SummarizeProject(p)
	d.GeneratedAt = s.now()
	return d, nil
}

// Invalidate drops the cached dashboard of a project.
func (s *Service) Invalidate(ctx context.Context, projectID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, cacheKey(projectID))
}
