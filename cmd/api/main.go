package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/sitehub/internal/access"
	"github.com/geocoder89/sitehub/internal/auth"
	"github.com/geocoder89/sitehub/internal/cache"
	"github.com/geocoder89/sitehub/internal/config"
	"github.com/geocoder89/sitehub/internal/dashboards"
	"github.com/geocoder89/sitehub/internal/db"
	httpx "github.com/geocoder89/sitehub/internal/http"
	"github.com/geocoder89/sitehub/internal/http/handlers"
	"github.com/geocoder89/sitehub/internal/observability"
	"github.com/geocoder89/sitehub/internal/repo/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(); err != nil {
		slog.Error("api exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	log := observability.NewLogger(observability.LoggerConfig{
		Service: "sitehub-api",
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTelEnabled {
		shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
			ServiceName: "sitehub-api",
			Environment: cfg.Env,
			Endpoint:    cfg.OTelEndpoint,
			SampleRatio: cfg.OTelSampleRatio,
		})
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracer(sctx)
		}()
	}

	if cfg.RunMigrations {
		if err := db.Migrate(cfg.DBURL, log); err != nil {
			return err
		}
	}

	pool, err := db.NewPool(ctx, cfg.DBURL, db.WithMaxConns(cfg.DBMaxConns), db.WithAppName("sitehub-api"))
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	if err := db.EnsureAdminUser(ctx, pool, cfg, log); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	health := map[string]handlers.Pinger{"postgres": pool}

	var store cache.Store
	if cfg.RedisAddr != "" {
		redisCfg := cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.DashboardTTL,
		}
		rdb := cache.NewRedisClient(redisCfg)
		defer rdb.Close()

		r := cache.NewRedis(rdb, redisCfg)
		store = r
		health["redis"] = r
		log.Info("dashboard cache", "backend", "redis", "addr", cfg.RedisAddr)
	} else {
		store = cache.NewMemory(1024, cfg.DashboardTTL)
		log.Info("dashboard cache", "backend", "memory")
	}

	jobsRepo := postgres.NewJobsRepo(pool, prom)
	projectsRepo := postgres.NewProjectsRepo(pool, prom)
	membershipsRepo := postgres.NewMembershipsRepo(pool, prom)
	budgetRepo := postgres.NewBudgetRepo(pool, prom)

	dash := dashboards.NewService(
		projectsRepo,
		budgetRepo,
		postgres.NewDashboardRepo(pool, prom),
		store,
		prom,
		log,
	)

	router := httpx.NewRouter(httpx.Deps{
		Config:   cfg,
		Log:      log,
		Prom:     prom,
		Gatherer: reg,

		JWT:    auth.NewManager(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL),
		Access: access.New(postgres.NewAccessStore(projectsRepo, membershipsRepo), log),
		Health: health,

		Users:         postgres.NewUsersRepo(pool, prom),
		Sessions:      postgres.NewRefreshTokensRepo(pool, prom),
		Projects:      projectsRepo,
		Members:       membershipsRepo,
		Tasks:         postgres.NewTasksRepo(pool, prom, jobsRepo),
		Budget:        budgetRepo,
		Materials:     postgres.NewMaterialsRepo(pool, prom),
		Documents:     postgres.NewDocumentsRepo(pool, prom),
		Chat:          postgres.NewChatRepo(pool, prom, jobsRepo),
		Dashboards:    dash,
		Notifications: postgres.NewNotificationsRepo(pool, prom),
		Jobs:          jobsRepo,
		AdminJobs:     jobsRepo,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}
