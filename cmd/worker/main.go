package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/geocoder89/sitehub/internal/cache"
	"github.com/geocoder89/sitehub/internal/config"
	"github.com/geocoder89/sitehub/internal/dashboards"
	"github.com/geocoder89/sitehub/internal/db"
	"github.com/geocoder89/sitehub/internal/jobs"
	"github.com/geocoder89/sitehub/internal/notifications"
	"github.com/geocoder89/sitehub/internal/observability"
	"github.com/geocoder89/sitehub/internal/queue/worker"
	"github.com/geocoder89/sitehub/internal/repo/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(); err != nil {
		slog.Error("worker exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	log := observability.NewLogger(observability.LoggerConfig{
		Service: "sitehub-worker",
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTelEnabled {
		shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
			ServiceName: "sitehub-worker",
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

	pool, err := db.NewPool(ctx, cfg.DBURL, db.WithMaxConns(cfg.DBMaxConns), db.WithAppName("sitehub-worker"))
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	// the API reads dashboards through the same cache, so invalidation must
	// hit Redis when it is configured
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
		store = cache.NewRedis(rdb, redisCfg)
	} else {
		store = cache.NewMemory(64, cfg.DashboardTTL)
	}

	jobsRepo := postgres.NewJobsRepo(pool, prom)
	projectsRepo := postgres.NewProjectsRepo(pool, prom)
	dash := dashboards.NewService(projectsRepo, postgres.NewBudgetRepo(pool, prom), postgres.NewDashboardRepo(pool, prom), store, prom, log)

	var notifier notifications.Notifier
	switch cfg.Notifier {
	case "log":
		notifier = notifications.NewLogNotifier(log)
	default:
		notifier = notifications.NewInboxNotifier(postgres.NewNotificationsRepo(pool, prom), log)
	}
	notifier = notifications.NewProtectedNotifier(notifier, notifications.ProtectedNotifierConfig{
		OnStateChange: func(from, to notifications.BreakerState) {
			log.Warn("notifier.breaker", "notifier", cfg.Notifier, "from", from.String(), "to", to.String())
			prom.SetBreakerState(cfg.Notifier, int(to))
		},
	})

	host, _ := os.Hostname()
	workerID := host + "-" + strconv.Itoa(os.Getpid())

	w := worker.New(worker.Config{
		WorkerID:     workerID,
		PollInterval: cfg.WorkerPollInterval,
		Concurrency:  cfg.WorkerConcurrency,
		JobTimeout:   cfg.WorkerJobTimeout,
	}, jobsRepo, prom, log)

	w.Handle(jobs.JobChatNotify, worker.ChatNotifyHandler(
		postgres.NewChatRepo(pool, prom, jobsRepo),
		postgres.NewMembershipsRepo(pool, prom),
		notifier,
		log,
	))
	w.Handle(jobs.JobRecalculateProgress, worker.RecalculateProgressHandler(projectsRepo, dash, log))

	maintenance, err := worker.NewMaintenance(worker.MaintenanceConfig{LockTTL: cfg.WorkerLockTTL}, jobsRepo, postgres.NewRefreshTokensRepo(pool, prom), log)
	if err != nil {
		return fmt.Errorf("schedule maintenance: %w", err)
	}
	maintenance.Start()
	defer func() {
		<-maintenance.Stop().Done()
	}()

	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerHealthPort),
		Handler:           w.HealthHandler(pool, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("worker health server starting", "port", cfg.WorkerHealthPort)
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("worker health server failed", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	runErr := w.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("worker health server shutdown failed", "err", err)
	}

	log.Info("worker shutdown complete")
	return runErr
}
