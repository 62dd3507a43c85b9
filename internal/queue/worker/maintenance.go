package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type StaleRequeuer interface {
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

type ExpiredTokenPurger interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type MaintenanceConfig struct {
	LockTTL time.Duration

	// cron specs, seconds field included
	RequeueSpec string
	PurgeSpec   string
}

// NewMaintenance schedules the housekeeping jobs: put jobs whose worker died
// mid-run back to pending, and drop expired refresh tokens. Start and Stop
// are the caller's.
func NewMaintenance(cfg MaintenanceConfig, requeuer StaleRequeuer, purger ExpiredTokenPurger, logger *slog.Logger) (*cron.Cron, error) {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if cfg.RequeueSpec == "" {
		cfg.RequeueSpec = "*/30 * * * * *"
	}
	if cfg.PurgeSpec == "" {
		cfg.PurgeSpec = "0 0 3 * * *"
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger)))

	if requeuer != nil {
		if _, err := c.AddFunc(cfg.RequeueSpec, func() {
			RequeueStale(context.Background(), requeuer, cfg.LockTTL, logger)
		}); err != nil {
			return nil, err
		}
	}

	if purger != nil {
		if _, err := c.AddFunc(cfg.PurgeSpec, func() {
			PurgeExpiredTokens(context.Background(), purger, logger)
		}); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func RequeueStale(ctx context.Context, r StaleRequeuer, lockTTL time.Duration, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	n, err := r.RequeueStaleProcessing(ctx, lockTTL)
	if err != nil {
		logger.Error("maintenance.requeue_stale_failed", "err", err)
		return
	}
	if n > 0 {
		logger.Warn("maintenance.requeued_stale_jobs", "count", n)
	}
}

func PurgeExpiredTokens(ctx context.Context, p ExpiredTokenPurger, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	n, err := p.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		logger.Error("maintenance.purge_tokens_failed", "err", err)
		return
	}
	logger.Info("maintenance.purged_refresh_tokens", "count", n)
}
