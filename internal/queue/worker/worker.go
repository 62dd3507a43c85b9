package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/sitehub/internal/domain/job"
	"github.com/geocoder89/sitehub/internal/jobs"
	"github.com/geocoder89/sitehub/internal/observability"
	"golang.org/x/sync/errgroup"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
}

// Handler runs one claimed job. Returning ErrPermanent (or wrapping it)
// fails the job without retrying.
type Handler func(ctx context.Context, j job.Job) error

var ErrPermanent = errors.New("permanent job failure")

type Config struct {
	WorkerID     string
	PollInterval time.Duration
	Concurrency  int
	JobTimeout   time.Duration
}

type Worker struct {
	cfg      Config
	repo     JobsRepository
	handlers map[jobs.JobType]Handler
	prom     *observability.Prom
	log      *slog.Logger

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, repo JobsRepository, prom *observability.Prom, logger *slog.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		cfg:      cfg,
		repo:     repo,
		handlers: make(map[jobs.JobType]Handler),
		prom:     prom,
		log:      logger.With("worker_id", cfg.WorkerID),
	}
}

// Handle registers h for t. Must be called before Run.
func (w *Worker) Handle(t jobs.JobType, h Handler) {
	w.handlers[t] = h
}

// Run polls with cfg.Concurrency loops until ctx is cancelled. In-flight
// jobs finish before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	defer w.setReady(false)

	w.log.Info("worker.start",
		"concurrency", w.cfg.Concurrency,
		"poll_interval", w.cfg.PollInterval.String(),
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		g.Go(func() error {
			w.loop(gctx)
			return nil
		})
	}

	err := g.Wait()
	w.log.Info("worker.stop")
	return err
}

func (w *Worker) loop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		// drain while there is work, then wait for the next tick
		for {
			if ctx.Err() != nil {
				return
			}
			processed, err := w.ProcessOne(ctx)
			if err != nil {
				w.log.Error("worker.process_error", "err", err)
			}
			if !processed || err != nil {
				break
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop flips readiness so /readyz starts failing before the context is
// cancelled.
func (w *Worker) Stop() {
	w.setReady(false)
}

func (w *Worker) Ready() bool {
	w.readyMu.RLock()
	defer w.readyMu.RUnlock()
	return w.ready
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}
