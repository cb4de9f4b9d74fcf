package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"lead_outreach_backend/internal/events"
	"lead_outreach_backend/internal/outreach"
	"lead_outreach_backend/internal/outreach/bulk"
	"lead_outreach_backend/internal/outreach/jobs"
	"lead_outreach_backend/internal/outreach/repository"
	"lead_outreach_backend/internal/scheduler"
	"lead_outreach_backend/platform/config"
	"lead_outreach_backend/platform/db"
	"lead_outreach_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	rdb, err := scheduler.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		panic("failed to initialize redis client: " + err.Error())
	}
	defer func() { _ = rdb.Close() }()

	eventBus := events.NewInMemoryBus(log)
	store := repository.New(pool)

	// One limiter paces campaign and sequence sends of this process alike.
	limiter := bulk.NewSendLimiter(cfg.GetDelayBetweenMessages())
	channels := outreach.NewChannelRegistry(cfg, log)
	services := outreach.NewServices(store, channels, eventBus, limiter, cfg, log)
	dispatcher := services.NewDispatcher(bulk.NewTokenBucketPacer(limiter), eventBus, cfg, log)

	registry := jobs.NewRegistry()

	client, err := scheduler.NewClient(cfg, cfg.GetMaxRetryAttempts())
	if err != nil {
		log.Error("failed to initialize task queue client", "error", err)
		panic("failed to initialize task queue client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	worker, err := scheduler.NewWorker(cfg, dispatcher, registry, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	sc := &scheduler.SchedulerContext{
		Scoring:         services.Scoring,
		Sequences:       services.Sequences,
		Lock:            scheduler.NewTaskLock(rdb),
		SequenceLockTTL: cfg.GetSequenceTickTimeout() + time.Minute,
		Log:             log,
	}
	triggers, err := scheduler.NewTriggers(sc, cfg, log)
	if err != nil {
		log.Error("invalid scheduler triggers", "error", err)
		panic("invalid scheduler triggers: " + err.Error())
	}

	relay := scheduler.NewCancelRelay(rdb, log)
	jobDispatcher := scheduler.NewCampaignJobDispatcher(store, client, log, 0)
	cleanup := scheduler.NewCampaignJobCleanup(store, log, 0, cfg.GetCampaignJobRetention())

	var wg sync.WaitGroup
	for _, run := range []func(context.Context){
		triggers.Run,
		jobDispatcher.Run,
		cleanup.Run,
		func(ctx context.Context) { relay.Listen(ctx, registry) },
	} {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(ctx)
		}(run)
	}

	worker.Run(ctx)
	wg.Wait()
	eventBus.Wait()
	log.Info("scheduler stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
