package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lead_outreach_backend/internal/events"
	apphttp "lead_outreach_backend/internal/http"
	"lead_outreach_backend/internal/http/router"
	"lead_outreach_backend/internal/outreach"
	"lead_outreach_backend/internal/outreach/bulk"
	"lead_outreach_backend/internal/outreach/jobs"
	"lead_outreach_backend/internal/outreach/repository"
	"lead_outreach_backend/internal/outreach/seed"
	"lead_outreach_backend/internal/scheduler"
	"lead_outreach_backend/platform/config"
	"lead_outreach_backend/platform/db"
	"lead_outreach_backend/platform/logger"
	"lead_outreach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if err := cfg.RequireJWT(); err != nil {
		panic(err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

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
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool, repository.Migrations(), log)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	rdb, closeRedis := initRedis(cfg, log)
	if closeRedis != nil {
		defer closeRedis()
	}

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()
	store := repository.New(pool)

	// ========================================================================
	// Outreach Engines
	// ========================================================================

	channels := outreach.NewChannelRegistry(cfg, log)
	limiter := bulk.NewSendLimiter(cfg.GetDelayBetweenMessages())
	services := outreach.NewServices(store, channels, eventBus, limiter, cfg, log)

	loadSeed(ctx, cfg, store, log)

	maintenance := &scheduler.SchedulerContext{
		Scoring:         services.Scoring,
		Sequences:       services.Sequences,
		SequenceLockTTL: cfg.GetSequenceTickTimeout() + time.Minute,
		Log:             log,
	}

	var broadcaster jobs.CancelBroadcaster
	if rdb != nil {
		maintenance.Lock = scheduler.NewTaskLock(rdb)
		broadcaster = scheduler.NewCancelRelay(rdb, log)
	}

	tracker := jobs.NewTracker(store, jobs.NewRegistry(), broadcaster, jobs.Pacing{
		BatchSize:    cfg.GetMessagesPerBatch(),
		MessageDelay: cfg.GetDelayBetweenMessages(),
		BatchDelay:   cfg.GetDelayBetweenBatches(),
	}, log)

	outreachModule := outreach.NewModule(services, tracker, maintenance, val, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		EventBus: eventBus,
		Modules:  []apphttp.Module{outreachModule},
	}

	srv := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initRedis connects the cancel relay and task lock. Without Redis the API
// still serves, but cancels only reach runs in this process and manual task
// triggers are not serialized with the worker.
func initRedis(cfg config.SchedulerConfig, log *logger.Logger) (*redis.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; cancel relay and task lock disabled")
		return nil, nil
	}

	rdb, err := scheduler.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		return nil, nil
	}

	return rdb, func() {
		_ = rdb.Close()
	}
}

func loadSeed(ctx context.Context, cfg config.SeedConfig, store seed.Store, log *logger.Logger) {
	path := cfg.GetSeedFile()
	if path == "" {
		return
	}

	loader := seed.NewLoader(path, store, log)
	if _, err := loader.Load(ctx); err != nil {
		log.Error("failed to load outreach catalog", "path", path, "error", err)
		panic("failed to load outreach catalog: " + err.Error())
	}

	if cfg.GetSeedWatch() {
		go func() {
			if err := loader.Watch(ctx); err != nil {
				log.Error("outreach catalog watcher stopped", "error", err)
			}
		}()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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
