package scheduler

import (
	"context"
	"errors"
	"fmt"

	"lead_outreach_backend/internal/outreach/domain"
	"lead_outreach_backend/internal/outreach/jobs"
	"lead_outreach_backend/internal/outreach/repository"
	"lead_outreach_backend/platform/config"
	"lead_outreach_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// CampaignRunner executes one campaign job to completion.
type CampaignRunner interface {
	Run(ctx context.Context, jobID uuid.UUID) (domain.CampaignJob, error)
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	runner   CampaignRunner
	registry *jobs.Registry
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, runner CampaignRunner, registry *jobs.Registry, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 4
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		runner:   runner,
		registry: registry,
		log:      log,
	}

	mux.HandleFunc(TaskCampaignBulkSend, w.handleCampaignBulkSend)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleCampaignBulkSend(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCampaignBulkSendPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	return runCampaign(ctx, w.runner, w.registry, jobID)
}

// runCampaign runs jobID under a context the cancel relay can interrupt.
// Only an interrupted run is retried; failed jobs are already terminal.
func runCampaign(ctx context.Context, runner CampaignRunner, registry *jobs.Registry, jobID uuid.UUID) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if registry != nil {
		release := registry.Track(jobID, cancel)
		defer release()
	}

	job, err := runner.Run(runCtx, jobID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	case job.Status.IsTerminal():
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	default:
		return err
	}
}
