package scheduler

import (
	"context"
	"time"

	"lead_outreach_backend/internal/outreach/domain"
	"lead_outreach_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	defaultDispatchInterval = 2 * time.Second
	dispatchBatch           = 50
)

// JobOutbox is the claim side of the campaign job table.
type JobOutbox interface {
	ClaimPendingJobs(ctx context.Context, limit int) ([]domain.CampaignJob, error)
	ReleaseJobClaim(ctx context.Context, id uuid.UUID) error
}

// CampaignJobDispatcher moves PENDING jobs written by the API onto the task queue.
type CampaignJobDispatcher struct {
	outbox   JobOutbox
	enqueuer CampaignEnqueuer
	log      *logger.Logger
	interval time.Duration
}

func NewCampaignJobDispatcher(outbox JobOutbox, enqueuer CampaignEnqueuer, log *logger.Logger, interval time.Duration) *CampaignJobDispatcher {
	if interval <= 0 {
		interval = defaultDispatchInterval
	}
	return &CampaignJobDispatcher{outbox: outbox, enqueuer: enqueuer, log: log, interval: interval}
}

func (d *CampaignJobDispatcher) Run(ctx context.Context) {
	if d == nil || d.outbox == nil || d.enqueuer == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		d.dispatch(ctx)
	}
}

// dispatch claims one batch and enqueues it. A job whose enqueue fails is
// released so the next tick retries it.
func (d *CampaignJobDispatcher) dispatch(ctx context.Context) int {
	records, err := d.outbox.ClaimPendingJobs(ctx, dispatchBatch)
	if err != nil {
		d.log.Warn("campaign job claim failed", "error", err)
		return 0
	}

	enqueued := 0
	for _, job := range records {
		if err := d.enqueuer.EnqueueCampaignJob(ctx, job.ID); err != nil {
			d.log.Warn("campaign job enqueue failed", "jobId", job.ID, "error", err)
			if err := d.outbox.ReleaseJobClaim(context.WithoutCancel(ctx), job.ID); err != nil {
				d.log.Error("campaign job release failed", "jobId", job.ID, "error", err)
			}
			continue
		}
		enqueued++
		d.log.Info("campaign job enqueued", "jobId", job.ID, "leads", job.TotalItems)
	}
	return enqueued
}
