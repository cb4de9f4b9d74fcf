package scheduler

import (
	"context"
	"time"

	"lead_outreach_backend/platform/logger"
)

const (
	defaultCampaignJobCleanupInterval = time.Hour
	defaultCampaignJobRetention       = 30 * 24 * time.Hour
)

// FinishedJobPurger deletes terminal jobs that finished before a cutoff.
type FinishedJobPurger interface {
	DeleteFinishedJobsBefore(ctx context.Context, before time.Time) (int64, error)
}

// CampaignJobCleanup periodically removes old finished campaign jobs.
type CampaignJobCleanup struct {
	repo      FinishedJobPurger
	log       *logger.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

func NewCampaignJobCleanup(repo FinishedJobPurger, log *logger.Logger, interval, retention time.Duration) *CampaignJobCleanup {
	if interval <= 0 {
		interval = defaultCampaignJobCleanupInterval
	}
	if retention <= 0 {
		retention = defaultCampaignJobRetention
	}

	return &CampaignJobCleanup{
		repo:      repo,
		log:       log,
		interval:  interval,
		retention: retention,
		now:       time.Now,
	}
}

func (c *CampaignJobCleanup) Run(ctx context.Context) {
	if c == nil || c.repo == nil {
		return
	}

	c.cleanup(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *CampaignJobCleanup) cleanup(ctx context.Context) int64 {
	deleted, err := c.repo.DeleteFinishedJobsBefore(ctx, c.now().Add(-c.retention))
	if err != nil {
		c.log.Warn("campaign job cleanup failed", "error", err)
		return 0
	}

	if deleted > 0 {
		c.log.Info("campaign job cleanup deleted finished jobs", "deleted", deleted)
	}
	return deleted
}
