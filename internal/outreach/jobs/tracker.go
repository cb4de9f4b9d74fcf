// Package jobs creates campaign jobs, reports their progress and cancels them.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lead_outreach_backend/internal/outreach/domain"
	"lead_outreach_backend/internal/outreach/repository"
	"lead_outreach_backend/platform/apperr"
	"lead_outreach_backend/platform/logger"

	"github.com/google/uuid"
)

// MaxLeadsPerJob bounds the size of one campaign.
const MaxLeadsPerJob = 10000

// Store is the persistence the tracker needs.
type Store interface {
	GetJob(ctx context.Context, id uuid.UUID) (domain.CampaignJob, error)
	SaveJob(ctx context.Context, job *domain.CampaignJob) error
	CancelJob(ctx context.Context, id uuid.UUID, at time.Time) (domain.CampaignJob, error)
	GetTemplate(ctx context.Context, id uuid.UUID) (domain.Template, error)
}

// CancelBroadcaster tells worker processes to interrupt a running job.
type CancelBroadcaster interface {
	BroadcastCancel(ctx context.Context, jobID uuid.UUID) error
}

// Pacing is used to estimate how long a job still needs before its first item is done.
type Pacing struct {
	BatchSize    int
	MessageDelay time.Duration
	BatchDelay   time.Duration
}

type Tracker struct {
	store       Store
	local       *Registry
	broadcaster CancelBroadcaster
	pacing      Pacing
	log         *logger.Logger
	now         func() time.Time
}

// NewTracker creates a tracker. local and broadcaster may be nil.
func NewTracker(store Store, local *Registry, broadcaster CancelBroadcaster, pacing Pacing, log *logger.Logger) *Tracker {
	if pacing.BatchSize <= 0 {
		pacing.BatchSize = 30
	}
	return &Tracker{
		store:       store,
		local:       local,
		broadcaster: broadcaster,
		pacing:      pacing,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateParams describe a new campaign.
type CreateParams struct {
	Channel    domain.Channel
	TemplateID *uuid.UUID
	DryRun     bool
	LeadIDs    []uuid.UUID
	CreatedBy  *uuid.UUID
}

// Create validates the parameters and persists a PENDING job. Duplicate lead
// ids are dropped, keeping the first occurrence.
func (t *Tracker) Create(ctx context.Context, params CreateParams) (domain.CampaignJob, error) {
	if _, err := domain.ParseChannel(string(params.Channel)); err != nil {
		return domain.CampaignJob{}, apperr.Validation(err.Error())
	}

	leadIDs := dedupe(params.LeadIDs)
	switch {
	case len(leadIDs) == 0:
		return domain.CampaignJob{}, apperr.Validation("at least one lead is required")
	case len(leadIDs) > MaxLeadsPerJob:
		return domain.CampaignJob{}, apperr.Validation(fmt.Sprintf("a campaign may target at most %d leads", MaxLeadsPerJob))
	}

	if params.TemplateID != nil {
		tpl, err := t.store.GetTemplate(ctx, *params.TemplateID)
		if errors.Is(err, repository.ErrNotFound) {
			return domain.CampaignJob{}, apperr.Validation("template not found")
		}
		if err != nil {
			return domain.CampaignJob{}, apperr.Internal("load template", err)
		}
		if tpl.Channel != params.Channel {
			return domain.CampaignJob{}, apperr.Validation(fmt.Sprintf("template is for %s, not %s", tpl.Channel, params.Channel))
		}
	}

	job := domain.CampaignJob{
		ID:     uuid.New(),
		Status: domain.JobPending,
		Params: domain.JobParameters{
			Channel:    params.Channel,
			TemplateID: params.TemplateID,
			DryRun:     params.DryRun,
			LeadIDs:    leadIDs,
		},
		TotalItems: len(leadIDs),
		ItemErrors: []domain.ItemError{},
		CreatedBy:  params.CreatedBy,
		CreatedAt:  t.now(),
	}
	if err := t.store.SaveJob(ctx, &job); err != nil {
		return domain.CampaignJob{}, apperr.Internal("create campaign job", err)
	}

	t.log.Info("campaign job created", "jobId", job.ID, "channel", job.Params.Channel, "leads", job.TotalItems, "dryRun", job.Params.DryRun)
	return job, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Status is a point-in-time view of a job's progress.
type Status struct {
	Job                    domain.CampaignJob
	ProgressPercent        float64
	EstimatedTimeRemaining *time.Duration
}

// GetStatus returns the job's counters and, while it is active, an estimate of the remaining time.
func (t *Tracker) GetStatus(ctx context.Context, jobID uuid.UUID) (Status, error) {
	job, err := t.store.GetJob(ctx, jobID)
	if errors.Is(err, repository.ErrNotFound) {
		return Status{}, apperr.NotFound("campaign job not found")
	}
	if err != nil {
		return Status{}, apperr.Internal("load campaign job", err)
	}
	return Status{
		Job:                    job,
		ProgressPercent:        job.ProgressPercent(),
		EstimatedTimeRemaining: t.estimate(job),
	}, nil
}

// estimate extrapolates the observed pace of a running job, or the configured
// pacing before any item is processed. Finished jobs have no estimate.
func (t *Tracker) estimate(job domain.CampaignJob) *time.Duration {
	if !job.IsActive() {
		return nil
	}
	remaining := job.Remaining()
	var eta time.Duration
	switch {
	case remaining == 0:
	case job.StartedAt != nil && job.ProcessedItems > 0:
		elapsed := t.now().Sub(*job.StartedAt)
		if elapsed < 0 {
			elapsed = 0
		}
		eta = elapsed / time.Duration(job.ProcessedItems) * time.Duration(remaining)
	case job.Params.DryRun:
	default:
		pauses := (job.TotalItems - 1) / t.pacing.BatchSize
		pauses -= job.ProcessedItems / t.pacing.BatchSize
		if pauses < 0 {
			pauses = 0
		}
		eta = time.Duration(remaining)*t.pacing.MessageDelay + time.Duration(pauses)*t.pacing.BatchDelay
	}
	return &eta
}

// Cancel marks the job CANCELLED and interrupts its run wherever it executes.
// Only the status changes; the counters stay owned by the running worker.
// Cancelling a finished job is a conflict.
func (t *Tracker) Cancel(ctx context.Context, jobID uuid.UUID) (Status, error) {
	job, err := t.store.CancelJob(ctx, jobID, t.now())
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return Status{}, apperr.NotFound("campaign job not found")
	case errors.Is(err, repository.ErrJobFinalized):
		if current, getErr := t.store.GetJob(ctx, jobID); getErr == nil {
			return Status{}, apperr.Conflict(fmt.Sprintf("campaign job is already %s", current.Status))
		}
		return Status{}, apperr.Conflict("campaign job already finished")
	case err != nil:
		return Status{}, apperr.Internal("cancel campaign job", err)
	}
	t.log.Info("campaign job cancelled", "jobId", job.ID, "processed", job.ProcessedItems, "total", job.TotalItems)

	if t.local != nil {
		t.local.Cancel(job.ID)
	}
	if t.broadcaster != nil {
		if err := t.broadcaster.BroadcastCancel(ctx, job.ID); err != nil {
			// The worker still sees CANCELLED at its next item boundary.
			t.log.Warn("failed to broadcast campaign cancel", "jobId", job.ID, "error", err)
		}
	}
	return Status{Job: job, ProgressPercent: job.ProgressPercent()}, nil
}
