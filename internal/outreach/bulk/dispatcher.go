// Package bulk runs campaign jobs: one template, one channel, many leads,
// sent in batches with pacing and persisted progress after every lead.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lead_outreach_backend/internal/channel"
	"lead_outreach_backend/internal/events"
	"lead_outreach_backend/internal/outreach/contact"
	"lead_outreach_backend/internal/outreach/domain"
	"lead_outreach_backend/internal/outreach/repository"
	"lead_outreach_backend/platform/logger"
	"lead_outreach_backend/platform/phone"
	"lead_outreach_backend/platform/validator"

	"github.com/google/uuid"
)

const (
	defaultBatchSize  = 30
	defaultBatchDelay = 20 * time.Second
)

// errInterrupted reports that pacing was cut short before a send.
var errInterrupted = errors.New("send interrupted while pacing")

// Store is the persistence the dispatcher needs.
type Store interface {
	repository.LeadStore
	ListLeadsByID(ctx context.Context, ids []uuid.UUID) ([]domain.Lead, error)
	GetJob(ctx context.Context, id uuid.UUID) (domain.CampaignJob, error)
	SaveJob(ctx context.Context, job *domain.CampaignJob) error
	SaveJobProgress(ctx context.Context, job *domain.CampaignJob) error
}

// Resolver picks and renders the message for a lead.
type Resolver interface {
	Resolve(ctx context.Context, lead domain.Lead, ch domain.Channel, templateID *uuid.UUID) (domain.Message, error)
}

// Recorder logs a successful send.
type Recorder interface {
	RecordSent(ctx context.Context, attempt *domain.ContactAttempt) error
}

// Config carries the batching knobs and the region used to read local phone numbers.
type Config struct {
	BatchSize     int
	BatchDelay    time.Duration
	DefaultRegion string
}

type Dispatcher struct {
	store    Store
	sender   channel.Sender
	resolver Resolver
	recorder Recorder
	pacer    Pacer
	bus      events.Bus
	validate *validator.Validator
	log      *logger.Logger
	cfg      Config
	now      func() time.Time
}

func NewDispatcher(store Store, sender channel.Sender, resolver Resolver, recorder Recorder, pacer Pacer, bus events.Bus, log *logger.Logger, cfg Config) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = defaultBatchDelay
	}
	if pacer == nil {
		pacer = NewTokenBucketPacer(nil)
	}
	return &Dispatcher{
		store:    store,
		sender:   sender,
		resolver: resolver,
		recorder: recorder,
		pacer:    pacer,
		bus:      bus,
		validate: validator.New(),
		log:      log,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// itemResult is the explicit outcome of one lead.
type itemResult struct {
	outcome domain.ItemOutcome
	reason  string
}

// Run executes the job until it is completed, failed or cancelled and returns
// its final record. When ctx ends or pacing is cut short without a persisted
// CANCELLED status, the lead in flight is not recorded and the job stays
// RUNNING with its progress saved so a redelivered task resumes at that lead.
func (d *Dispatcher) Run(ctx context.Context, jobID uuid.UUID) (job domain.CampaignJob, err error) {
	dbCtx := context.WithoutCancel(ctx)
	log := d.log.WithJobID(jobID.String())

	job, err = d.store.GetJob(dbCtx, jobID)
	if err != nil {
		return job, fmt.Errorf("load campaign job: %w", err)
	}
	if job.Status.IsTerminal() {
		log.Info("campaign job already finished", "status", job.Status)
		return job, nil
	}

	defer func() {
		if p := recover(); p != nil {
			job, err = d.fail(dbCtx, log, job, fmt.Errorf("panic: %v", p))
		}
	}()

	if job.Status == domain.JobPending {
		if err := job.Transition(domain.JobRunning, d.now()); err != nil {
			return job, err
		}
		if err := d.store.SaveJob(dbCtx, &job); err != nil {
			return d.persistFailed(dbCtx, log, job, err)
		}
		log.JobTransition(job.ID.String(), string(domain.JobPending), string(domain.JobRunning))
	} else if job.ProcessedItems > 0 {
		log.Info("resuming campaign job", "processed", job.ProcessedItems, "total", job.TotalItems)
	}

	leads, err := d.loadLeads(dbCtx, job.Params.LeadIDs)
	if err != nil {
		return d.fail(dbCtx, log, job, err)
	}

	for i := job.ProcessedItems; i < len(job.Params.LeadIDs); i++ {
		if stop, err := d.checkpoint(ctx, dbCtx, &job); stop || err != nil {
			return job, err
		}

		if i > 0 && i%d.cfg.BatchSize == 0 && !job.Params.DryRun {
			log.Debug("pausing between batches", "processed", i, "delay", d.cfg.BatchDelay)
			if err := d.pacer.Pause(ctx, d.cfg.BatchDelay); err != nil {
				return d.interrupted(ctx, dbCtx, log, job, err)
			}
		}

		leadID := job.Params.LeadIDs[i]
		lead, ok := leads[leadID]
		var (
			result  itemResult
			saveErr error
		)
		if ok {
			result, saveErr = d.processItem(ctx, job, lead)
		} else {
			result = itemResult{outcome: domain.OutcomeSkipped, reason: "lead not found"}
		}
		if errors.Is(saveErr, errInterrupted) {
			return d.interrupted(ctx, dbCtx, log, job, saveErr)
		}

		job.Record(leadID, result.outcome, result.reason)
		if err := d.store.SaveJobProgress(dbCtx, &job); err != nil {
			return d.persistFailed(dbCtx, log, job, err)
		}
		if saveErr != nil {
			return d.fail(dbCtx, log, job, saveErr)
		}
	}

	if err := job.Transition(domain.JobCompleted, d.now()); err != nil {
		return job, err
	}
	if err := d.store.SaveJob(dbCtx, &job); err != nil {
		return d.persistFailed(dbCtx, log, job, err)
	}
	log.JobTransition(job.ID.String(), string(domain.JobRunning), string(domain.JobCompleted))
	log.Info("campaign job completed",
		"jobId", job.ID,
		"successful", job.SuccessfulItems,
		"failed", job.FailedItems,
		"skipped", job.SkippedItems,
	)
	d.publishFinished(ctx, job)
	return job, nil
}

// checkpoint stops the run when the job was cancelled. It returns ctx's error
// when the run context ended for any other reason.
func (d *Dispatcher) checkpoint(ctx, dbCtx context.Context, job *domain.CampaignJob) (bool, error) {
	current, err := d.store.GetJob(dbCtx, job.ID)
	if err != nil {
		return true, fmt.Errorf("reload campaign job: %w", err)
	}
	if current.Status == domain.JobCancelled {
		d.log.WithJobID(job.ID.String()).JobTransition(job.ID.String(), string(job.Status), string(domain.JobCancelled))
		*job = current
		d.publishFinished(ctx, current)
		return true, nil
	}
	if ctx.Err() != nil {
		return true, ctx.Err()
	}
	return false, nil
}

// interrupted ends a run whose pacing was cut short before the next send. A
// cancelled job stops cleanly; otherwise the job is left RUNNING at its last
// saved item and the returned error makes the task retry.
func (d *Dispatcher) interrupted(ctx, dbCtx context.Context, log *logger.Logger, job domain.CampaignJob, cause error) (domain.CampaignJob, error) {
	stop, err := d.checkpoint(ctx, dbCtx, &job)
	if stop && err == nil {
		return job, nil
	}
	if !errors.Is(cause, errInterrupted) {
		cause = fmt.Errorf("%w: %w", errInterrupted, cause)
	}
	log.Warn("campaign run interrupted", "processed", job.ProcessedItems, "total", job.TotalItems, "error", cause)
	return job, errors.Join(fmt.Errorf("campaign run interrupted: %w", cause), err)
}

// persistFailed handles a failed job save. A finalized job means a cancel won
// the race; anything else fails the run.
func (d *Dispatcher) persistFailed(dbCtx context.Context, log *logger.Logger, job domain.CampaignJob, err error) (domain.CampaignJob, error) {
	if errors.Is(err, repository.ErrJobFinalized) {
		current, getErr := d.store.GetJob(dbCtx, job.ID)
		if getErr != nil {
			return job, fmt.Errorf("reload finalized campaign job: %w", getErr)
		}
		log.Info("campaign job finalized elsewhere", "status", current.Status)
		d.publishFinished(dbCtx, current)
		return current, nil
	}
	log.DatabaseError("save campaign job", err)
	return d.fail(dbCtx, log, job, fmt.Errorf("persist progress: %w", err))
}

// fail moves the job to FAILED keeping the partial counts.
func (d *Dispatcher) fail(dbCtx context.Context, log *logger.Logger, job domain.CampaignJob, cause error) (domain.CampaignJob, error) {
	from := job.Status
	job.ErrorMessage = cause.Error()
	if err := job.Transition(domain.JobFailed, d.now()); err != nil {
		return job, errors.Join(cause, err)
	}
	if err := d.store.SaveJob(dbCtx, &job); err != nil {
		if errors.Is(err, repository.ErrJobFinalized) {
			current, getErr := d.store.GetJob(dbCtx, job.ID)
			if getErr == nil {
				return current, nil
			}
		}
		return job, errors.Join(cause, fmt.Errorf("save failed campaign job: %w", err))
	}
	log.JobTransition(job.ID.String(), string(from), string(domain.JobFailed))
	log.Error("campaign job failed", "jobId", job.ID, "error", cause)
	d.publishFinished(dbCtx, job)
	return job, cause
}

func (d *Dispatcher) loadLeads(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Lead, error) {
	leads, err := d.store.ListLeadsByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load campaign leads: %w", err)
	}
	byID := make(map[uuid.UUID]domain.Lead, len(leads))
	for _, lead := range leads {
		byID[lead.ID] = lead
	}
	return byID, nil
}

// processItem handles one lead. errInterrupted means nothing was sent and the
// lead must not be recorded. Any other error is a persistence failure that
// must fail the job; the item result is still recorded.
func (d *Dispatcher) processItem(ctx context.Context, job domain.CampaignJob, lead domain.Lead) (result itemResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			result, err = itemResult{outcome: domain.OutcomeFailed, reason: fmt.Sprintf("panic: %v", p)}, nil
		}
	}()

	ch := job.Params.Channel
	if reason := d.contactProblem(lead, ch); reason != "" {
		return itemResult{outcome: domain.OutcomeSkipped, reason: reason}, nil
	}

	msg, err := d.resolver.Resolve(ctx, lead, ch, job.Params.TemplateID)
	if err != nil {
		return itemResult{outcome: domain.OutcomeFailed, reason: "resolve template: " + err.Error()}, nil
	}
	if job.Params.DryRun {
		return itemResult{outcome: domain.OutcomeSuccess}, nil
	}

	if err := d.pacer.Wait(ctx); err != nil {
		return itemResult{}, fmt.Errorf("%w: %w", errInterrupted, err)
	}
	res := d.sender.Send(ctx, lead, msg, ch)
	if !res.Success {
		return itemResult{outcome: domain.OutcomeFailed, reason: res.Error}, nil
	}

	sentAt := d.now()
	dbCtx := context.WithoutCancel(ctx)
	if _, err := repository.UpdateLead(dbCtx, d.store, lead.ID, func(fresh *domain.Lead) error {
		contact.MarkContacted(fresh, sentAt)
		return nil
	}); err != nil {
		return itemResult{outcome: domain.OutcomeSuccess}, fmt.Errorf("mark lead %s contacted: %w", lead.ID, err)
	}

	jobID := job.ID
	attempt := &domain.ContactAttempt{
		LeadID:            lead.ID,
		Channel:           ch,
		TemplateID:        msg.TemplateID,
		Variant:           msg.Variant,
		ProviderMessageID: res.ProviderMessageID,
		Source:            domain.SourceCampaign,
		JobID:             &jobID,
		SentAt:            sentAt,
	}
	if err := d.recorder.RecordSent(dbCtx, attempt); err != nil {
		d.log.Warn("failed to record campaign send", "jobId", job.ID, "leadId", lead.ID, "error", err)
	}
	return itemResult{outcome: domain.OutcomeSuccess}, nil
}

// contactProblem returns why the lead cannot be reached on ch, or "".
func (d *Dispatcher) contactProblem(lead domain.Lead, ch domain.Channel) string {
	switch lead.Status {
	case domain.LeadStatusLost:
		return "lead opted out"
	case domain.LeadStatusClosed:
		return "lead is closed"
	}
	switch ch {
	case domain.ChannelWhatsApp, domain.ChannelSMS:
		if _, err := phone.Validate(lead.Phone, d.cfg.DefaultRegion); err != nil {
			return "invalid phone: " + err.Error()
		}
	case domain.ChannelEmail:
		if err := d.validate.Email(lead.Email); err != nil {
			return "invalid email: " + err.Error()
		}
	default:
		return fmt.Sprintf("unsupported channel %q", ch)
	}
	return ""
}

func (d *Dispatcher) publishFinished(ctx context.Context, job domain.CampaignJob) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(ctx, events.CampaignJobFinished{
		BaseEvent:  events.NewBaseEvent(d.now()),
		JobID:      job.ID,
		Status:     string(job.Status),
		Total:      job.TotalItems,
		Successful: job.SuccessfulItems,
		Failed:     job.FailedItems,
		Skipped:    job.SkippedItems,
		Error:      job.ErrorMessage,
	})
}
