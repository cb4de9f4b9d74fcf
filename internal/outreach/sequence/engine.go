// Package sequence walks enrolled leads through timed multi-step follow-ups.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"lead_outreach_backend/internal/channel"
	"lead_outreach_backend/internal/events"
	"lead_outreach_backend/internal/outreach/contact"
	"lead_outreach_backend/internal/outreach/domain"
	"lead_outreach_backend/internal/outreach/repository"
	"lead_outreach_backend/platform/apperr"
	"lead_outreach_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBatchLimit  = 100
	defaultConcurrency = 4
	defaultTickTimeout = 10 * time.Minute
)

var errStepMoved = errors.New("lead moved to another sequence step while sending")

// Store is the persistence the engine needs.
type Store interface {
	repository.LeadStore
	GetSequence(ctx context.Context, id uuid.UUID) (domain.Sequence, error)
	ListDueSequenceLeads(ctx context.Context, now time.Time, limit int) ([]domain.Lead, error)
}

// Renderer renders a step's template for a lead.
type Renderer interface {
	Exact(ctx context.Context, lead domain.Lead, templateID uuid.UUID) (domain.Message, error)
}

// Recorder logs a successful send.
type Recorder interface {
	RecordSent(ctx context.Context, attempt *domain.ContactAttempt) error
}

// Limiter throttles sends. *rate.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Config bounds one ProcessDue tick. A nil Limiter sends unthrottled.
type Config struct {
	BatchLimit  int
	Concurrency int
	TickTimeout time.Duration
	Limiter     Limiter
}

type Engine struct {
	store    Store
	sender   channel.Sender
	renderer Renderer
	recorder Recorder
	log      *logger.Logger
	cfg      Config
	now      func() time.Time
}

func NewEngine(store Store, sender channel.Sender, renderer Renderer, recorder Recorder, log *logger.Logger, cfg Config) *Engine {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = defaultBatchLimit
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.TickTimeout <= 0 {
		cfg.TickTimeout = defaultTickTimeout
	}
	return &Engine{
		store:    store,
		sender:   sender,
		renderer: renderer,
		recorder: recorder,
		log:      log,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Enroll puts the lead at the start of the sequence and schedules step 1.
// It returns false without changes when the sequence is inactive or has no steps.
func (e *Engine) Enroll(ctx context.Context, leadID, sequenceID uuid.UUID) (bool, error) {
	seq, err := e.store.GetSequence(ctx, sequenceID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, apperr.NotFound("sequence not found")
	}
	if err != nil {
		return false, fmt.Errorf("get sequence: %w", err)
	}
	first, ok := seq.Step(1)
	if !seq.Active || !ok {
		return false, nil
	}

	now := e.now()
	_, err = repository.UpdateLead(ctx, e.store, leadID, func(lead *domain.Lead) error {
		id := seq.ID
		due := now.Add(first.Delay())
		lead.SequenceID = &id
		lead.SequenceStep = 0
		lead.NextFollowupAt = &due
		return nil
	})
	if err := leadError(err); err != nil {
		return false, err
	}
	e.log.Info("lead enrolled in sequence", "leadId", leadID, "sequenceId", seq.ID)
	return true, nil
}

// Unenroll clears the lead's sequence pointer.
func (e *Engine) Unenroll(ctx context.Context, leadID uuid.UUID) error {
	_, err := repository.UpdateLead(ctx, e.store, leadID, func(lead *domain.Lead) error {
		lead.ClearSequence()
		return nil
	})
	return leadError(err)
}

// HandleLeadReplied ends the sequence of a lead that answered.
func (e *Engine) HandleLeadReplied(ctx context.Context, event events.Event) error {
	replied, ok := event.(events.LeadReplied)
	if !ok {
		return nil
	}
	lead, err := e.store.GetLead(ctx, replied.LeadID)
	if err != nil || lead.SequenceID == nil {
		return leadError(err)
	}
	return e.Unenroll(ctx, replied.LeadID)
}

func leadError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("lead not found")
	case errors.Is(err, repository.ErrVersionConflict):
		return apperr.Conflict("lead was modified concurrently, retry")
	default:
		return err
	}
}

// LeadError is a per-lead failure of a tick.
type LeadError struct {
	LeadID uuid.UUID `json:"leadId"`
	Error  string    `json:"error"`
}

// Report summarizes one ProcessDue tick.
type Report struct {
	Processed  int         `json:"processed"`
	Sent       int         `json:"sent"`
	Unenrolled int         `json:"unenrolled"`
	Skipped    int         `json:"skipped"`
	Errors     []LeadError `json:"errors"`
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeUnenrolled
	outcomeSkipped
	outcomeFailed
)

// ProcessDue sends the next step to every due lead, at most BatchLimit per tick.
// A failed send leaves the lead on its current step for the next tick.
func (e *Engine) ProcessDue(ctx context.Context, now time.Time) (Report, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.TickTimeout)
	defer cancel()

	leads, err := e.store.ListDueSequenceLeads(ctx, now, e.cfg.BatchLimit)
	if err != nil {
		return Report{}, fmt.Errorf("list due sequence leads: %w", err)
	}

	var (
		mu     sync.Mutex
		report = Report{Errors: []LeadError{}}
		cache  = newSequenceCache(e.store)
		g      errgroup.Group
	)
	g.SetLimit(e.cfg.Concurrency)

	for _, lead := range leads {
		g.Go(func() error {
			result, err := e.processLead(ctx, cache, lead, now)

			mu.Lock()
			defer mu.Unlock()
			report.Processed++
			switch result {
			case outcomeSent:
				report.Sent++
			case outcomeUnenrolled:
				report.Unenrolled++
			case outcomeSkipped:
				report.Skipped++
			case outcomeFailed:
				report.Errors = append(report.Errors, LeadError{LeadID: lead.ID, Error: err.Error()})
			}
			return nil
		})
	}
	_ = g.Wait()

	e.log.Info("sequence tick finished",
		"due", len(leads),
		"sent", report.Sent,
		"unenrolled", report.Unenrolled,
		"skipped", report.Skipped,
		"errors", len(report.Errors),
	)
	return report, nil
}

func (e *Engine) processLead(ctx context.Context, cache *sequenceCache, lead domain.Lead, now time.Time) (result outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			result, err = outcomeFailed, fmt.Errorf("panic: %v", p)
		}
	}()
	if ctx.Err() != nil {
		return outcomeFailed, ctx.Err()
	}

	if lead.Status == domain.LeadStatusReplied {
		return e.stop(ctx, lead, "replied")
	}

	seq, err := cache.get(ctx, *lead.SequenceID)
	if errors.Is(err, repository.ErrNotFound) {
		return e.stop(ctx, lead, "sequence removed")
	}
	if err != nil {
		return outcomeFailed, fmt.Errorf("get sequence: %w", err)
	}
	if !seq.Active {
		return outcomeSkipped, nil
	}

	step, ok := seq.Step(lead.SequenceStep + 1)
	if !ok {
		return e.stop(ctx, lead, "completed")
	}
	if step.StopIfResponded && lead.LastResponseAt != nil {
		return e.stop(ctx, lead, "responded")
	}

	msg, err := e.renderer.Exact(ctx, lead, step.TemplateID)
	if err != nil {
		return outcomeFailed, fmt.Errorf("render step %d: %w", step.StepNumber, err)
	}

	if e.cfg.Limiter != nil {
		if err := e.cfg.Limiter.Wait(ctx); err != nil {
			return outcomeFailed, fmt.Errorf("wait for send slot: %w", err)
		}
	}
	res := e.sender.Send(ctx, lead, msg, step.Channel)
	if !res.Success {
		return outcomeFailed, fmt.Errorf("send step %d via %s: %s", step.StepNumber, step.Channel, res.Error)
	}

	var nextDue *time.Time
	if next, ok := seq.Step(step.StepNumber + 1); ok {
		due := now.Add(next.Delay())
		nextDue = &due
	}
	_, err = repository.UpdateLead(ctx, e.store, lead.ID, func(fresh *domain.Lead) error {
		if fresh.SequenceID == nil || *fresh.SequenceID != seq.ID || fresh.SequenceStep != step.StepNumber-1 {
			return errStepMoved
		}
		fresh.SequenceStep = step.StepNumber
		fresh.NextFollowupAt = nextDue
		contact.MarkContacted(fresh, now)
		return nil
	})
	if err != nil {
		return outcomeFailed, fmt.Errorf("advance to step %d: %w", step.StepNumber, err)
	}

	seqID := seq.ID
	attempt := &domain.ContactAttempt{
		LeadID:            lead.ID,
		Channel:           step.Channel,
		TemplateID:        msg.TemplateID,
		Variant:           msg.Variant,
		ProviderMessageID: res.ProviderMessageID,
		Source:            domain.SourceSequence,
		SequenceID:        &seqID,
		StepNumber:        step.StepNumber,
		SentAt:            now,
	}
	if err := e.recorder.RecordSent(ctx, attempt); err != nil {
		e.log.Warn("failed to record sequence send", "leadId", lead.ID, "step", step.StepNumber, "error", err)
	}
	return outcomeSent, nil
}

func (e *Engine) stop(ctx context.Context, lead domain.Lead, reason string) (outcome, error) {
	if err := e.Unenroll(ctx, lead.ID); err != nil {
		return outcomeFailed, fmt.Errorf("unenroll (%s): %w", reason, err)
	}
	e.log.Debug("lead left sequence", "leadId", lead.ID, "reason", reason)
	return outcomeUnenrolled, nil
}

// sequenceCache memoizes sequence lookups for one tick.
type sequenceCache struct {
	store Store
	mu    sync.Mutex
	items map[uuid.UUID]cachedSequence
}

type cachedSequence struct {
	seq domain.Sequence
	err error
}

func newSequenceCache(store Store) *sequenceCache {
	return &sequenceCache{store: store, items: make(map[uuid.UUID]cachedSequence)}
}

func (c *sequenceCache) get(ctx context.Context, id uuid.UUID) (domain.Sequence, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if item, ok := c.items[id]; ok {
		return item.seq, item.err
	}
	seq, err := c.store.GetSequence(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return seq, err
	}
	c.items[id] = cachedSequence{seq: seq, err: err}
	return seq, err
}
