// Package contact keeps leads, templates and the contact log in step with
// what happened on the wire: sends, replies and provider delivery receipts.
package contact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lead_outreach_backend/internal/events"
	"lead_outreach_backend/internal/outreach/domain"
	"lead_outreach_backend/internal/outreach/repository"
	"lead_outreach_backend/internal/outreach/scoring"
	"lead_outreach_backend/platform/apperr"
	"lead_outreach_backend/platform/logger"
	"lead_outreach_backend/platform/sanitize"

	"github.com/google/uuid"
)

const maxResponseRunes = 2000

// Delivery statuses reported by providers.
const (
	DeliveryDelivered = "delivered"
	DeliveryRead      = "read"
)

var optOutKeywords = []string{
	"stop", "unsubscribe", "opt out", "no more", "remove me",
	"ndalo", "mos me shkruaj", "hiqe",
}

// Store is the persistence the contact service needs.
type Store interface {
	repository.LeadStore
	IncrementTemplateStats(ctx context.Context, id uuid.UUID, stats domain.TemplateStats) error
	AppendContactAttempt(ctx context.Context, attempt *domain.ContactAttempt) error
	MarkLatestAttemptResponded(ctx context.Context, leadID uuid.UUID, at time.Time) (domain.ContactAttempt, error)
	MarkAttemptDelivered(ctx context.Context, providerMessageID string, at time.Time) (domain.ContactAttempt, error)
}

type Service struct {
	store Store
	bus   events.Bus
	log   *logger.Logger
	now   func() time.Time
}

func New(store Store, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, bus: bus, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// MarkContacted applies a successful send to the lead.
func MarkContacted(lead *domain.Lead, at time.Time) {
	at = at.UTC()
	lead.LastContactedAt = &at
	if lead.Status == domain.LeadStatusNew {
		lead.Status = domain.LeadStatusContacted
	}
}

// IsOptOut reports whether a reply asks to stop all contact.
func IsOptOut(text string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range optOutKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// RecordSent logs a successful send: the attempt is appended, the template's
// sent counter bumped and LeadContacted published. The lead itself is saved by the caller.
func (s *Service) RecordSent(ctx context.Context, attempt *domain.ContactAttempt) error {
	if attempt.SentAt.IsZero() {
		attempt.SentAt = s.now()
	}
	if err := s.store.AppendContactAttempt(ctx, attempt); err != nil {
		return fmt.Errorf("append contact attempt: %w", err)
	}
	if attempt.TemplateID != nil {
		if err := s.store.IncrementTemplateStats(ctx, *attempt.TemplateID, domain.TemplateStats{Sent: 1}); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("increment template sent: %w", err)
		}
	}

	s.bus.Publish(ctx, events.LeadContacted{
		BaseEvent:         events.NewBaseEvent(attempt.SentAt),
		LeadID:            attempt.LeadID,
		Channel:           string(attempt.Channel),
		TemplateID:        attempt.TemplateID,
		ProviderMessageID: attempt.ProviderMessageID,
		Source:            string(attempt.Source),
	})
	return nil
}

// RecordResponse stores an inbound reply. The lead moves to REPLIED, or LOST
// when the reply opts out, and its score is recomputed. Sequence enrollment is
// ended by LeadReplied subscribers.
func (s *Service) RecordResponse(ctx context.Context, leadID uuid.UUID, text string) (domain.Lead, error) {
	at := s.now()
	text = sanitize.Text(text, maxResponseRunes)
	optedOut := IsOptOut(text)

	lead, err := repository.UpdateLead(ctx, s.store, leadID, func(lead *domain.Lead) error {
		if optedOut {
			lead.Status = domain.LeadStatusLost
		} else {
			lead.Status = domain.LeadStatusReplied
		}
		lead.EngagementCount++
		lead.LastResponse = text
		lead.LastResponseAt = &at
		if lead.LastContactedAt != nil && at.After(*lead.LastContactedAt) {
			elapsed := at.Sub(*lead.LastContactedAt).Hours()
			lead.ResponseTimeHours = &elapsed
		}
		lead.SetScore(scoring.ComputeScore(*lead, at))
		return nil
	})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return domain.Lead{}, apperr.NotFound("lead not found")
	case errors.Is(err, repository.ErrVersionConflict):
		return domain.Lead{}, apperr.Conflict("lead was modified concurrently, retry")
	case err != nil:
		return domain.Lead{}, fmt.Errorf("record response: %w", err)
	}

	attempt, err := s.store.MarkLatestAttemptResponded(ctx, leadID, at)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		s.log.Debug("response without a prior attempt", "leadId", leadID)
	case err != nil:
		s.log.Warn("failed to mark attempt responded", "leadId", leadID, "error", err)
	case attempt.TemplateID != nil:
		if err := s.store.IncrementTemplateStats(ctx, *attempt.TemplateID, domain.TemplateStats{Responded: 1}); err != nil {
			s.log.Warn("failed to count template response", "templateId", *attempt.TemplateID, "error", err)
		}
	}

	s.bus.Publish(ctx, events.LeadReplied{
		BaseEvent: events.NewBaseEvent(at),
		LeadID:    leadID,
		OptedOut:  optedOut,
	})
	s.log.Info("lead response recorded", "leadId", leadID, "status", lead.Status, "score", lead.Score)
	return lead, nil
}

// RecordDelivery applies a provider receipt. "delivered" stamps the attempt;
// "read" stamps it and counts a template open. Other statuses are ignored.
func (s *Service) RecordDelivery(ctx context.Context, providerMessageID, status string) error {
	providerMessageID = strings.TrimSpace(providerMessageID)
	if providerMessageID == "" {
		return apperr.Validation("providerMessageId is required")
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if status != DeliveryDelivered && status != DeliveryRead {
		return nil
	}

	attempt, err := s.store.MarkAttemptDelivered(ctx, providerMessageID, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("contact attempt not found")
	}
	if err != nil {
		return fmt.Errorf("mark attempt delivered: %w", err)
	}

	if status == DeliveryRead && attempt.TemplateID != nil {
		if err := s.store.IncrementTemplateStats(ctx, *attempt.TemplateID, domain.TemplateStats{Opened: 1}); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("increment template opened: %w", err)
		}
	}
	return nil
}
