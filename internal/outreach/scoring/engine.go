package scoring

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

const (
	// DefaultAdjustment is applied by Boost and Penalize when no points are given.
	DefaultAdjustment = 10
	// attentionLimit caps each list returned by NeedingAttention.
	attentionLimit = 20
	// hotIdleAfter is how long a HOT lead may go uncontacted before it needs attention.
	hotIdleAfter = 7 * 24 * time.Hour
)

// Store is the lead persistence the engine needs.
type Store interface {
	repository.LeadStore
	ListDecayCandidates(ctx context.Context, now time.Time) ([]domain.Lead, error)
	ListLeads(ctx context.Context, filter repository.LeadFilter) ([]domain.Lead, error)
}

// Engine applies scoring rules to stored leads.
type Engine struct {
	store Store
	log   *logger.Logger
	now   func() time.Time
}

func NewEngine(store Store, log *logger.Logger) *Engine {
	return &Engine{store: store, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// ComputeScore scores lead as of the current time.
func (e *Engine) ComputeScore(lead domain.Lead) int {
	return ComputeScore(lead, e.now())
}

// DecayAll ages every eligible lead once per UTC day and returns how many changed.
// A lead that fails to save is logged and left for the next run.
func (e *Engine) DecayAll(ctx context.Context, now time.Time) (int, error) {
	candidates, err := e.store.ListDecayCandidates(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list decay candidates: %w", err)
	}

	decayed := 0
	var errs []error
	for _, lead := range candidates {
		if ctx.Err() != nil {
			return decayed, ctx.Err()
		}
		if lead.LastDecayedAt != nil && domain.SameDay(*lead.LastDecayedAt, now) {
			continue
		}
		score, changed := Decay(lead, now)
		if !changed {
			continue
		}

		from := lead.Temperature
		lead.SetScore(score)
		stamp := now.UTC()
		lead.LastDecayedAt = &stamp
		if err := e.store.SaveLead(ctx, &lead); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				e.log.Warn("lead changed during decay, skipping", "leadId", lead.ID)
				continue
			}
			errs = append(errs, fmt.Errorf("lead %s: %w", lead.ID, err))
			continue
		}
		decayed++
		if from != lead.Temperature {
			e.log.Debug("lead temperature decayed", "leadId", lead.ID, "from", from, "to", lead.Temperature, "score", lead.Score)
		}
	}

	e.log.Info("lead decay finished", "candidates", len(candidates), "decayed", decayed, "errors", len(errs))
	return decayed, errors.Join(errs...)
}

// Recalculate recomputes and stores the score of one lead.
func (e *Engine) Recalculate(ctx context.Context, leadID uuid.UUID) (domain.Lead, error) {
	return e.update(ctx, leadID, func(lead *domain.Lead) {
		lead.SetScore(e.ComputeScore(*lead))
	})
}

// Boost raises a lead's score by points, or DefaultAdjustment when points <= 0.
func (e *Engine) Boost(ctx context.Context, leadID uuid.UUID, points int) (domain.Lead, error) {
	if points <= 0 {
		points = DefaultAdjustment
	}
	return e.update(ctx, leadID, func(lead *domain.Lead) {
		lead.SetScore(lead.Score + points)
	})
}

// Penalize lowers a lead's score by points, or DefaultAdjustment when points <= 0.
func (e *Engine) Penalize(ctx context.Context, leadID uuid.UUID, points int) (domain.Lead, error) {
	if points <= 0 {
		points = DefaultAdjustment
	}
	return e.update(ctx, leadID, func(lead *domain.Lead) {
		lead.SetScore(lead.Score - points)
	})
}

func (e *Engine) update(ctx context.Context, leadID uuid.UUID, fn func(lead *domain.Lead)) (domain.Lead, error) {
	lead, err := repository.UpdateLead(ctx, e.store, leadID, func(lead *domain.Lead) error {
		fn(lead)
		return nil
	})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return domain.Lead{}, apperr.NotFound("lead not found")
	case errors.Is(err, repository.ErrVersionConflict):
		return domain.Lead{}, apperr.Conflict("lead was modified concurrently, retry")
	case err != nil:
		return domain.Lead{}, err
	}
	return lead, nil
}

// Distribution counts leads per temperature and per score range.
type Distribution struct {
	Total         int                        `json:"total"`
	ByTemperature map[domain.Temperature]int `json:"byTemperature"`
	ByRange       map[string]int             `json:"byRange"`
}

var scoreRanges = []struct {
	label  string
	lo, hi int
}{
	{"0-20", 0, 20},
	{"21-40", 21, 40},
	{"41-60", 41, 60},
	{"61-80", 61, 80},
	{"81-100", 81, 100},
}

// Distribution reports how the current lead scores spread out.
func (e *Engine) Distribution(ctx context.Context) (Distribution, error) {
	leads, err := e.store.ListLeads(ctx, repository.LeadFilter{})
	if err != nil {
		return Distribution{}, fmt.Errorf("list leads: %w", err)
	}

	dist := Distribution{
		Total:         len(leads),
		ByTemperature: map[domain.Temperature]int{domain.TemperatureHot: 0, domain.TemperatureWarm: 0, domain.TemperatureCold: 0},
		ByRange:       make(map[string]int, len(scoreRanges)),
	}
	for _, r := range scoreRanges {
		dist.ByRange[r.label] = 0
	}
	for _, lead := range leads {
		dist.ByTemperature[domain.TemperatureFor(lead.Score)]++
		for _, r := range scoreRanges {
			if lead.Score >= r.lo && lead.Score <= r.hi {
				dist.ByRange[r.label]++
				break
			}
		}
	}
	return dist, nil
}

// Attention lists leads an operator should look at.
type Attention struct {
	HotNotContacted  []domain.Lead `json:"hotNotContacted"`
	OverdueFollowups []domain.Lead `json:"overdueFollowups"`
}

// NeedingAttention returns HOT leads idle for a week and enrolled NEW or
// CONTACTED leads whose follow-up is overdue.
func (e *Engine) NeedingAttention(ctx context.Context, now time.Time) (Attention, error) {
	idleSince := now.Add(-hotIdleAfter)
	hot, err := e.store.ListLeads(ctx, repository.LeadFilter{
		Statuses:          []domain.LeadStatus{domain.LeadStatusNew, domain.LeadStatusContacted},
		Temperature:       domain.TemperatureHot,
		NotContactedSince: &idleSince,
		Limit:             attentionLimit,
	})
	if err != nil {
		return Attention{}, fmt.Errorf("list idle hot leads: %w", err)
	}

	overdue, err := e.store.ListLeads(ctx, repository.LeadFilter{
		Statuses:       []domain.LeadStatus{domain.LeadStatusNew, domain.LeadStatusContacted},
		FollowupBefore: &now,
		Limit:          attentionLimit,
	})
	if err != nil {
		return Attention{}, fmt.Errorf("list overdue follow-ups: %w", err)
	}

	return Attention{HotNotContacted: hot, OverdueFollowups: overdue}, nil
}
