package repository

import (
	"context"
	"errors"

	"lead_outreach_backend/internal/outreach/domain"

	"github.com/google/uuid"
)

// maxUpdateAttempts bounds re-reads when an optimistic lead update loses a race.
const maxUpdateAttempts = 3

// LeadStore is the read-modify-write surface for a single lead.
type LeadStore interface {
	GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	SaveLead(ctx context.Context, lead *domain.Lead) error
}

// UpdateLead loads the lead, applies fn and saves it, re-reading and
// re-applying fn when another writer bumped the version in between.
func UpdateLead(ctx context.Context, store LeadStore, id uuid.UUID, fn func(lead *domain.Lead) error) (domain.Lead, error) {
	var err error
	for range maxUpdateAttempts {
		var lead domain.Lead
		lead, err = store.GetLead(ctx, id)
		if err != nil {
			return domain.Lead{}, err
		}
		if err = fn(&lead); err != nil {
			return domain.Lead{}, err
		}
		err = store.SaveLead(ctx, &lead)
		if err == nil {
			return lead, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return domain.Lead{}, err
		}
	}
	return domain.Lead{}, err
}
