package domain

import (
	"time"

	"github.com/google/uuid"
)

// AttemptSource names the engine that produced a contact attempt.
type AttemptSource string

const (
	SourceSequence AttemptSource = "sequence"
	SourceCampaign AttemptSource = "campaign"
)

// ContactAttempt is an append-only record of one send. Only DeliveredAt and
// RespondedAt are filled in later by provider callbacks.
type ContactAttempt struct {
	ID                uuid.UUID
	LeadID            uuid.UUID
	Channel           Channel
	TemplateID        *uuid.UUID
	Variant           string
	ProviderMessageID string
	Source            AttemptSource
	JobID             *uuid.UUID
	SequenceID        *uuid.UUID
	StepNumber        int
	SentAt            time.Time
	DeliveredAt       *time.Time
	RespondedAt       *time.Time
}
