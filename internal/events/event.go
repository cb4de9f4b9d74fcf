// Package events provides domain event definitions for decoupled,
// event-driven communication between the outreach engines.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"lead_outreach_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Events
// =============================================================================

// LeadContacted is published after a message was accepted by a provider.
type LeadContacted struct {
	BaseEvent
	LeadID            uuid.UUID  `json:"leadId"`
	Channel           string     `json:"channel"`
	TemplateID        *uuid.UUID `json:"templateId,omitempty"`
	ProviderMessageID string     `json:"providerMessageId,omitempty"`
	Source            string     `json:"source"` // "sequence" or "campaign"
}

func (e LeadContacted) EventName() string { return "outreach.lead.contacted" }

// LeadReplied is published when an inbound response was recorded for a lead.
// OptedOut is set when the response asked to stop all contact.
type LeadReplied struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	OptedOut bool      `json:"optedOut"`
}

func (e LeadReplied) EventName() string { return "outreach.lead.replied" }

// =============================================================================
// Campaign Events
// =============================================================================

// CampaignJobFinished is published once a bulk job reaches a terminal status.
type CampaignJobFinished struct {
	BaseEvent
	JobID      uuid.UUID `json:"jobId"`
	Status     string    `json:"status"`
	Total      int       `json:"total"`
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Error      string    `json:"error,omitempty"`
}

func (e CampaignJobFinished) EventName() string { return "outreach.campaign.finished" }
