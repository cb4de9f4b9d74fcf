package transport

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs
type CreateCampaignRequest struct {
	Channel    string      `json:"channel" validate:"required,oneof=whatsapp email sms"`
	TemplateID *uuid.UUID  `json:"templateId,omitempty" validate:"omitempty"`
	DryRun     bool        `json:"dryRun"`
	LeadIDs    []uuid.UUID `json:"leadIds" validate:"required,min=1,max=10000"`
}

type EnrollRequest struct {
	SequenceID uuid.UUID `json:"sequenceId" validate:"required"`
}

type RecordResponseRequest struct {
	Text string `json:"text" validate:"required,min=1,max=5000"`
}

type AdjustScoreRequest struct {
	Points int `json:"points" validate:"omitempty,min=1,max=100"`
}

type DeliveryWebhookRequest struct {
	MessageID string `json:"messageId" validate:"required,max=200"`
	Status    string `json:"status" validate:"required,max=50"`
}

// Response DTOs
type LeadResponse struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	Phone             string     `json:"phone,omitempty"`
	Email             string     `json:"email,omitempty"`
	City              string     `json:"city,omitempty"`
	Category          string     `json:"category,omitempty"`
	Status            string     `json:"status"`
	Score             int        `json:"score"`
	Temperature       string     `json:"temperature"`
	EngagementCount   int        `json:"engagementCount"`
	ResponseTimeHours *float64   `json:"responseTimeHours,omitempty"`
	LastContactedAt   *time.Time `json:"lastContactedAt,omitempty"`
	LastResponseAt    *time.Time `json:"lastResponseAt,omitempty"`
	SequenceID        *uuid.UUID `json:"sequenceId,omitempty"`
	SequenceStep      int        `json:"sequenceStep"`
	SequenceState     string     `json:"sequenceState"`
	NextFollowupAt    *time.Time `json:"nextFollowupAt,omitempty"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

type EnrollResponse struct {
	Enrolled bool `json:"enrolled"`
}

type ItemErrorResponse struct {
	LeadID  uuid.UUID `json:"leadId"`
	Outcome string    `json:"outcome"`
	Reason  string    `json:"reason"`
}

type CampaignJobResponse struct {
	ID                        uuid.UUID           `json:"id"`
	Status                    string              `json:"status"`
	Channel                   string              `json:"channel"`
	TemplateID                *uuid.UUID          `json:"templateId,omitempty"`
	DryRun                    bool                `json:"dryRun"`
	TotalItems                int                 `json:"totalItems"`
	ProcessedItems            int                 `json:"processedItems"`
	SuccessfulItems           int                 `json:"successfulItems"`
	FailedItems               int                 `json:"failedItems"`
	SkippedItems              int                 `json:"skippedItems"`
	ProgressPercent           float64             `json:"progressPercent"`
	EstimatedSecondsRemaining *int64              `json:"estimatedSecondsRemaining,omitempty"`
	ErrorMessage              string              `json:"errorMessage,omitempty"`
	ItemErrors                []ItemErrorResponse `json:"itemErrors"`
	CreatedAt                 time.Time           `json:"createdAt"`
	StartedAt                 *time.Time          `json:"startedAt,omitempty"`
	CompletedAt               *time.Time          `json:"completedAt,omitempty"`
}

type ContactAttemptResponse struct {
	ID                uuid.UUID  `json:"id"`
	Channel           string     `json:"channel"`
	Source            string     `json:"source"`
	TemplateID        *uuid.UUID `json:"templateId,omitempty"`
	Variant           string     `json:"variant,omitempty"`
	ProviderMessageID string     `json:"providerMessageId,omitempty"`
	JobID             *uuid.UUID `json:"jobId,omitempty"`
	SequenceID        *uuid.UUID `json:"sequenceId,omitempty"`
	StepNumber        int        `json:"stepNumber,omitempty"`
	SentAt            time.Time  `json:"sentAt"`
	DeliveredAt       *time.Time `json:"deliveredAt,omitempty"`
	RespondedAt       *time.Time `json:"respondedAt,omitempty"`
}

type ScoreDistributionResponse struct {
	Total         int            `json:"total"`
	ByTemperature map[string]int `json:"byTemperature"`
	ByRange       map[string]int `json:"byRange"`
}

type AttentionResponse struct {
	HotNotContacted  []LeadResponse `json:"hotNotContacted"`
	OverdueFollowups []LeadResponse `json:"overdueFollowups"`
}

type DecayResponse struct {
	Decayed int `json:"decayed"`
}

type SequenceRunResponse struct {
	Processed  int                 `json:"processed"`
	Sent       int                 `json:"sent"`
	Unenrolled int                 `json:"unenrolled"`
	Skipped    int                 `json:"skipped"`
	Errors     []LeadErrorResponse `json:"errors"`
}

type LeadErrorResponse struct {
	LeadID uuid.UUID `json:"leadId"`
	Error  string    `json:"error"`
}
