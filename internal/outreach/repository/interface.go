package repository

import (
	"context"
	"errors"
	"time"

	"lead_outreach_backend/internal/outreach/domain"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a lead, template, sequence, attempt or job does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when a lead changed since it was read.
	ErrVersionConflict = errors.New("lead was modified concurrently")
	// ErrJobFinalized is returned when a save targets a job that is already terminal.
	ErrJobFinalized = errors.New("campaign job already finalized")
)

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// LeadReader provides read-only access to leads.
type LeadReader interface {
	GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	// ListLeadsByID returns the leads that exist, in no particular order.
	ListLeadsByID(ctx context.Context, ids []uuid.UUID) ([]domain.Lead, error)
	// ListDueSequenceLeads returns enrolled NEW, CONTACTED or REPLIED leads whose
	// next follow-up is at or before now, oldest first, at most limit.
	ListDueSequenceLeads(ctx context.Context, now time.Time, limit int) ([]domain.Lead, error)
	// ListDecayCandidates returns NEW and CONTACTED leads that are not COLD and
	// have not been decayed on now's calendar day.
	ListDecayCandidates(ctx context.Context, now time.Time) ([]domain.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]domain.Lead, error)
}

// LeadWriter provides write access to leads.
type LeadWriter interface {
	CreateLead(ctx context.Context, lead *domain.Lead) error
	// SaveLead persists lead when its Version matches the stored one and bumps Version.
	SaveLead(ctx context.Context, lead *domain.Lead) error
}

// TemplateStore provides access to message templates.
type TemplateStore interface {
	GetTemplate(ctx context.Context, id uuid.UUID) (domain.Template, error)
	GetDefaultTemplate(ctx context.Context, channel domain.Channel) (domain.Template, error)
	// ListTemplateVariants returns active templates of channel sharing baseName, ordered by name.
	ListTemplateVariants(ctx context.Context, baseName string, channel domain.Channel) ([]domain.Template, error)
	// UpsertTemplate inserts or updates by name, keeping delivery counters.
	UpsertTemplate(ctx context.Context, tpl *domain.Template) error
	IncrementTemplateStats(ctx context.Context, id uuid.UUID, stats domain.TemplateStats) error
}

// SequenceStore provides access to sequences.
type SequenceStore interface {
	GetSequence(ctx context.Context, id uuid.UUID) (domain.Sequence, error)
	// UpsertSequence inserts or updates by name and replaces the step list.
	UpsertSequence(ctx context.Context, seq *domain.Sequence) error
	// DeleteSequence removes the sequence and unenrolls its leads.
	DeleteSequence(ctx context.Context, id uuid.UUID) error
}

// ContactLog is the append-only log of send attempts.
type ContactLog interface {
	AppendContactAttempt(ctx context.Context, attempt *domain.ContactAttempt) error
	// ListContactAttempts returns the lead's attempts, newest first.
	ListContactAttempts(ctx context.Context, leadID uuid.UUID) ([]domain.ContactAttempt, error)
	// MarkLatestAttemptResponded fills RespondedAt on the lead's most recent unanswered attempt.
	MarkLatestAttemptResponded(ctx context.Context, leadID uuid.UUID, at time.Time) (domain.ContactAttempt, error)
	// MarkAttemptDelivered fills DeliveredAt once for the attempt with providerMessageID.
	MarkAttemptDelivered(ctx context.Context, providerMessageID string, at time.Time) (domain.ContactAttempt, error)
}

// JobStore persists campaign jobs.
type JobStore interface {
	GetJob(ctx context.Context, id uuid.UUID) (domain.CampaignJob, error)
	// SaveJob inserts or updates the job unless the stored row is terminal,
	// in which case it returns ErrJobFinalized and leaves the row untouched.
	SaveJob(ctx context.Context, job *domain.CampaignJob) error
	// SaveJobProgress writes the counters of a RUNNING or CANCELLED job and
	// leaves its status alone.
	SaveJobProgress(ctx context.Context, job *domain.CampaignJob) error
	// CancelJob moves a PENDING or RUNNING job to CANCELLED. It returns
	// ErrJobFinalized when the job already finished.
	CancelJob(ctx context.Context, id uuid.UUID, at time.Time) (domain.CampaignJob, error)
	// ClaimPendingJobs marks up to limit pending, unclaimed jobs as enqueued and returns them.
	ClaimPendingJobs(ctx context.Context, limit int) ([]domain.CampaignJob, error)
	ReleaseJobClaim(ctx context.Context, id uuid.UUID) error
	DeleteFinishedJobsBefore(ctx context.Context, before time.Time) (int64, error)
}

// Store is the full outreach persistence surface.
type Store interface {
	LeadReader
	LeadWriter
	TemplateStore
	SequenceStore
	ContactLog
	JobStore
}

// LeadFilter narrows ListLeads. Zero values are ignored.
type LeadFilter struct {
	Statuses    []domain.LeadStatus
	Temperature domain.Temperature
	// NotContactedSince keeps leads never contacted or last contacted before it.
	NotContactedSince *time.Time
	// FollowupBefore keeps enrolled leads whose next follow-up is before it.
	FollowupBefore *time.Time
	Limit          int
}

var (
	_ Store = (*Repository)(nil)
	_ Store = (*Memory)(nil)
)
