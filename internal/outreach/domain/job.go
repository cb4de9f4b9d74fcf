package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the state of a campaign job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// MaxRecordedItemErrors bounds the per-item error list kept on a job.
const MaxRecordedItemErrors = 200

// ParseJobStatus accepts any casing of the five job statuses.
func ParseJobStatus(raw string) (JobStatus, error) {
	s := JobStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case JobPending, JobRunning, JobCompleted, JobFailed, JobCancelled:
		return s, nil
	}
	return "", fmt.Errorf("unknown job status %q", raw)
}

// IsTerminal reports whether no transition may leave the status.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	case JobPending, JobRunning:
		return false
	}
	return false
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobPending:
		return to == JobRunning || to == JobCancelled || to == JobFailed
	case JobRunning:
		return to == JobCompleted || to == JobCancelled || to == JobFailed
	case JobCompleted, JobFailed, JobCancelled:
		return false
	}
	return false
}

// ErrInvalidTransition is returned when a job status change is not allowed.
type ErrInvalidTransition struct {
	From JobStatus
	To   JobStatus
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("job cannot move from %s to %s", e.From, e.To)
}

// ItemOutcome is the result of handling one lead in a campaign.
type ItemOutcome string

const (
	OutcomeSuccess ItemOutcome = "success"
	OutcomeFailed  ItemOutcome = "failed"
	OutcomeSkipped ItemOutcome = "skipped"
)

// ItemError records why a lead was not successfully handled.
type ItemError struct {
	LeadID  uuid.UUID   `json:"leadId"`
	Outcome ItemOutcome `json:"outcome"`
	Reason  string      `json:"reason"`
}

// JobParameters are the inputs of a campaign job.
type JobParameters struct {
	Channel    Channel     `json:"channel"`
	TemplateID *uuid.UUID  `json:"templateId,omitempty"`
	DryRun     bool        `json:"dryRun"`
	LeadIDs    []uuid.UUID `json:"leadIds"`
}

// CampaignJob is the persisted progress record of one bulk send.
// Counters are only written by the worker running the job.
type CampaignJob struct {
	ID     uuid.UUID
	Status JobStatus
	Params JobParameters

	TotalItems      int
	ProcessedItems  int
	SuccessfulItems int
	FailedItems     int
	SkippedItems    int
	ItemErrors      []ItemError
	ErrorMessage    string

	CreatedBy   *uuid.UUID
	CreatedAt   time.Time
	EnqueuedAt  *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time
}

// Transition moves the job to status `to`, stamping start and completion times.
func (j *CampaignJob) Transition(to JobStatus, at time.Time) error {
	if !CanTransition(j.Status, to) {
		return ErrInvalidTransition{From: j.Status, To: to}
	}
	at = at.UTC()
	switch to {
	case JobRunning:
		j.StartedAt = &at
	case JobCompleted, JobFailed, JobCancelled:
		j.CompletedAt = &at
	case JobPending:
	}
	j.Status = to
	return nil
}

// Record counts one handled item. processed always equals the sum of the outcome counters.
func (j *CampaignJob) Record(leadID uuid.UUID, outcome ItemOutcome, reason string) {
	switch outcome {
	case OutcomeSuccess:
		j.SuccessfulItems++
	case OutcomeFailed:
		j.FailedItems++
	case OutcomeSkipped:
		j.SkippedItems++
	}
	j.ProcessedItems = j.SuccessfulItems + j.FailedItems + j.SkippedItems

	if outcome != OutcomeSuccess && len(j.ItemErrors) < MaxRecordedItemErrors {
		j.ItemErrors = append(j.ItemErrors, ItemError{LeadID: leadID, Outcome: outcome, Reason: reason})
	}
}

// ProgressPercent is processed/total in percent, rounded to one decimal.
func (j CampaignJob) ProgressPercent() float64 {
	if j.TotalItems <= 0 {
		return 0
	}
	pct := float64(j.ProcessedItems) / float64(j.TotalItems) * 100
	return float64(int(pct*10+0.5)) / 10
}

// Remaining is the number of items not yet processed.
func (j CampaignJob) Remaining() int {
	if r := j.TotalItems - j.ProcessedItems; r > 0 {
		return r
	}
	return 0
}

// IsActive reports whether the job is pending or running.
func (j CampaignJob) IsActive() bool {
	return !j.Status.IsTerminal()
}
