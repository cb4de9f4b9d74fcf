package repository

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"lead_outreach_backend/internal/outreach/domain"

	"github.com/google/uuid"
)

// Memory is an in-process Store with the same semantics as Repository.
// Values are copied on the way in and out.
type Memory struct {
	mu        sync.RWMutex
	leads     map[uuid.UUID]domain.Lead
	templates map[uuid.UUID]domain.Template
	sequences map[uuid.UUID]domain.Sequence
	attempts  []domain.ContactAttempt
	jobs      map[uuid.UUID]domain.CampaignJob
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		leads:     make(map[uuid.UUID]domain.Lead),
		templates: make(map[uuid.UUID]domain.Template),
		sequences: make(map[uuid.UUID]domain.Sequence),
		jobs:      make(map[uuid.UUID]domain.CampaignJob),
	}
}

func ptr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneLead(l domain.Lead) domain.Lead {
	l.ResponseTimeHours = ptr(l.ResponseTimeHours)
	l.LastContactedAt = ptr(l.LastContactedAt)
	l.LastResponseAt = ptr(l.LastResponseAt)
	l.LastDecayedAt = ptr(l.LastDecayedAt)
	l.SequenceID = ptr(l.SequenceID)
	l.NextFollowupAt = ptr(l.NextFollowupAt)
	return l
}

func cloneSequence(s domain.Sequence) domain.Sequence {
	s.Steps = slices.Clone(s.Steps)
	return s
}

func cloneAttempt(a domain.ContactAttempt) domain.ContactAttempt {
	a.TemplateID = ptr(a.TemplateID)
	a.JobID = ptr(a.JobID)
	a.SequenceID = ptr(a.SequenceID)
	a.DeliveredAt = ptr(a.DeliveredAt)
	a.RespondedAt = ptr(a.RespondedAt)
	return a
}

func cloneJob(j domain.CampaignJob) domain.CampaignJob {
	j.Params.TemplateID = ptr(j.Params.TemplateID)
	j.Params.LeadIDs = slices.Clone(j.Params.LeadIDs)
	j.ItemErrors = slices.Clone(j.ItemErrors)
	j.CreatedBy = ptr(j.CreatedBy)
	j.EnqueuedAt = ptr(j.EnqueuedAt)
	j.StartedAt = ptr(j.StartedAt)
	j.CompletedAt = ptr(j.CompletedAt)
	return j
}

// ---- leads ----

func (m *Memory) GetLead(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lead, ok := m.leads[id]
	if !ok {
		return domain.Lead{}, ErrNotFound
	}
	return cloneLead(lead), nil
}

func (m *Memory) ListLeadsByID(_ context.Context, ids []uuid.UUID) ([]domain.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	leads := make([]domain.Lead, 0, len(ids))
	for _, id := range ids {
		if lead, ok := m.leads[id]; ok {
			leads = append(leads, cloneLead(lead))
		}
	}
	return leads, nil
}

func (m *Memory) ListDueSequenceLeads(_ context.Context, now time.Time, limit int) ([]domain.Lead, error) {
	if limit < 1 {
		limit = 100
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	due := make([]domain.Lead, 0)
	for _, lead := range m.leads {
		if lead.SequenceID == nil || lead.NextFollowupAt == nil || lead.NextFollowupAt.After(now) {
			continue
		}
		switch lead.Status {
		case domain.LeadStatusNew, domain.LeadStatusContacted, domain.LeadStatusReplied:
			due = append(due, cloneLead(lead))
		case domain.LeadStatusClosed, domain.LeadStatusLost:
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].NextFollowupAt.Equal(*due[j].NextFollowupAt) {
			return due[i].ID.String() < due[j].ID.String()
		}
		return due[i].NextFollowupAt.Before(*due[j].NextFollowupAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *Memory) ListDecayCandidates(_ context.Context, now time.Time) ([]domain.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	candidates := make([]domain.Lead, 0)
	for _, lead := range m.leads {
		if lead.Status != domain.LeadStatusNew && lead.Status != domain.LeadStatusContacted {
			continue
		}
		if lead.Temperature == domain.TemperatureCold {
			continue
		}
		if lead.LastDecayedAt != nil && domain.SameDay(*lead.LastDecayedAt, now) {
			continue
		}
		candidates = append(candidates, cloneLead(lead))
	}
	sortByCreated(candidates)
	return candidates, nil
}

func (m *Memory) ListLeads(_ context.Context, filter LeadFilter) ([]domain.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	leads := make([]domain.Lead, 0)
	for _, lead := range m.leads {
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, lead.Status) {
			continue
		}
		if filter.Temperature != "" && lead.Temperature != filter.Temperature {
			continue
		}
		if filter.NotContactedSince != nil && lead.LastContactedAt != nil && !lead.LastContactedAt.Before(*filter.NotContactedSince) {
			continue
		}
		if filter.FollowupBefore != nil {
			if lead.SequenceID == nil || lead.NextFollowupAt == nil || !lead.NextFollowupAt.Before(*filter.FollowupBefore) {
				continue
			}
		}
		leads = append(leads, cloneLead(lead))
	}

	sort.SliceStable(leads, func(i, j int) bool {
		if leads[i].Score != leads[j].Score {
			return leads[i].Score > leads[j].Score
		}
		return leads[i].CreatedAt.Before(leads[j].CreatedAt)
	})
	if filter.Limit > 0 && len(leads) > filter.Limit {
		leads = leads[:filter.Limit]
	}
	return leads, nil
}

func sortByCreated(leads []domain.Lead) {
	sort.SliceStable(leads, func(i, j int) bool {
		return leads[i].CreatedAt.Before(leads[j].CreatedAt)
	})
}

func (m *Memory) CreateLead(_ context.Context, lead *domain.Lead) error {
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if lead.Status == "" {
		lead.Status = domain.LeadStatusNew
	}
	lead.SetScore(lead.Score)
	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now
	lead.Version = 1

	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads[lead.ID] = cloneLead(*lead)
	return nil
}

func (m *Memory) SaveLead(_ context.Context, lead *domain.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.leads[lead.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != lead.Version {
		return ErrVersionConflict
	}
	lead.SetScore(lead.Score)
	lead.Version++
	lead.UpdatedAt = time.Now().UTC()
	m.leads[lead.ID] = cloneLead(*lead)
	return nil
}

// ---- templates ----

func (m *Memory) GetTemplate(_ context.Context, id uuid.UUID) (domain.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tpl, ok := m.templates[id]
	if !ok {
		return domain.Template{}, ErrNotFound
	}
	return tpl, nil
}

func (m *Memory) GetDefaultTemplate(_ context.Context, channel domain.Channel) (domain.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, tpl := range m.sortedTemplates() {
		if tpl.Channel == channel && tpl.IsDefault && tpl.Active {
			return tpl, nil
		}
	}
	return domain.Template{}, ErrNotFound
}

func (m *Memory) ListTemplateVariants(_ context.Context, baseName string, channel domain.Channel) ([]domain.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	variants := make([]domain.Template, 0)
	for _, tpl := range m.sortedTemplates() {
		if tpl.Channel != channel || !tpl.Active {
			continue
		}
		if tpl.Name == baseName || strings.HasPrefix(tpl.Name, baseName+" - ") {
			variants = append(variants, tpl)
		}
	}
	return variants, nil
}

func (m *Memory) sortedTemplates() []domain.Template {
	templates := make([]domain.Template, 0, len(m.templates))
	for _, tpl := range m.templates {
		templates = append(templates, tpl)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })
	return templates
}

func (m *Memory) UpsertTemplate(_ context.Context, tpl *domain.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for id, existing := range m.templates {
		if existing.Name != tpl.Name {
			continue
		}
		tpl.ID = id
		tpl.Sent, tpl.Opened, tpl.Responded = existing.Sent, existing.Opened, existing.Responded
		tpl.CreatedAt = existing.CreatedAt
		tpl.UpdatedAt = now
		m.templates[id] = *tpl
		return nil
	}

	if tpl.ID == uuid.Nil {
		tpl.ID = uuid.New()
	}
	tpl.CreatedAt, tpl.UpdatedAt = now, now
	m.templates[tpl.ID] = *tpl
	return nil
}

func (m *Memory) IncrementTemplateStats(_ context.Context, id uuid.UUID, stats domain.TemplateStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tpl, ok := m.templates[id]
	if !ok {
		return ErrNotFound
	}
	tpl.Sent += stats.Sent
	tpl.Opened += stats.Opened
	tpl.Responded += stats.Responded
	tpl.UpdatedAt = time.Now().UTC()
	m.templates[id] = tpl
	return nil
}

// ---- sequences ----

func (m *Memory) GetSequence(_ context.Context, id uuid.UUID) (domain.Sequence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seq, ok := m.sequences[id]
	if !ok {
		return domain.Sequence{}, ErrNotFound
	}
	return cloneSequence(seq), nil
}

func (m *Memory) UpsertSequence(_ context.Context, seq *domain.Sequence) error {
	if err := seq.Normalize(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for id, existing := range m.sequences {
		if existing.Name == seq.Name {
			seq.ID = id
			seq.CreatedAt = existing.CreatedAt
			seq.UpdatedAt = now
			m.sequences[id] = cloneSequence(*seq)
			return nil
		}
	}
	if seq.ID == uuid.Nil {
		seq.ID = uuid.New()
	}
	seq.CreatedAt, seq.UpdatedAt = now, now
	m.sequences[seq.ID] = cloneSequence(*seq)
	return nil
}

func (m *Memory) DeleteSequence(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sequences[id]; !ok {
		return ErrNotFound
	}
	delete(m.sequences, id)
	for leadID, lead := range m.leads {
		if lead.SequenceID != nil && *lead.SequenceID == id {
			lead.ClearSequence()
			lead.Version++
			m.leads[leadID] = lead
		}
	}
	return nil
}

// ---- contact attempts ----

func (m *Memory) AppendContactAttempt(_ context.Context, attempt *domain.ContactAttempt) error {
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	if attempt.SentAt.IsZero() {
		attempt.SentAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, cloneAttempt(*attempt))
	return nil
}

func (m *Memory) ListContactAttempts(_ context.Context, leadID uuid.UUID) ([]domain.ContactAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	attempts := make([]domain.ContactAttempt, 0)
	for i := len(m.attempts) - 1; i >= 0; i-- {
		if m.attempts[i].LeadID == leadID {
			attempts = append(attempts, cloneAttempt(m.attempts[i]))
		}
	}
	sort.SliceStable(attempts, func(i, j int) bool { return attempts[i].SentAt.After(attempts[j].SentAt) })
	return attempts, nil
}

func (m *Memory) MarkLatestAttemptResponded(_ context.Context, leadID uuid.UUID, at time.Time) (domain.ContactAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.latestAttempt(func(a domain.ContactAttempt) bool {
		return a.LeadID == leadID && a.RespondedAt == nil
	})
	if idx < 0 {
		return domain.ContactAttempt{}, ErrNotFound
	}
	m.attempts[idx].RespondedAt = &at
	return cloneAttempt(m.attempts[idx]), nil
}

func (m *Memory) MarkAttemptDelivered(_ context.Context, providerMessageID string, at time.Time) (domain.ContactAttempt, error) {
	if providerMessageID == "" {
		return domain.ContactAttempt{}, ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.latestAttempt(func(a domain.ContactAttempt) bool {
		return a.ProviderMessageID == providerMessageID
	})
	if idx < 0 {
		return domain.ContactAttempt{}, ErrNotFound
	}
	if m.attempts[idx].DeliveredAt == nil {
		m.attempts[idx].DeliveredAt = &at
	}
	return cloneAttempt(m.attempts[idx]), nil
}

// latestAttempt returns the index of the newest matching attempt; later appends win ties.
func (m *Memory) latestAttempt(match func(domain.ContactAttempt) bool) int {
	idx := -1
	for i, attempt := range m.attempts {
		if !match(attempt) {
			continue
		}
		if idx < 0 || !attempt.SentAt.Before(m.attempts[idx].SentAt) {
			idx = i
		}
	}
	return idx
}

// ---- campaign jobs ----

func (m *Memory) GetJob(_ context.Context, id uuid.UUID) (domain.CampaignJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.CampaignJob{}, ErrNotFound
	}
	return cloneJob(job), nil
}

func (m *Memory) SaveJob(_ context.Context, job *domain.CampaignJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if stored, ok := m.jobs[job.ID]; ok {
		if stored.Status.IsTerminal() {
			return ErrJobFinalized
		}
		job.CreatedAt = stored.CreatedAt
		job.EnqueuedAt = ptr(stored.EnqueuedAt)
	} else if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	m.jobs[job.ID] = cloneJob(*job)
	return nil
}

func (m *Memory) SaveJobProgress(_ context.Context, job *domain.CampaignJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.jobs[job.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Status != domain.JobRunning && stored.Status != domain.JobCancelled {
		return ErrJobFinalized
	}
	stored.ProcessedItems = job.ProcessedItems
	stored.SuccessfulItems = job.SuccessfulItems
	stored.FailedItems = job.FailedItems
	stored.SkippedItems = job.SkippedItems
	stored.ItemErrors = job.ItemErrors
	stored.UpdatedAt = time.Now().UTC()
	m.jobs[job.ID] = cloneJob(stored)
	return nil
}

func (m *Memory) CancelJob(_ context.Context, id uuid.UUID, at time.Time) (domain.CampaignJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.CampaignJob{}, ErrNotFound
	}
	if job.Status != domain.JobPending && job.Status != domain.JobRunning {
		return domain.CampaignJob{}, ErrJobFinalized
	}
	job.Status = domain.JobCancelled
	job.CompletedAt = &at
	job.UpdatedAt = time.Now().UTC()
	m.jobs[id] = job
	return cloneJob(job), nil
}

func (m *Memory) ClaimPendingJobs(_ context.Context, limit int) ([]domain.CampaignJob, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	pending := make([]domain.CampaignJob, 0)
	for _, job := range m.jobs {
		if job.Status == domain.JobPending && job.EnqueuedAt == nil {
			pending = append(pending, job)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if len(pending) > limit {
		pending = pending[:limit]
	}

	now := time.Now().UTC()
	claimed := make([]domain.CampaignJob, 0, len(pending))
	for _, job := range pending {
		enqueued := now
		job.EnqueuedAt = &enqueued
		job.UpdatedAt = now
		m.jobs[job.ID] = job
		claimed = append(claimed, cloneJob(job))
	}
	return claimed, nil
}

func (m *Memory) ReleaseJobClaim(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status != domain.JobPending {
		return nil
	}
	job.EnqueuedAt = nil
	m.jobs[id] = job
	return nil
}

func (m *Memory) DeleteFinishedJobsBefore(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, job := range m.jobs {
		if job.Status.IsTerminal() && job.CompletedAt != nil && job.CompletedAt.Before(before) {
			delete(m.jobs, id)
			deleted++
		}
	}
	return deleted, nil
}
