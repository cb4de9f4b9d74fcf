package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"lead_outreach_backend/internal/outreach/domain"

	"github.com/google/uuid"
)

func TestMemorySaveLeadRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	lead := &domain.Lead{Name: "Cafe Roma", Score: 50}
	if err := store.CreateLead(ctx, lead); err != nil {
		t.Fatalf("create: %v", err)
	}

	first, _ := store.GetLead(ctx, lead.ID)
	second, _ := store.GetLead(ctx, lead.ID)

	first.SetScore(80)
	if err := store.SaveLead(ctx, &first); err != nil {
		t.Fatalf("first save: %v", err)
	}
	second.SetScore(10)
	if err := store.SaveLead(ctx, &second); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	stored, _ := store.GetLead(ctx, lead.ID)
	if stored.Score != 80 || stored.Temperature != domain.TemperatureHot {
		t.Fatalf("expected first write to win, got score %d (%s)", stored.Score, stored.Temperature)
	}
}

func TestMemorySaveJobRejectsTerminalRow(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	job := &domain.CampaignJob{Status: domain.JobPending, TotalItems: 2}
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("save: %v", err)
	}

	cancelled := *job
	if err := cancelled.Transition(domain.JobCancelled, time.Now()); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := store.SaveJob(ctx, &cancelled); err != nil {
		t.Fatalf("cancel save: %v", err)
	}

	running := *job
	running.Status = domain.JobRunning
	if err := store.SaveJob(ctx, &running); !errors.Is(err, ErrJobFinalized) {
		t.Fatalf("expected ErrJobFinalized, got %v", err)
	}

	stored, _ := store.GetJob(ctx, job.ID)
	if stored.Status != domain.JobCancelled {
		t.Fatalf("expected cancelled to stick, got %s", stored.Status)
	}
}

func TestMemoryClaimPendingJobsOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	for range 3 {
		if err := store.SaveJob(ctx, &domain.CampaignJob{Status: domain.JobPending}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	claimed, err := store.ClaimPendingJobs(ctx, 2)
	if err != nil || len(claimed) != 2 {
		t.Fatalf("expected 2 claimed jobs, got %d (%v)", len(claimed), err)
	}
	rest, _ := store.ClaimPendingJobs(ctx, 10)
	if len(rest) != 1 {
		t.Fatalf("expected 1 remaining job, got %d", len(rest))
	}

	if err := store.ReleaseJobClaim(ctx, rest[0].ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	again, _ := store.ClaimPendingJobs(ctx, 10)
	if len(again) != 1 || again[0].ID != rest[0].ID {
		t.Fatalf("expected released job to be claimable again, got %+v", again)
	}
}

func TestMemoryListDueSequenceLeads(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	seqID := uuid.New()

	mk := func(status domain.LeadStatus, due time.Time) uuid.UUID {
		lead := &domain.Lead{Name: "L", Score: 50, Status: status, SequenceID: &seqID, SequenceStep: 1, NextFollowupAt: &due}
		if err := store.CreateLead(ctx, lead); err != nil {
			t.Fatalf("create: %v", err)
		}
		return lead.ID
	}
	oldest := mk(domain.LeadStatusContacted, now.Add(-48*time.Hour))
	mk(domain.LeadStatusReplied, now.Add(-time.Hour))
	mk(domain.LeadStatusLost, now.Add(-time.Hour))
	mk(domain.LeadStatusNew, now.Add(time.Hour))

	due, err := store.ListDueSequenceLeads(ctx, now, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due leads, got %d", len(due))
	}
	if due[0].ID != oldest {
		t.Fatal("expected oldest follow-up first")
	}

	limited, _ := store.ListDueSequenceLeads(ctx, now, 1)
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestMemoryTemplateVariantsAndUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	for _, name := range []string{"Intro", "Intro - B", "Intro Extended", "Other - A"} {
		if err := store.UpsertTemplate(ctx, &domain.Template{Name: name, Channel: domain.ChannelWhatsApp, Content: "hi", Active: true}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	variants, err := store.ListTemplateVariants(ctx, "Intro", domain.ChannelWhatsApp)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(variants) != 2 || variants[0].Name != "Intro" || variants[1].Name != "Intro - B" {
		t.Fatalf("unexpected variants: %+v", variants)
	}

	if err := store.IncrementTemplateStats(ctx, variants[0].ID, domain.TemplateStats{Sent: 3}); err != nil {
		t.Fatalf("increment: %v", err)
	}
	updated := &domain.Template{Name: "Intro", Channel: domain.ChannelWhatsApp, Content: "hello", Active: true}
	if err := store.UpsertTemplate(ctx, updated); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if updated.ID != variants[0].ID || updated.Sent != 3 {
		t.Fatalf("expected upsert to keep id and counters, got %+v", updated)
	}
}

func TestMemoryDeleteSequenceUnenrollsLeads(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	seq := &domain.Sequence{Name: "Default", Active: true, Steps: []domain.SequenceStep{
		{StepNumber: 1, Channel: domain.ChannelWhatsApp, TemplateID: uuid.New()},
	}}
	if err := store.UpsertSequence(ctx, seq); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	due := time.Now().Add(time.Hour)
	lead := &domain.Lead{Name: "L", Score: 50, SequenceID: &seq.ID, NextFollowupAt: &due}
	if err := store.CreateLead(ctx, lead); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.DeleteSequence(ctx, seq.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	stored, _ := store.GetLead(ctx, lead.ID)
	if stored.SequenceState() != domain.SequenceUnenrolled {
		t.Fatalf("expected lead to be unenrolled, got %s", stored.SequenceState())
	}
	if err := store.DeleteSequence(ctx, seq.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryMarkLatestAttemptResponded(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	leadID := uuid.New()
	base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	for i := range 2 {
		if err := store.AppendContactAttempt(ctx, &domain.ContactAttempt{
			LeadID: leadID, Channel: domain.ChannelEmail, Source: domain.SourceCampaign,
			ProviderMessageID: "msg-" + string(rune('a'+i)), SentAt: base.Add(time.Duration(i) * time.Hour),
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	attempt, err := store.MarkLatestAttemptResponded(ctx, leadID, base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("mark responded: %v", err)
	}
	if attempt.ProviderMessageID != "msg-b" {
		t.Fatalf("expected the latest attempt, got %s", attempt.ProviderMessageID)
	}

	delivered, err := store.MarkAttemptDelivered(ctx, "msg-a", base.Add(time.Minute))
	if err != nil || delivered.DeliveredAt == nil {
		t.Fatalf("expected delivery to be stamped, got %+v (%v)", delivered, err)
	}
	if _, err := store.MarkAttemptDelivered(ctx, "unknown", base); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
