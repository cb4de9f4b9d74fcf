package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTemperatureForThresholds(t *testing.T) {
	tests := []struct {
		score int
		want  Temperature
	}{
		{100, TemperatureHot},
		{70, TemperatureHot},
		{69, TemperatureWarm},
		{40, TemperatureWarm},
		{39, TemperatureCold},
		{0, TemperatureCold},
	}
	for _, tt := range tests {
		if got := TemperatureFor(tt.score); got != tt.want {
			t.Errorf("TemperatureFor(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestSetScoreKeepsTemperatureConsistent(t *testing.T) {
	lead := Lead{}
	for score := -20; score <= 130; score += 7 {
		lead.SetScore(score)
		if lead.Score < MinScore || lead.Score > MaxScore {
			t.Fatalf("score %d escaped bounds", lead.Score)
		}
		if lead.Temperature != TemperatureFor(lead.Score) {
			t.Fatalf("temperature %s inconsistent with score %d", lead.Temperature, lead.Score)
		}
	}
}

func TestJobStateMachine(t *testing.T) {
	tests := []struct {
		from, to JobStatus
		allowed  bool
	}{
		{JobPending, JobRunning, true},
		{JobPending, JobCancelled, true},
		{JobPending, JobCompleted, false},
		{JobRunning, JobCompleted, true},
		{JobRunning, JobCancelled, true},
		{JobRunning, JobFailed, true},
		{JobRunning, JobPending, false},
		{JobCompleted, JobRunning, false},
		{JobCancelled, JobRunning, false},
		{JobFailed, JobCompleted, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.allowed {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestJobTransitionStampsTimes(t *testing.T) {
	job := CampaignJob{Status: JobPending}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := job.Transition(JobRunning, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.StartedAt == nil || !job.StartedAt.Equal(now) {
		t.Fatal("expected startedAt to be stamped")
	}
	if err := job.Transition(JobCompleted, now.Add(time.Minute)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.CompletedAt == nil {
		t.Fatal("expected completedAt to be stamped")
	}
	if err := job.Transition(JobRunning, now); err == nil {
		t.Fatal("expected terminal job to reject transitions")
	}
}

func TestJobRecordKeepsCounterInvariant(t *testing.T) {
	job := CampaignJob{TotalItems: 4}
	outcomes := []ItemOutcome{OutcomeSuccess, OutcomeSkipped, OutcomeFailed, OutcomeSuccess}

	for i, outcome := range outcomes {
		job.Record(uuid.New(), outcome, "reason")
		if job.ProcessedItems != job.SuccessfulItems+job.FailedItems+job.SkippedItems {
			t.Fatalf("counter invariant broken after item %d", i)
		}
		if job.ProcessedItems > job.TotalItems {
			t.Fatalf("processed exceeds total after item %d", i)
		}
	}
	if len(job.ItemErrors) != 2 {
		t.Fatalf("expected 2 recorded item errors, got %d", len(job.ItemErrors))
	}
	if job.ProgressPercent() != 100 {
		t.Fatalf("expected 100%% progress, got %v", job.ProgressPercent())
	}
}

func TestTemplateBaseName(t *testing.T) {
	tests := map[string]string{
		"Intro - A":       "Intro",
		"Intro - B - v2":  "Intro",
		"Follow up":       "Follow up",
		" Spaced  - test": "Spaced",
	}
	for name, want := range tests {
		if got := (Template{Name: name}).BaseName(); got != want {
			t.Errorf("BaseName(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestSequenceNormalizeRejectsGaps(t *testing.T) {
	seq := Sequence{Name: "gap", Steps: []SequenceStep{
		{StepNumber: 1, Channel: ChannelWhatsApp},
		{StepNumber: 3, Channel: ChannelEmail},
	}}
	if err := seq.Normalize(); err == nil {
		t.Fatal("expected error for step gap")
	}

	ordered := Sequence{Name: "ok", Steps: []SequenceStep{
		{StepNumber: 2, Channel: ChannelEmail, DelayDays: 3},
		{StepNumber: 1, Channel: ChannelWhatsApp},
	}}
	if err := ordered.Normalize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ordered.Steps[0].StepNumber != 1 {
		t.Fatal("expected steps to be sorted")
	}
	if step, ok := ordered.Step(2); !ok || step.Delay() != 72*time.Hour {
		t.Fatalf("expected step 2 with a 72h delay, got %+v", step)
	}
}
