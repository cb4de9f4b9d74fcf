package bulk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"lead_outreach_backend/internal/channel"
	"lead_outreach_backend/internal/events"
	"lead_outreach_backend/internal/outreach/contact"
	"lead_outreach_backend/internal/outreach/domain"
	"lead_outreach_backend/internal/outreach/repository"
	"lead_outreach_backend/internal/outreach/template"
	"lead_outreach_backend/platform/logger"

	"github.com/google/uuid"
)

// timeline records sends and pauses in the order they happened.
type timeline struct {
	mu     sync.Mutex
	events []string
}

func (t *timeline) add(event string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *timeline) count(event string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, e := range t.events {
		if e == event {
			n++
		}
	}
	return n
}

type fakePacer struct {
	tl    *timeline
	waits int
}

func (p *fakePacer) Wait(ctx context.Context) error {
	p.waits++
	return ctx.Err()
}

func (p *fakePacer) Pause(ctx context.Context, _ time.Duration) error {
	p.tl.add("pause")
	return ctx.Err()
}

type fakeSender struct {
	tl     *timeline
	failOn map[uuid.UUID]string
	panics map[uuid.UUID]bool
	onSend func(n int)
	sent   int
}

func (s *fakeSender) Send(_ context.Context, lead domain.Lead, _ domain.Message, _ domain.Channel) channel.Result {
	s.sent++
	s.tl.add("send")
	if s.onSend != nil {
		s.onSend(s.sent)
	}
	if s.panics[lead.ID] {
		panic("provider client exploded")
	}
	if reason, ok := s.failOn[lead.ID]; ok {
		return channel.Result{Error: reason}
	}
	return channel.Result{Success: true, ProviderMessageID: fmt.Sprintf("msg-%d", s.sent)}
}

type harness struct {
	store      *repository.Memory
	sender     *fakeSender
	pacer      *fakePacer
	bus        *events.InMemoryBus
	tl         *timeline
	dispatcher *Dispatcher
	leads      []uuid.UUID
}

func newHarness(t *testing.T, store Store, mem *repository.Memory, leadCount int) *harness {
	t.Helper()
	ctx := context.Background()
	log := logger.NewWithWriter("development", io.Discard)
	tl := &timeline{}
	h := &harness{
		store:  mem,
		sender: &fakeSender{tl: tl, failOn: map[uuid.UUID]string{}, panics: map[uuid.UUID]bool{}},
		pacer:  &fakePacer{tl: tl},
		bus:    events.NewInMemoryBus(log),
		tl:     tl,
	}
	for i := 0; i < leadCount; i++ {
		lead := &domain.Lead{Name: fmt.Sprintf("Lead %d", i), Phone: fmt.Sprintf("+31612345%03d", i), Score: 40}
		if err := mem.CreateLead(ctx, lead); err != nil {
			t.Fatalf("create lead: %v", err)
		}
		h.leads = append(h.leads, lead.ID)
	}
	tpl := &domain.Template{Name: "Intro", Channel: domain.ChannelWhatsApp, Content: "Hi {name}", Active: true, IsDefault: true}
	if err := mem.UpsertTemplate(ctx, tpl); err != nil {
		t.Fatalf("template: %v", err)
	}

	h.dispatcher = NewDispatcher(store, h.sender, template.NewResolver(mem), contact.New(mem, h.bus, log), h.pacer, h.bus, log,
		Config{BatchSize: 30, BatchDelay: 20 * time.Second, DefaultRegion: "NL"})
	return h
}

func (h *harness) createJob(t *testing.T, dryRun bool) domain.CampaignJob {
	t.Helper()
	job := &domain.CampaignJob{
		Status:     domain.JobPending,
		Params:     domain.JobParameters{Channel: domain.ChannelWhatsApp, DryRun: dryRun, LeadIDs: h.leads},
		TotalItems: len(h.leads),
	}
	if err := h.store.SaveJob(context.Background(), job); err != nil {
		t.Fatalf("save job: %v", err)
	}
	return *job
}

func TestRunPausesBetweenBatches(t *testing.T) {
	mem := repository.NewMemory()
	h := newHarness(t, mem, mem, 35)
	job := h.createJob(t, false)

	got, err := h.dispatcher.Run(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got.Status != domain.JobCompleted || got.CompletedAt == nil {
		t.Fatalf("expected completed job, got %s", got.Status)
	}
	if got.ProcessedItems != 35 || got.SuccessfulItems != 35 {
		t.Fatalf("unexpected counters: %+v", got)
	}

	pauseAt := -1
	for i, e := range h.tl.events {
		if e == "pause" {
			if pauseAt >= 0 {
				t.Fatal("expected exactly one batch pause")
			}
			pauseAt = i
		}
	}
	if pauseAt != 30 {
		t.Fatalf("expected the pause right before item 31, got position %d", pauseAt)
	}
	if h.pacer.waits != 35 {
		t.Fatalf("expected one pacing wait per send, got %d", h.pacer.waits)
	}

	lead, _ := mem.GetLead(context.Background(), h.leads[0])
	if lead.Status != domain.LeadStatusContacted || lead.LastContactedAt == nil {
		t.Fatalf("expected lead marked contacted, got %s", lead.Status)
	}
	attempts, _ := mem.ListContactAttempts(context.Background(), h.leads[0])
	if len(attempts) != 1 || attempts[0].JobID == nil || *attempts[0].JobID != job.ID {
		t.Fatalf("expected one campaign attempt, got %+v", attempts)
	}
}

func TestRunDryRunSendsNothing(t *testing.T) {
	mem := repository.NewMemory()
	h := newHarness(t, mem, mem, 35)
	job := h.createJob(t, true)

	got, err := h.dispatcher.Run(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got.Status != domain.JobCompleted || got.SuccessfulItems != 35 {
		t.Fatalf("unexpected dry run result: %+v", got)
	}
	if h.sender.sent != 0 || h.tl.count("pause") != 0 || h.pacer.waits != 0 {
		t.Fatalf("dry run must not send or pace: sent=%d pauses=%d waits=%d", h.sender.sent, h.tl.count("pause"), h.pacer.waits)
	}
	lead, _ := mem.GetLead(context.Background(), h.leads[0])
	if lead.Status != domain.LeadStatusNew {
		t.Fatalf("dry run must not mutate leads, got %s", lead.Status)
	}
}

func TestRunSkipsInvalidContactsAndContinuesOnFailures(t *testing.T) {
	ctx := context.Background()
	mem := repository.NewMemory()
	h := newHarness(t, mem, mem, 4)

	if _, err := repository.UpdateLead(ctx, mem, h.leads[1], func(l *domain.Lead) error {
		l.Phone = "12"
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	h.sender.failOn[h.leads[2]] = "provider rejected number"
	h.sender.panics[h.leads[3]] = true

	job := h.createJob(t, false)
	got, err := h.dispatcher.Run(ctx, job.ID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got.Status != domain.JobCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.SuccessfulItems != 1 || got.SkippedItems != 1 || got.FailedItems != 2 || got.ProcessedItems != 4 {
		t.Fatalf("unexpected counters: %+v", got)
	}
	if len(got.ItemErrors) != 3 {
		t.Fatalf("expected 3 item errors, got %+v", got.ItemErrors)
	}
	if got.ItemErrors[0].LeadID != h.leads[1] || got.ItemErrors[0].Outcome != domain.OutcomeSkipped {
		t.Fatalf("expected invalid phone to be skipped first, got %+v", got.ItemErrors[0])
	}
	if got.ItemErrors[1].Reason != "provider rejected number" {
		t.Fatalf("expected provider reason, got %q", got.ItemErrors[1].Reason)
	}
}

func TestRunStopsWhenCancelled(t *testing.T) {
	ctx := context.Background()
	mem := repository.NewMemory()
	h := newHarness(t, mem, mem, 10)
	job := h.createJob(t, false)

	h.sender.onSend = func(n int) {
		if n != 5 {
			return
		}
		if _, err := mem.CancelJob(ctx, job.ID, time.Now()); err != nil {
			t.Errorf("cancel: %v", err)
		}
	}

	got, err := h.dispatcher.Run(ctx, job.ID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got.Status != domain.JobCancelled {
		t.Fatalf("expected cancelled job, got %s", got.Status)
	}
	if h.sender.sent != 5 {
		t.Fatalf("expected no sends after cancel, got %d", h.sender.sent)
	}
	if got.ProcessedItems != 5 || got.SuccessfulItems != 5 {
		t.Fatalf("expected the in-flight send counted, got processed=%d successful=%d", got.ProcessedItems, got.SuccessfulItems)
	}
	stored, _ := mem.GetJob(ctx, job.ID)
	if stored.Status != domain.JobCancelled || stored.ProcessedItems != 5 || stored.SuccessfulItems != 5 {
		t.Fatalf("unexpected stored job: %+v", stored)
	}
	if stored.CompletedAt == nil {
		t.Fatal("expected cancel time stamped")
	}
}

func TestRunLeavesJobRunningWhenPacingHitsDeadline(t *testing.T) {
	mem := repository.NewMemory()
	h := newHarness(t, mem, mem, 20)
	job := h.createJob(t, false)
	h.dispatcher.pacer = NewTokenBucketPacer(NewSendLimiter(100 * time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	got, err := h.dispatcher.Run(ctx, job.ID)
	if err == nil || !(errors.Is(err, errInterrupted) || errors.Is(err, context.DeadlineExceeded)) {
		t.Fatalf("expected interrupted run, got %v", err)
	}
	if got.Status != domain.JobRunning {
		t.Fatalf("expected job left running, got %s", got.Status)
	}
	sent := h.sender.sent
	if sent == 0 || sent >= 20 {
		t.Fatalf("expected a partial run, got %d sends", sent)
	}
	stored, _ := mem.GetJob(context.Background(), job.ID)
	if stored.Status != domain.JobRunning || stored.ProcessedItems != sent || stored.SuccessfulItems != sent {
		t.Fatalf("expected only sent leads recorded, got %+v", stored)
	}
	if stored.FailedItems != 0 || len(stored.ItemErrors) != 0 {
		t.Fatalf("interrupted lead must not be recorded as failed: %+v", stored.ItemErrors)
	}

	h.dispatcher.pacer = h.pacer
	resumed, err := h.dispatcher.Run(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Status != domain.JobCompleted || resumed.SuccessfulItems != 20 || h.sender.sent != 20 {
		t.Fatalf("expected resume to finish without resending, got %s successful=%d sent=%d",
			resumed.Status, resumed.SuccessfulItems, h.sender.sent)
	}
}

func TestRunSkipsOptedOutAndClosedLeads(t *testing.T) {
	ctx := context.Background()
	mem := repository.NewMemory()
	h := newHarness(t, mem, mem, 3)
	replies := contact.New(mem, h.bus, logger.NewWithWriter("development", io.Discard))
	if _, err := replies.RecordResponse(ctx, h.leads[0], "STOP, remove me"); err != nil {
		t.Fatalf("record response: %v", err)
	}
	if _, err := repository.UpdateLead(ctx, mem, h.leads[1], func(l *domain.Lead) error {
		l.Status = domain.LeadStatusClosed
		return nil
	}); err != nil {
		t.Fatalf("close lead: %v", err)
	}
	job := h.createJob(t, false)

	got, err := h.dispatcher.Run(ctx, job.ID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got.SkippedItems != 2 || got.SuccessfulItems != 1 || h.sender.sent != 1 {
		t.Fatalf("expected two skips and one send, got %+v sent=%d", got, h.sender.sent)
	}
	if got.ItemErrors[0].Reason != "lead opted out" || got.ItemErrors[1].Reason != "lead is closed" {
		t.Fatalf("unexpected skip reasons: %+v", got.ItemErrors)
	}
}

func TestRunSkipsFinishedJob(t *testing.T) {
	ctx := context.Background()
	mem := repository.NewMemory()
	h := newHarness(t, mem, mem, 3)
	job := h.createJob(t, false)
	if err := job.Transition(domain.JobCancelled, time.Now()); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := mem.SaveJob(ctx, &job); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := h.dispatcher.Run(ctx, job.ID)
	if err != nil || got.Status != domain.JobCancelled || h.sender.sent != 0 {
		t.Fatalf("expected untouched cancelled job, got %s err=%v sent=%d", got.Status, err, h.sender.sent)
	}
}

// flakyJobStore fails SaveJobProgress after a number of successful saves.
type flakyJobStore struct {
	*repository.Memory
	mu        sync.Mutex
	remaining int
}

func (s *flakyJobStore) SaveJobProgress(ctx context.Context, job *domain.CampaignJob) error {
	s.mu.Lock()
	fail := s.remaining == 0
	if s.remaining > 0 {
		s.remaining--
	}
	s.mu.Unlock()
	if fail {
		return errors.New("connection reset")
	}
	return s.Memory.SaveJobProgress(ctx, job)
}

func TestRunFailsJobWhenProgressCannotBePersisted(t *testing.T) {
	ctx := context.Background()
	mem := repository.NewMemory()
	// the first three items persist.
	store := &flakyJobStore{Memory: mem, remaining: 3}
	h := newHarness(t, store, mem, 5)
	job := h.createJob(t, false)

	got, err := h.dispatcher.Run(ctx, job.ID)
	if err == nil {
		t.Fatal("expected persistence error")
	}
	if got.Status != domain.JobFailed || got.ErrorMessage == "" {
		t.Fatalf("expected failed job with message, got %s %q", got.Status, got.ErrorMessage)
	}
	stored, _ := mem.GetJob(ctx, job.ID)
	if stored.Status != domain.JobFailed || stored.SuccessfulItems != 4 || stored.ProcessedItems != 4 {
		t.Fatalf("expected partial counts kept on the failed job, got %+v", stored)
	}
}

func TestRunPublishesFinishedEvent(t *testing.T) {
	mem := repository.NewMemory()
	h := newHarness(t, mem, mem, 2)
	var (
		mu       sync.Mutex
		finished []events.CampaignJobFinished
	)
	h.bus.Subscribe(events.CampaignJobFinished{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		finished = append(finished, e.(events.CampaignJobFinished))
		return nil
	}))
	job := h.createJob(t, false)

	if _, err := h.dispatcher.Run(context.Background(), job.ID); err != nil {
		t.Fatalf("run: %v", err)
	}
	h.bus.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(finished) != 1 || finished[0].Status != string(domain.JobCompleted) || finished[0].Successful != 2 {
		t.Fatalf("unexpected finished events: %+v", finished)
	}
}

func TestTokenBucketPacerPauseHonoursContext(t *testing.T) {
	p := NewTokenBucketPacer(NewSendLimiter(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Pause(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("first token must be available: %v", err)
	}
}
