package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"lead_outreach_backend/internal/events"
	"lead_outreach_backend/internal/outreach/contact"
	"lead_outreach_backend/internal/outreach/domain"
	"lead_outreach_backend/internal/outreach/jobs"
	"lead_outreach_backend/internal/outreach/repository"
	"lead_outreach_backend/internal/outreach/scoring"
	"lead_outreach_backend/internal/outreach/sequence"
	"lead_outreach_backend/internal/outreach/template"
	"lead_outreach_backend/internal/outreach/transport"
	"lead_outreach_backend/platform/apperr"
	"lead_outreach_backend/platform/logger"
	"lead_outreach_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type stubMaintenance struct {
	decayed int
	err     error
}

func (m stubMaintenance) RunDecay(context.Context) (int, error) { return m.decayed, m.err }

func (m stubMaintenance) RunSequences(context.Context) (sequence.Report, error) {
	return sequence.Report{Processed: 1, Sent: 1, Errors: []sequence.LeadError{}}, m.err
}

type testServer struct {
	engine *gin.Engine
	store  *repository.Memory
}

func newTestServer(t *testing.T, maintenance Maintenance) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewWithWriter("development", io.Discard)
	store := repository.NewMemory()
	bus := events.NewInMemoryBus(log)
	contacts := contact.New(store, bus, log)

	h := New(Deps{
		Campaigns:   jobs.NewTracker(store, nil, nil, jobs.Pacing{}, log),
		Sequences:   sequence.NewEngine(store, nil, template.NewResolver(store), contacts, log, sequence.Config{}),
		Scores:      scoring.NewEngine(store, log),
		Contacts:    contacts,
		Leads:       store,
		Maintenance: maintenance,
	}, validator.New())

	engine := gin.New()
	api := engine.Group("/api/v1/outreach")
	h.RegisterRoutes(api)
	h.RegisterMaintenanceRoutes(api.Group("/maintenance"))
	h.RegisterWebhookRoutes(api.Group("/webhooks"))
	return &testServer{engine: engine, store: store}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, "/api/v1/outreach"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) lead(t *testing.T, score int) domain.Lead {
	t.Helper()
	lead := &domain.Lead{Name: "Bar Tirana", Phone: "+355691234567", Score: score}
	if err := s.store.CreateLead(context.Background(), lead); err != nil {
		t.Fatalf("create lead: %v", err)
	}
	return *lead
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestCampaignLifecycle(t *testing.T) {
	s := newTestServer(t, stubMaintenance{})
	lead := s.lead(t, 50)

	rec := s.do(t, http.MethodPost, "/campaigns", transport.CreateCampaignRequest{Channel: "whatsapp", LeadIDs: []uuid.UUID{lead.ID}})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[transport.CampaignJobResponse](t, rec)
	if created.Status != string(domain.JobPending) || created.TotalItems != 1 {
		t.Fatalf("unexpected job: %+v", created)
	}

	rec = s.do(t, http.MethodGet, "/campaigns/"+created.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode[transport.CampaignJobResponse](t, rec); got.EstimatedSecondsRemaining == nil {
		t.Fatal("expected an estimate for a pending job")
	}

	if rec = s.do(t, http.MethodPost, "/campaigns/"+created.ID.String()+"/cancel", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on cancel, got %d", rec.Code)
	}
	if rec = s.do(t, http.MethodPost, "/campaigns/"+created.ID.String()+"/cancel", nil); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second cancel, got %d", rec.Code)
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	s := newTestServer(t, stubMaintenance{})

	tests := []struct {
		name string
		body any
	}{
		{"unknown channel", transport.CreateCampaignRequest{Channel: "fax", LeadIDs: []uuid.UUID{uuid.New()}}},
		{"no leads", transport.CreateCampaignRequest{Channel: "sms"}},
		{"malformed", map[string]any{"channel": 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := s.do(t, http.MethodPost, "/campaigns", tt.body); rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestCampaignNotFoundAndBadID(t *testing.T) {
	s := newTestServer(t, stubMaintenance{})
	if rec := s.do(t, http.MethodGet, "/campaigns/"+uuid.NewString(), nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/campaigns/nope", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSequenceEnrollment(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t, stubMaintenance{})
	lead := s.lead(t, 50)
	tpl := &domain.Template{Name: "Intro", Channel: domain.ChannelSMS, Content: "Hi", Active: true}
	if err := s.store.UpsertTemplate(ctx, tpl); err != nil {
		t.Fatalf("template: %v", err)
	}
	seq := &domain.Sequence{Name: "Touch", Active: true, Steps: []domain.SequenceStep{
		{StepNumber: 1, Channel: domain.ChannelSMS, TemplateID: tpl.ID, DelayHours: 1},
	}}
	if err := s.store.UpsertSequence(ctx, seq); err != nil {
		t.Fatalf("sequence: %v", err)
	}

	rec := s.do(t, http.MethodPost, "/leads/"+lead.ID.String()+"/sequence", transport.EnrollRequest{SequenceID: seq.ID})
	if rec.Code != http.StatusOK || !decode[transport.EnrollResponse](t, rec).Enrolled {
		t.Fatalf("expected enrollment, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/leads/"+lead.ID.String(), nil)
	if got := decode[transport.LeadResponse](t, rec); got.SequenceState != string(domain.SequenceAwaitingStep) {
		t.Fatalf("expected awaiting step, got %+v", got)
	}

	if rec = s.do(t, http.MethodDelete, "/leads/"+lead.ID.String()+"/sequence", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec = s.do(t, http.MethodPost, "/leads/"+lead.ID.String()+"/sequence", transport.EnrollRequest{SequenceID: uuid.New()}); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown sequence, got %d", rec.Code)
	}
}

func TestRecordResponseAndScoreAdjustments(t *testing.T) {
	s := newTestServer(t, stubMaintenance{})
	lead := s.lead(t, 50)

	rec := s.do(t, http.MethodPost, "/leads/"+lead.ID.String()+"/score/boost", transport.AdjustScoreRequest{Points: 25})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode[transport.LeadResponse](t, rec); got.Score != 75 || got.Temperature != string(domain.TemperatureHot) {
		t.Fatalf("unexpected boosted lead: %+v", got)
	}

	rec = s.do(t, http.MethodPost, "/leads/"+lead.ID.String()+"/score/penalize", nil)
	if got := decode[transport.LeadResponse](t, rec); got.Score != 65 {
		t.Fatalf("expected default penalty of 10, got %d", got.Score)
	}

	rec = s.do(t, http.MethodPost, "/leads/"+lead.ID.String()+"/responses", transport.RecordResponseRequest{Text: "Yes, tell me more"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[transport.LeadResponse](t, rec); got.Status != string(domain.LeadStatusReplied) || got.EngagementCount != 1 {
		t.Fatalf("unexpected lead after reply: %+v", got)
	}

	if rec = s.do(t, http.MethodPost, "/leads/"+uuid.NewString()+"/responses", transport.RecordResponseRequest{Text: "hi"}); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown lead, got %d", rec.Code)
	}
}

func TestScoreReports(t *testing.T) {
	s := newTestServer(t, stubMaintenance{})
	s.lead(t, 85)
	s.lead(t, 10)

	rec := s.do(t, http.MethodGet, "/scores/distribution", nil)
	dist := decode[transport.ScoreDistributionResponse](t, rec)
	if dist.Total != 2 || dist.ByTemperature["hot"] != 1 || dist.ByRange["0-20"] != 1 {
		t.Fatalf("unexpected distribution: %+v", dist)
	}

	rec = s.do(t, http.MethodGet, "/leads/attention", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode[transport.AttentionResponse](t, rec); len(got.HotNotContacted) != 1 {
		t.Fatalf("expected the uncontacted hot lead, got %+v", got)
	}
}

func TestDeliveryWebhook(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t, stubMaintenance{})
	lead := s.lead(t, 50)
	if err := s.store.AppendContactAttempt(ctx, &domain.ContactAttempt{
		LeadID: lead.ID, Channel: domain.ChannelWhatsApp, ProviderMessageID: "wamid.1", Source: domain.SourceCampaign,
	}); err != nil {
		t.Fatalf("attempt: %v", err)
	}

	if rec := s.do(t, http.MethodPost, "/webhooks/delivery", transport.DeliveryWebhookRequest{MessageID: "wamid.1", Status: "delivered"}); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/webhooks/delivery", transport.DeliveryWebhookRequest{MessageID: "unknown", Status: "read"}); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec := s.do(t, http.MethodGet, "/leads/"+lead.ID.String()+"/attempts", nil)
	attempts := decode[[]transport.ContactAttemptResponse](t, rec)
	if len(attempts) != 1 || attempts[0].DeliveredAt == nil {
		t.Fatalf("expected delivered attempt, got %+v", attempts)
	}
}

func TestMaintenanceTriggers(t *testing.T) {
	s := newTestServer(t, stubMaintenance{decayed: 3})
	rec := s.do(t, http.MethodPost, "/maintenance/decay", nil)
	if got := decode[transport.DecayResponse](t, rec); got.Decayed != 3 {
		t.Fatalf("expected 3 decayed, got %d", got.Decayed)
	}
	if rec = s.do(t, http.MethodPost, "/maintenance/sequences", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	busy := newTestServer(t, stubMaintenance{err: apperr.Conflict("decay is already running")})
	if rec := busy.do(t, http.MethodPost, "/maintenance/decay", nil); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 while running, got %d", rec.Code)
	}
}
