// Package outreach wires the lead outreach engines into one bounded context module.
package outreach

import (
	"lead_outreach_backend/internal/channel"
	"lead_outreach_backend/internal/events"
	apphttp "lead_outreach_backend/internal/http"
	"lead_outreach_backend/internal/outreach/bulk"
	"lead_outreach_backend/internal/outreach/contact"
	"lead_outreach_backend/internal/outreach/handler"
	"lead_outreach_backend/internal/outreach/jobs"
	"lead_outreach_backend/internal/outreach/repository"
	"lead_outreach_backend/internal/outreach/scoring"
	"lead_outreach_backend/internal/outreach/sequence"
	"lead_outreach_backend/internal/outreach/template"
	"lead_outreach_backend/platform/config"
	"lead_outreach_backend/platform/httpkit"
	"lead_outreach_backend/platform/logger"
	"lead_outreach_backend/platform/validator"

	"golang.org/x/time/rate"
)

const (
	webhookRate  = rate.Limit(20)
	webhookBurst = 40
)

// Services are the engines shared by the API and the worker process.
type Services struct {
	Store     repository.Store
	Sender    channel.Sender
	Templates *template.Resolver
	Contacts  *contact.Service
	Scoring   *scoring.Engine
	Sequences *sequence.Engine
}

// NewServices builds the engines on store and subscribes the sequence engine
// to replies. limiter is shared with the bulk pacer of the same process.
func NewServices(store repository.Store, sender channel.Sender, bus events.Bus, limiter sequence.Limiter, cfg config.OutreachConfig, log *logger.Logger) *Services {
	templates := template.NewResolver(store)
	contacts := contact.New(store, bus, log)
	seq := sequence.NewEngine(store, sender, templates, contacts, log, sequence.Config{
		BatchLimit:  cfg.GetSequenceBatchLimit(),
		Concurrency: cfg.GetSequenceConcurrency(),
		TickTimeout: cfg.GetSequenceTickTimeout(),
		Limiter:     limiter,
	})

	bus.Subscribe(events.LeadReplied{}.EventName(), events.HandlerFunc(seq.HandleLeadReplied))

	return &Services{
		Store:     store,
		Sender:    sender,
		Templates: templates,
		Contacts:  contacts,
		Scoring:   scoring.NewEngine(store, log),
		Sequences: seq,
	}
}

// NewDispatcher builds the bulk campaign runner on the same store and sender.
func (s *Services) NewDispatcher(pacer bulk.Pacer, bus events.Bus, cfg config.OutreachConfig, log *logger.Logger) *bulk.Dispatcher {
	return bulk.NewDispatcher(s.Store, s.Sender, s.Templates, s.Contacts, pacer, bus, log, bulk.Config{
		BatchSize:     cfg.GetMessagesPerBatch(),
		BatchDelay:    cfg.GetDelayBetweenBatches(),
		DefaultRegion: cfg.GetPhoneDefaultRegion(),
	})
}

// Module is the outreach bounded context module implementing http.Module.
type Module struct {
	handler        *handler.Handler
	webhookLimiter *httpkit.IPRateLimiter
}

func NewModule(svc *Services, tracker *jobs.Tracker, maintenance handler.Maintenance, val *validator.Validator, log *logger.Logger) *Module {
	h := handler.New(handler.Deps{
		Campaigns:   tracker,
		Sequences:   svc.Sequences,
		Scores:      svc.Scoring,
		Contacts:    svc.Contacts,
		Leads:       svc.Store,
		Maintenance: maintenance,
	}, val)

	return &Module{
		handler:        h,
		webhookLimiter: httpkit.NewIPRateLimiter(webhookRate, webhookBurst, log),
	}
}

func (m *Module) Name() string {
	return "outreach"
}

// RegisterRoutes mounts the outreach API, the admin task triggers and the provider webhooks.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/outreach"))
	m.handler.RegisterMaintenanceRoutes(ctx.Protected.Group("/outreach/maintenance", httpkit.RequireRole("admin")))

	webhooks := ctx.V1.Group("/outreach/webhooks")
	webhooks.Use(m.webhookLimiter.RateLimit())
	m.handler.RegisterWebhookRoutes(webhooks)
}

var _ apphttp.Module = (*Module)(nil)
