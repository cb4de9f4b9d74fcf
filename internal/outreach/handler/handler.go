// Package handler exposes the outreach engines over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"lead_outreach_backend/internal/outreach/domain"
	"lead_outreach_backend/internal/outreach/jobs"
	"lead_outreach_backend/internal/outreach/repository"
	"lead_outreach_backend/internal/outreach/scoring"
	"lead_outreach_backend/internal/outreach/sequence"
	"lead_outreach_backend/internal/outreach/transport"
	"lead_outreach_backend/platform/apperr"
	"lead_outreach_backend/platform/httpkit"
	"lead_outreach_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidLeadID    = "invalid lead id"
)

type Campaigns interface {
	Create(ctx context.Context, params jobs.CreateParams) (domain.CampaignJob, error)
	GetStatus(ctx context.Context, jobID uuid.UUID) (jobs.Status, error)
	Cancel(ctx context.Context, jobID uuid.UUID) (jobs.Status, error)
}

type Sequences interface {
	Enroll(ctx context.Context, leadID, sequenceID uuid.UUID) (bool, error)
	Unenroll(ctx context.Context, leadID uuid.UUID) error
}

type Scores interface {
	Boost(ctx context.Context, leadID uuid.UUID, points int) (domain.Lead, error)
	Penalize(ctx context.Context, leadID uuid.UUID, points int) (domain.Lead, error)
	Recalculate(ctx context.Context, leadID uuid.UUID) (domain.Lead, error)
	Distribution(ctx context.Context) (scoring.Distribution, error)
	NeedingAttention(ctx context.Context, now time.Time) (scoring.Attention, error)
}

type Contacts interface {
	RecordResponse(ctx context.Context, leadID uuid.UUID, text string) (domain.Lead, error)
	RecordDelivery(ctx context.Context, providerMessageID, status string) error
}

type Leads interface {
	GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	ListContactAttempts(ctx context.Context, leadID uuid.UUID) ([]domain.ContactAttempt, error)
}

// Maintenance runs the scheduled tasks on demand.
type Maintenance interface {
	RunDecay(ctx context.Context) (int, error)
	RunSequences(ctx context.Context) (sequence.Report, error)
}

// Handler handles outreach HTTP requests.
type Handler struct {
	campaigns   Campaigns
	sequences   Sequences
	scores      Scores
	contacts    Contacts
	leads       Leads
	maintenance Maintenance
	val         *validator.Validator
	now         func() time.Time
}

// Deps groups the services behind the handler.
type Deps struct {
	Campaigns   Campaigns
	Sequences   Sequences
	Scores      Scores
	Contacts    Contacts
	Leads       Leads
	Maintenance Maintenance
}

func New(deps Deps, val *validator.Validator) *Handler {
	return &Handler{
		campaigns:   deps.Campaigns,
		sequences:   deps.Sequences,
		scores:      deps.Scores,
		contacts:    deps.Contacts,
		leads:       deps.Leads,
		maintenance: deps.Maintenance,
		val:         val,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RegisterRoutes mounts the authenticated outreach routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/campaigns", h.CreateCampaign)
	rg.GET("/campaigns/:id", h.GetCampaign)
	rg.POST("/campaigns/:id/cancel", h.CancelCampaign)

	rg.GET("/leads/attention", h.LeadsNeedingAttention)
	rg.GET("/leads/:id", h.GetLead)
	rg.GET("/leads/:id/attempts", h.ListAttempts)
	rg.POST("/leads/:id/sequence", h.Enroll)
	rg.DELETE("/leads/:id/sequence", h.Unenroll)
	rg.POST("/leads/:id/responses", h.RecordResponse)
	rg.POST("/leads/:id/score/boost", h.BoostScore)
	rg.POST("/leads/:id/score/penalize", h.PenalizeScore)
	rg.POST("/leads/:id/score/recalculate", h.RecalculateScore)

	rg.GET("/scores/distribution", h.ScoreDistribution)
}

// RegisterMaintenanceRoutes mounts the manual task triggers. The group must be admin only.
func (h *Handler) RegisterMaintenanceRoutes(rg *gin.RouterGroup) {
	rg.POST("/decay", h.RunDecay)
	rg.POST("/sequences", h.RunSequences)
}

// RegisterWebhookRoutes mounts the public provider callbacks.
func (h *Handler) RegisterWebhookRoutes(rg *gin.RouterGroup) {
	rg.POST("/delivery", h.DeliveryWebhook)
}

func (h *Handler) CreateCampaign(c *gin.Context) {
	var req transport.CreateCampaignRequest
	if !h.bind(c, &req) {
		return
	}

	job, err := h.campaigns.Create(c.Request.Context(), jobs.CreateParams{
		Channel:    domain.Channel(req.Channel),
		TemplateID: req.TemplateID,
		DryRun:     req.DryRun,
		LeadIDs:    req.LeadIDs,
		CreatedBy:  httpkit.ActorID(c),
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Accepted(c, toCampaignJobResponse(jobs.Status{Job: job}))
}

func (h *Handler) GetCampaign(c *gin.Context) {
	id, ok := parseID(c, "invalid campaign id")
	if !ok {
		return
	}
	status, err := h.campaigns.GetStatus(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toCampaignJobResponse(status))
}

func (h *Handler) CancelCampaign(c *gin.Context) {
	id, ok := parseID(c, "invalid campaign id")
	if !ok {
		return
	}
	status, err := h.campaigns.Cancel(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toCampaignJobResponse(status))
}

func (h *Handler) GetLead(c *gin.Context) {
	id, ok := parseID(c, msgInvalidLeadID)
	if !ok {
		return
	}
	lead, err := h.leads.GetLead(c.Request.Context(), id)
	if httpkit.HandleError(c, leadLookupError(err)) {
		return
	}
	httpkit.OK(c, toLeadResponse(lead))
}

func (h *Handler) ListAttempts(c *gin.Context) {
	id, ok := parseID(c, msgInvalidLeadID)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.leads.GetLead(ctx, id); httpkit.HandleError(c, leadLookupError(err)) {
		return
	}
	attempts, err := h.leads.ListContactAttempts(ctx, id)
	if httpkit.HandleError(c, err) {
		return
	}
	out := make([]transport.ContactAttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, toContactAttemptResponse(a))
	}
	httpkit.OK(c, out)
}

func (h *Handler) Enroll(c *gin.Context) {
	id, ok := parseID(c, msgInvalidLeadID)
	if !ok {
		return
	}
	var req transport.EnrollRequest
	if !h.bind(c, &req) {
		return
	}
	enrolled, err := h.sequences.Enroll(c.Request.Context(), id, req.SequenceID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.EnrollResponse{Enrolled: enrolled})
}

func (h *Handler) Unenroll(c *gin.Context) {
	id, ok := parseID(c, msgInvalidLeadID)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.sequences.Unenroll(c.Request.Context(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) RecordResponse(c *gin.Context) {
	id, ok := parseID(c, msgInvalidLeadID)
	if !ok {
		return
	}
	var req transport.RecordResponseRequest
	if !h.bind(c, &req) {
		return
	}
	lead, err := h.contacts.RecordResponse(c.Request.Context(), id, req.Text)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toLeadResponse(lead))
}

func (h *Handler) BoostScore(c *gin.Context) {
	h.adjustScore(c, h.scores.Boost)
}

func (h *Handler) PenalizeScore(c *gin.Context) {
	h.adjustScore(c, h.scores.Penalize)
}

func (h *Handler) adjustScore(c *gin.Context, adjust func(context.Context, uuid.UUID, int) (domain.Lead, error)) {
	id, ok := parseID(c, msgInvalidLeadID)
	if !ok {
		return
	}
	var req transport.AdjustScoreRequest
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}
	lead, err := adjust(c.Request.Context(), id, req.Points)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toLeadResponse(lead))
}

func (h *Handler) RecalculateScore(c *gin.Context) {
	id, ok := parseID(c, msgInvalidLeadID)
	if !ok {
		return
	}
	lead, err := h.scores.Recalculate(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toLeadResponse(lead))
}

func (h *Handler) ScoreDistribution(c *gin.Context) {
	dist, err := h.scores.Distribution(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	byTemp := make(map[string]int, len(dist.ByTemperature))
	for temp, n := range dist.ByTemperature {
		byTemp[string(temp)] = n
	}
	httpkit.OK(c, transport.ScoreDistributionResponse{Total: dist.Total, ByTemperature: byTemp, ByRange: dist.ByRange})
}

func (h *Handler) LeadsNeedingAttention(c *gin.Context) {
	att, err := h.scores.NeedingAttention(c.Request.Context(), h.now())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.AttentionResponse{
		HotNotContacted:  toLeadResponses(att.HotNotContacted),
		OverdueFollowups: toLeadResponses(att.OverdueFollowups),
	})
}

func (h *Handler) RunDecay(c *gin.Context) {
	n, err := h.maintenance.RunDecay(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.DecayResponse{Decayed: n})
}

func (h *Handler) RunSequences(c *gin.Context) {
	report, err := h.maintenance.RunSequences(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toSequenceRunResponse(report))
}

func (h *Handler) DeliveryWebhook(c *gin.Context) {
	var req transport.DeliveryWebhookRequest
	if !h.bind(c, &req) {
		return
	}
	if httpkit.HandleError(c, h.contacts.RecordDelivery(c.Request.Context(), req.MessageID, req.Status)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Describe(err))
		return false
	}
	return true
}

func parseID(c *gin.Context, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, message, nil)
		return uuid.Nil, false
	}
	return id, true
}

func leadLookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("lead not found")
	}
	return err
}
