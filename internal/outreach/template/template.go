// Package template renders outreach messages and picks A/B variants.
package template

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"lead_outreach_backend/internal/outreach/domain"
	"lead_outreach_backend/internal/outreach/repository"

	"github.com/google/uuid"
)

// FallbackMessage is sent when neither a template nor a pre-generated opener exists.
const FallbackMessage = "Hi! I saw {name} on Google and wanted to reach out."

// confidentSends is the number of sends after which a variant's response rate is fully trusted.
const confidentSends = 50

// Reader is the template lookup the resolver needs.
type Reader interface {
	GetTemplate(ctx context.Context, id uuid.UUID) (domain.Template, error)
	GetDefaultTemplate(ctx context.Context, channel domain.Channel) (domain.Template, error)
	ListTemplateVariants(ctx context.Context, baseName string, channel domain.Channel) ([]domain.Template, error)
}

// Resolver turns a lead plus an optional template reference into a Message.
type Resolver struct {
	templates Reader
}

func NewResolver(templates Reader) *Resolver {
	return &Resolver{templates: templates}
}

// Render replaces every placeholder in content with the lead's values.
// Unknown placeholders are left as-is.
func Render(content string, lead domain.Lead) string {
	if !strings.Contains(content, "{") {
		return content
	}
	rating := ""
	if lead.Rating > 0 {
		rating = strconv.FormatFloat(lead.Rating, 'f', 1, 64)
	}
	return strings.NewReplacer(
		"{name}", lead.Name,
		"{business_name}", lead.Name,
		"{city}", lead.City,
		"{country}", lead.Country,
		"{rating}", rating,
		"{category}", lead.Category,
		"{phone}", lead.Phone,
		"{email}", lead.Email,
		"{score}", strconv.Itoa(lead.Score),
		"{temperature}", strings.ToUpper(string(lead.Temperature)),
	).Replace(content)
}

// RenderTemplate builds the message for one concrete template.
func RenderTemplate(tpl domain.Template, lead domain.Lead) domain.Message {
	id := tpl.ID
	return domain.Message{
		Subject:    Render(tpl.Subject, lead),
		Body:       Render(tpl.Content, lead),
		TemplateID: &id,
		Variant:    tpl.Variant,
	}
}

// Fallback builds the message used when no template applies.
func Fallback(lead domain.Lead) domain.Message {
	body := strings.TrimSpace(lead.FirstMessage)
	if body == "" {
		body = FallbackMessage
	}
	return domain.Message{Body: Render(body, lead)}
}

// VariantScore is the expected response rate under a Beta(1+responded, 1+misses)
// posterior, weighted by how many sends back it. Unsent variants score 0.5.
func VariantScore(tpl domain.Template) float64 {
	if tpl.Sent <= 0 {
		return 0.5
	}
	responded := max(tpl.Responded, 0)
	misses := max(tpl.Sent-responded, 0)
	alpha := 1 + float64(responded)
	beta := 1 + float64(misses)
	expected := alpha / (alpha + beta)
	confidence := min(float64(tpl.Sent)/confidentSends, 1)
	return expected * confidence
}

// SelectVariant returns the highest scoring variant; the first one wins ties.
func SelectVariant(variants []domain.Template) (domain.Template, bool) {
	if len(variants) == 0 {
		return domain.Template{}, false
	}
	best := variants[0]
	bestScore := VariantScore(best)
	for _, tpl := range variants[1:] {
		if score := VariantScore(tpl); score > bestScore {
			best, bestScore = tpl, score
		}
	}
	return best, true
}

// Exact renders the template with the given id, without variant selection.
func (r *Resolver) Exact(ctx context.Context, lead domain.Lead, templateID uuid.UUID) (domain.Message, error) {
	tpl, err := r.templates.GetTemplate(ctx, templateID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("get template %s: %w", templateID, err)
	}
	return RenderTemplate(tpl, lead), nil
}

// Resolve picks the best variant of templateID (or of the channel default
// when templateID is nil) for the lead's category and renders it. Without any
// template the lead's pre-generated opener or FallbackMessage is used.
func (r *Resolver) Resolve(ctx context.Context, lead domain.Lead, channel domain.Channel, templateID *uuid.UUID) (domain.Message, error) {
	var (
		base domain.Template
		err  error
	)
	if templateID != nil {
		base, err = r.templates.GetTemplate(ctx, *templateID)
	} else {
		base, err = r.templates.GetDefaultTemplate(ctx, channel)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return Fallback(lead), nil
	}
	if err != nil {
		return domain.Message{}, fmt.Errorf("resolve template: %w", err)
	}

	variants, err := r.templates.ListTemplateVariants(ctx, base.BaseName(), channel)
	if err != nil {
		return domain.Message{}, fmt.Errorf("list template variants: %w", err)
	}
	eligible := variants[:0:0]
	for _, tpl := range variants {
		if tpl.Category == "" || strings.EqualFold(tpl.Category, lead.Category) {
			eligible = append(eligible, tpl)
		}
	}
	if best, ok := SelectVariant(eligible); ok {
		return RenderTemplate(best, lead), nil
	}
	return RenderTemplate(base, lead), nil
}
