package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lead_outreach_backend/internal/outreach/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const leadColumns = `id, name, phone, email, city, country, category, rating, has_website, first_message,
	score, temperature, status, engagement_count, response_time_hours, last_response,
	last_contacted_at, last_response_at, last_decayed_at, sequence_id, sequence_step, next_followup_at,
	created_at, updated_at, version`

func scanLead(row pgx.Row) (domain.Lead, error) {
	var lead domain.Lead
	var temperature, status string
	err := row.Scan(
		&lead.ID, &lead.Name, &lead.Phone, &lead.Email, &lead.City, &lead.Country, &lead.Category,
		&lead.Rating, &lead.HasWebsite, &lead.FirstMessage,
		&lead.Score, &temperature, &status, &lead.EngagementCount, &lead.ResponseTimeHours, &lead.LastResponse,
		&lead.LastContactedAt, &lead.LastResponseAt, &lead.LastDecayedAt, &lead.SequenceID, &lead.SequenceStep,
		&lead.NextFollowupAt, &lead.CreatedAt, &lead.UpdatedAt, &lead.Version,
	)
	if err != nil {
		return domain.Lead{}, err
	}
	lead.Temperature = domain.Temperature(temperature)
	lead.Status = domain.LeadStatus(status)
	return lead, nil
}

func collectLeads(rows pgx.Rows) ([]domain.Lead, error) {
	defer rows.Close()
	leads := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate leads: %w", rows.Err())
	}
	return leads, nil
}

func (r *Repository) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	if err := r.ready(); err != nil {
		return domain.Lead{}, err
	}
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM outreach_leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if err != nil {
		return domain.Lead{}, notFound(err)
	}
	return lead, nil
}

func (r *Repository) ListLeadsByID(ctx context.Context, ids []uuid.UUID) ([]domain.Lead, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []domain.Lead{}, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+leadColumns+` FROM outreach_leads WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("list leads by id: %w", err)
	}
	return collectLeads(rows)
}

func (r *Repository) ListDueSequenceLeads(ctx context.Context, now time.Time, limit int) ([]domain.Lead, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM outreach_leads
		WHERE sequence_id IS NOT NULL
		  AND next_followup_at <= $1
		  AND status IN ('new', 'contacted', 'replied')
		ORDER BY next_followup_at ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due sequence leads: %w", err)
	}
	return collectLeads(rows)
}

func (r *Repository) ListDecayCandidates(ctx context.Context, now time.Time) ([]domain.Lead, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	y, m, d := now.UTC().Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM outreach_leads
		WHERE status IN ('new', 'contacted')
		  AND temperature <> 'cold'
		  AND (last_decayed_at IS NULL OR last_decayed_at < $1)`, dayStart)
	if err != nil {
		return nil, fmt.Errorf("list decay candidates: %w", err)
	}
	return collectLeads(rows)
}

func (r *Repository) ListLeads(ctx context.Context, filter LeadFilter) ([]domain.Lead, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		where = append(where, "status = ANY("+arg(statuses)+")")
	}
	if filter.Temperature != "" {
		where = append(where, "temperature = "+arg(string(filter.Temperature)))
	}
	if filter.NotContactedSince != nil {
		where = append(where, "(last_contacted_at IS NULL OR last_contacted_at < "+arg(*filter.NotContactedSince)+")")
	}
	if filter.FollowupBefore != nil {
		where = append(where, "sequence_id IS NOT NULL AND next_followup_at < "+arg(*filter.FollowupBefore))
	}

	var query strings.Builder
	query.WriteString(`SELECT ` + leadColumns + ` FROM outreach_leads`)
	if len(where) > 0 {
		query.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	query.WriteString(" ORDER BY score DESC, created_at ASC")
	if filter.Limit > 0 {
		query.WriteString(" LIMIT " + arg(filter.Limit))
	}

	rows, err := r.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	return collectLeads(rows)
}

func (r *Repository) CreateLead(ctx context.Context, lead *domain.Lead) error {
	if err := r.ready(); err != nil {
		return err
	}
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if lead.Status == "" {
		lead.Status = domain.LeadStatusNew
	}
	lead.SetScore(lead.Score)

	return r.pool.QueryRow(ctx, `
		INSERT INTO outreach_leads (id, name, phone, email, city, country, category, rating, has_website,
			first_message, score, temperature, status, engagement_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, COALESCE($15, now()))
		RETURNING created_at, updated_at, version`,
		lead.ID, lead.Name, lead.Phone, lead.Email, lead.City, lead.Country, lead.Category, lead.Rating,
		lead.HasWebsite, lead.FirstMessage, lead.Score, string(lead.Temperature), string(lead.Status),
		lead.EngagementCount, nullableTime(lead.CreatedAt),
	).Scan(&lead.CreatedAt, &lead.UpdatedAt, &lead.Version)
}

func (r *Repository) SaveLead(ctx context.Context, lead *domain.Lead) error {
	if err := r.ready(); err != nil {
		return err
	}
	lead.SetScore(lead.Score)

	err := r.pool.QueryRow(ctx, `
		UPDATE outreach_leads SET
			name = $2, phone = $3, email = $4, city = $5, country = $6, category = $7, rating = $8,
			has_website = $9, first_message = $10, score = $11, temperature = $12, status = $13,
			engagement_count = $14, response_time_hours = $15, last_response = $16,
			last_contacted_at = $17, last_response_at = $18, last_decayed_at = $19,
			sequence_id = $20, sequence_step = $21, next_followup_at = $22,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $23
		RETURNING version, updated_at`,
		lead.ID, lead.Name, lead.Phone, lead.Email, lead.City, lead.Country, lead.Category, lead.Rating,
		lead.HasWebsite, lead.FirstMessage, lead.Score, string(lead.Temperature), string(lead.Status),
		lead.EngagementCount, lead.ResponseTimeHours, lead.LastResponse,
		lead.LastContactedAt, lead.LastResponseAt, lead.LastDecayedAt,
		lead.SequenceID, lead.SequenceStep, lead.NextFollowupAt, lead.Version,
	).Scan(&lead.Version, &lead.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("save lead: %w", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM outreach_leads WHERE id = $1)`, lead.ID).Scan(&exists); err != nil {
		return fmt.Errorf("save lead: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrVersionConflict
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
