package repository

import (
	"context"
	"fmt"

	"lead_outreach_backend/internal/outreach/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const templateColumns = `id, name, channel, subject, content, variant, category, active, is_default,
	sent, opened, responded, created_at, updated_at`

func scanTemplate(row pgx.Row) (domain.Template, error) {
	var tpl domain.Template
	var channel string
	err := row.Scan(
		&tpl.ID, &tpl.Name, &channel, &tpl.Subject, &tpl.Content, &tpl.Variant, &tpl.Category,
		&tpl.Active, &tpl.IsDefault, &tpl.Sent, &tpl.Opened, &tpl.Responded, &tpl.CreatedAt, &tpl.UpdatedAt,
	)
	if err != nil {
		return domain.Template{}, err
	}
	tpl.Channel = domain.Channel(channel)
	return tpl, nil
}

func (r *Repository) GetTemplate(ctx context.Context, id uuid.UUID) (domain.Template, error) {
	if err := r.ready(); err != nil {
		return domain.Template{}, err
	}
	tpl, err := scanTemplate(r.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM outreach_templates WHERE id = $1`, id))
	if err != nil {
		return domain.Template{}, notFound(err)
	}
	return tpl, nil
}

func (r *Repository) GetDefaultTemplate(ctx context.Context, channel domain.Channel) (domain.Template, error) {
	if err := r.ready(); err != nil {
		return domain.Template{}, err
	}
	tpl, err := scanTemplate(r.pool.QueryRow(ctx, `
		SELECT `+templateColumns+`
		FROM outreach_templates
		WHERE channel = $1 AND is_default AND active
		LIMIT 1`, string(channel)))
	if err != nil {
		return domain.Template{}, notFound(err)
	}
	return tpl, nil
}

func (r *Repository) ListTemplateVariants(ctx context.Context, baseName string, channel domain.Channel) ([]domain.Template, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+templateColumns+`
		FROM outreach_templates
		WHERE channel = $1 AND active
		  AND (name = $2 OR name LIKE $3 ESCAPE '\')
		ORDER BY name ASC`, string(channel), baseName, escapeLike(baseName)+" - %")
	if err != nil {
		return nil, fmt.Errorf("list template variants: %w", err)
	}
	defer rows.Close()

	templates := make([]domain.Template, 0)
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, tpl)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate templates: %w", rows.Err())
	}
	return templates, nil
}

func (r *Repository) UpsertTemplate(ctx context.Context, tpl *domain.Template) error {
	if err := r.ready(); err != nil {
		return err
	}
	if tpl.ID == uuid.Nil {
		tpl.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO outreach_templates (id, name, channel, subject, content, variant, category, active, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (name) DO UPDATE SET
			channel = EXCLUDED.channel,
			subject = EXCLUDED.subject,
			content = EXCLUDED.content,
			variant = EXCLUDED.variant,
			category = EXCLUDED.category,
			active = EXCLUDED.active,
			is_default = EXCLUDED.is_default,
			updated_at = now()
		RETURNING id, sent, opened, responded, created_at, updated_at`,
		tpl.ID, tpl.Name, string(tpl.Channel), tpl.Subject, tpl.Content, tpl.Variant, tpl.Category, tpl.Active, tpl.IsDefault,
	).Scan(&tpl.ID, &tpl.Sent, &tpl.Opened, &tpl.Responded, &tpl.CreatedAt, &tpl.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert template %q: %w", tpl.Name, err)
	}
	return nil
}

func (r *Repository) IncrementTemplateStats(ctx context.Context, id uuid.UUID, stats domain.TemplateStats) error {
	if err := r.ready(); err != nil {
		return err
	}
	result, err := r.pool.Exec(ctx, `
		UPDATE outreach_templates
		SET sent = sent + $2, opened = opened + $3, responded = responded + $4, updated_at = now()
		WHERE id = $1`, id, stats.Sent, stats.Opened, stats.Responded)
	if err != nil {
		return fmt.Errorf("increment template stats: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
