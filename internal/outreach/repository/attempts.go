package repository

import (
	"context"
	"fmt"
	"time"

	"lead_outreach_backend/internal/outreach/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const attemptColumns = `id, lead_id, channel, template_id, variant, provider_message_id, source,
	job_id, sequence_id, step_number, sent_at, delivered_at, responded_at`

func scanAttempt(row pgx.Row) (domain.ContactAttempt, error) {
	var attempt domain.ContactAttempt
	var channel, source string
	err := row.Scan(
		&attempt.ID, &attempt.LeadID, &channel, &attempt.TemplateID, &attempt.Variant, &attempt.ProviderMessageID,
		&source, &attempt.JobID, &attempt.SequenceID, &attempt.StepNumber, &attempt.SentAt,
		&attempt.DeliveredAt, &attempt.RespondedAt,
	)
	if err != nil {
		return domain.ContactAttempt{}, err
	}
	attempt.Channel = domain.Channel(channel)
	attempt.Source = domain.AttemptSource(source)
	return attempt, nil
}

func (r *Repository) AppendContactAttempt(ctx context.Context, attempt *domain.ContactAttempt) error {
	if err := r.ready(); err != nil {
		return err
	}
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	if attempt.SentAt.IsZero() {
		attempt.SentAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO outreach_contact_attempts (`+attemptColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		attempt.ID, attempt.LeadID, string(attempt.Channel), attempt.TemplateID, attempt.Variant,
		attempt.ProviderMessageID, string(attempt.Source), attempt.JobID, attempt.SequenceID,
		attempt.StepNumber, attempt.SentAt, attempt.DeliveredAt, attempt.RespondedAt,
	)
	if err != nil {
		return fmt.Errorf("append contact attempt: %w", err)
	}
	return nil
}

func (r *Repository) ListContactAttempts(ctx context.Context, leadID uuid.UUID) ([]domain.ContactAttempt, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+attemptColumns+`
		FROM outreach_contact_attempts
		WHERE lead_id = $1
		ORDER BY sent_at DESC`, leadID)
	if err != nil {
		return nil, fmt.Errorf("list contact attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]domain.ContactAttempt, 0)
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate contact attempts: %w", rows.Err())
	}
	return attempts, nil
}

func (r *Repository) MarkLatestAttemptResponded(ctx context.Context, leadID uuid.UUID, at time.Time) (domain.ContactAttempt, error) {
	if err := r.ready(); err != nil {
		return domain.ContactAttempt{}, err
	}
	attempt, err := scanAttempt(r.pool.QueryRow(ctx, `
		UPDATE outreach_contact_attempts
		SET responded_at = $2
		WHERE id = (
			SELECT id FROM outreach_contact_attempts
			WHERE lead_id = $1 AND responded_at IS NULL
			ORDER BY sent_at DESC
			LIMIT 1
		)
		RETURNING `+attemptColumns, leadID, at))
	if err != nil {
		return domain.ContactAttempt{}, notFound(err)
	}
	return attempt, nil
}

func (r *Repository) MarkAttemptDelivered(ctx context.Context, providerMessageID string, at time.Time) (domain.ContactAttempt, error) {
	if err := r.ready(); err != nil {
		return domain.ContactAttempt{}, err
	}
	if providerMessageID == "" {
		return domain.ContactAttempt{}, ErrNotFound
	}
	attempt, err := scanAttempt(r.pool.QueryRow(ctx, `
		UPDATE outreach_contact_attempts
		SET delivered_at = COALESCE(delivered_at, $2)
		WHERE id = (
			SELECT id FROM outreach_contact_attempts
			WHERE provider_message_id = $1
			ORDER BY sent_at DESC
			LIMIT 1
		)
		RETURNING `+attemptColumns, providerMessageID, at))
	if err != nil {
		return domain.ContactAttempt{}, notFound(err)
	}
	return attempt, nil
}
