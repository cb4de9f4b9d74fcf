package repository

import (
	"context"
	"fmt"

	"lead_outreach_backend/internal/outreach/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (r *Repository) GetSequence(ctx context.Context, id uuid.UUID) (domain.Sequence, error) {
	if err := r.ready(); err != nil {
		return domain.Sequence{}, err
	}

	var seq domain.Sequence
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, description, active, created_at, updated_at
		FROM outreach_sequences WHERE id = $1`, id,
	).Scan(&seq.ID, &seq.Name, &seq.Description, &seq.Active, &seq.CreatedAt, &seq.UpdatedAt)
	if err != nil {
		return domain.Sequence{}, notFound(err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT step_number, channel, template_id, delay_days, delay_hours, stop_if_responded
		FROM outreach_sequence_steps
		WHERE sequence_id = $1
		ORDER BY step_number ASC`, id)
	if err != nil {
		return domain.Sequence{}, fmt.Errorf("get sequence steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var step domain.SequenceStep
		var channel string
		if err := rows.Scan(&step.StepNumber, &channel, &step.TemplateID, &step.DelayDays, &step.DelayHours, &step.StopIfResponded); err != nil {
			return domain.Sequence{}, fmt.Errorf("scan sequence step: %w", err)
		}
		step.Channel = domain.Channel(channel)
		seq.Steps = append(seq.Steps, step)
	}
	if rows.Err() != nil {
		return domain.Sequence{}, fmt.Errorf("iterate sequence steps: %w", rows.Err())
	}
	return seq, nil
}

func (r *Repository) UpsertSequence(ctx context.Context, seq *domain.Sequence) error {
	if err := r.ready(); err != nil {
		return err
	}
	if err := seq.Normalize(); err != nil {
		return err
	}
	if seq.ID == uuid.Nil {
		seq.ID = uuid.New()
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO outreach_sequences (id, name, description, active)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (name) DO UPDATE SET
				description = EXCLUDED.description,
				active = EXCLUDED.active,
				updated_at = now()
			RETURNING id, created_at, updated_at`,
			seq.ID, seq.Name, seq.Description, seq.Active,
		).Scan(&seq.ID, &seq.CreatedAt, &seq.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert sequence %q: %w", seq.Name, err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM outreach_sequence_steps WHERE sequence_id = $1`, seq.ID); err != nil {
			return fmt.Errorf("replace sequence steps: %w", err)
		}

		batch := &pgx.Batch{}
		for _, step := range seq.Steps {
			batch.Queue(`
				INSERT INTO outreach_sequence_steps
					(sequence_id, step_number, channel, template_id, delay_days, delay_hours, stop_if_responded)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				seq.ID, step.StepNumber, string(step.Channel), step.TemplateID, step.DelayDays, step.DelayHours, step.StopIfResponded)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert sequence steps: %w", err)
		}
		return nil
	})
}

func (r *Repository) DeleteSequence(ctx context.Context, id uuid.UUID) error {
	if err := r.ready(); err != nil {
		return err
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE outreach_leads
			SET sequence_id = NULL, sequence_step = 0, next_followup_at = NULL,
			    version = version + 1, updated_at = now()
			WHERE sequence_id = $1`, id); err != nil {
			return fmt.Errorf("unenroll sequence leads: %w", err)
		}

		result, err := tx.Exec(ctx, `DELETE FROM outreach_sequences WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete sequence: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}
