package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lead_outreach_backend/internal/outreach/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const jobColumns = `id, status, channel, template_id, dry_run, lead_ids, total_items, processed_items,
	successful_items, failed_items, skipped_items, item_errors, error_message, created_by,
	created_at, enqueued_at, started_at, completed_at, updated_at`

func scanJob(row pgx.Row) (domain.CampaignJob, error) {
	var job domain.CampaignJob
	var status, channel string
	var itemErrors []byte
	err := row.Scan(
		&job.ID, &status, &channel, &job.Params.TemplateID, &job.Params.DryRun, &job.Params.LeadIDs,
		&job.TotalItems, &job.ProcessedItems, &job.SuccessfulItems, &job.FailedItems, &job.SkippedItems,
		&itemErrors, &job.ErrorMessage, &job.CreatedBy,
		&job.CreatedAt, &job.EnqueuedAt, &job.StartedAt, &job.CompletedAt, &job.UpdatedAt,
	)
	if err != nil {
		return domain.CampaignJob{}, err
	}
	job.Status = domain.JobStatus(status)
	job.Params.Channel = domain.Channel(channel)
	if len(itemErrors) > 0 {
		if err := json.Unmarshal(itemErrors, &job.ItemErrors); err != nil {
			return domain.CampaignJob{}, fmt.Errorf("decode item errors: %w", err)
		}
	}
	return job, nil
}

func (r *Repository) GetJob(ctx context.Context, id uuid.UUID) (domain.CampaignJob, error) {
	if err := r.ready(); err != nil {
		return domain.CampaignJob{}, err
	}
	job, err := scanJob(r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM outreach_campaign_jobs WHERE id = $1`, id))
	if err != nil {
		return domain.CampaignJob{}, notFound(err)
	}
	return job, nil
}

func (r *Repository) SaveJob(ctx context.Context, job *domain.CampaignJob) error {
	if err := r.ready(); err != nil {
		return err
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	itemErrors := job.ItemErrors
	if itemErrors == nil {
		itemErrors = []domain.ItemError{}
	}
	encoded, err := json.Marshal(itemErrors)
	if err != nil {
		return fmt.Errorf("encode item errors: %w", err)
	}
	leadIDs := job.Params.LeadIDs
	if leadIDs == nil {
		leadIDs = []uuid.UUID{}
	}

	result, err := r.pool.Exec(ctx, `
		INSERT INTO outreach_campaign_jobs (
			id, status, channel, template_id, dry_run, lead_ids, total_items, processed_items,
			successful_items, failed_items, skipped_items, item_errors, error_message, created_by,
			created_at, started_at, completed_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, COALESCE($15, now()), $16, $17, now())
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			total_items = EXCLUDED.total_items,
			processed_items = EXCLUDED.processed_items,
			successful_items = EXCLUDED.successful_items,
			failed_items = EXCLUDED.failed_items,
			skipped_items = EXCLUDED.skipped_items,
			item_errors = EXCLUDED.item_errors,
			error_message = EXCLUDED.error_message,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			updated_at = now()
		WHERE outreach_campaign_jobs.status NOT IN ('completed', 'failed', 'cancelled')`,
		job.ID, string(job.Status), string(job.Params.Channel), job.Params.TemplateID, job.Params.DryRun, leadIDs,
		job.TotalItems, job.ProcessedItems, job.SuccessfulItems, job.FailedItems, job.SkippedItems,
		encoded, job.ErrorMessage, job.CreatedBy, nullableTime(job.CreatedAt), job.StartedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("save campaign job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrJobFinalized
	}
	return nil
}

// SaveJobProgress writes only the item counters and item errors. It accepts a
// CANCELLED row so the item in flight when a cancel landed is still counted.
func (r *Repository) SaveJobProgress(ctx context.Context, job *domain.CampaignJob) error {
	if err := r.ready(); err != nil {
		return err
	}
	itemErrors := job.ItemErrors
	if itemErrors == nil {
		itemErrors = []domain.ItemError{}
	}
	encoded, err := json.Marshal(itemErrors)
	if err != nil {
		return fmt.Errorf("encode item errors: %w", err)
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE outreach_campaign_jobs
		SET processed_items = $2, successful_items = $3, failed_items = $4, skipped_items = $5,
			item_errors = $6, updated_at = now()
		WHERE id = $1 AND status IN ('running', 'cancelled')`,
		job.ID, job.ProcessedItems, job.SuccessfulItems, job.FailedItems, job.SkippedItems, encoded,
	)
	if err != nil {
		return fmt.Errorf("save campaign job progress: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrJobFinalized
	}
	return nil
}

// CancelJob moves a pending or running job to CANCELLED without touching its
// counters and returns the updated row.
func (r *Repository) CancelJob(ctx context.Context, id uuid.UUID, at time.Time) (domain.CampaignJob, error) {
	if err := r.ready(); err != nil {
		return domain.CampaignJob{}, err
	}
	job, err := scanJob(r.pool.QueryRow(ctx, `
		UPDATE outreach_campaign_jobs
		SET status = 'cancelled', completed_at = $2, updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'running')
		RETURNING `+jobColumns, id, at))
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.CampaignJob{}, fmt.Errorf("cancel campaign job: %w", err)
	}
	if _, err := r.GetJob(ctx, id); err != nil {
		return domain.CampaignJob{}, err
	}
	return domain.CampaignJob{}, ErrJobFinalized
}

func (r *Repository) ClaimPendingJobs(ctx context.Context, limit int) ([]domain.CampaignJob, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		WITH claimable AS (
			SELECT id
			FROM outreach_campaign_jobs
			WHERE status = 'pending' AND enqueued_at IS NULL
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE outreach_campaign_jobs j
		SET enqueued_at = now(), updated_at = now()
		FROM claimable
		WHERE j.id = claimable.id
		RETURNING `+prefixed("j.", jobColumns), limit)
	if err != nil {
		return nil, fmt.Errorf("claim pending jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]domain.CampaignJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate campaign jobs: %w", rows.Err())
	}
	return jobs, nil
}

func (r *Repository) ReleaseJobClaim(ctx context.Context, id uuid.UUID) error {
	if err := r.ready(); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE outreach_campaign_jobs
		SET enqueued_at = NULL, updated_at = now()
		WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("release job claim: %w", err)
	}
	return nil
}

func (r *Repository) DeleteFinishedJobsBefore(ctx context.Context, before time.Time) (int64, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	result, err := r.pool.Exec(ctx, `
		DELETE FROM outreach_campaign_jobs
		WHERE status IN ('completed', 'failed', 'cancelled') AND completed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete finished jobs: %w", err)
	}
	return result.RowsAffected(), nil
}
