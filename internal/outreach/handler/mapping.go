package handler

import (
	"lead_outreach_backend/internal/outreach/domain"
	"lead_outreach_backend/internal/outreach/jobs"
	"lead_outreach_backend/internal/outreach/sequence"
	"lead_outreach_backend/internal/outreach/transport"
)

func toLeadResponse(l domain.Lead) transport.LeadResponse {
	return transport.LeadResponse{
		ID:                l.ID,
		Name:              l.Name,
		Phone:             l.Phone,
		Email:             l.Email,
		City:              l.City,
		Category:          l.Category,
		Status:            string(l.Status),
		Score:             l.Score,
		Temperature:       string(l.Temperature),
		EngagementCount:   l.EngagementCount,
		ResponseTimeHours: l.ResponseTimeHours,
		LastContactedAt:   l.LastContactedAt,
		LastResponseAt:    l.LastResponseAt,
		SequenceID:        l.SequenceID,
		SequenceStep:      l.SequenceStep,
		SequenceState:     string(l.SequenceState()),
		NextFollowupAt:    l.NextFollowupAt,
		UpdatedAt:         l.UpdatedAt,
	}
}

func toLeadResponses(leads []domain.Lead) []transport.LeadResponse {
	out := make([]transport.LeadResponse, 0, len(leads))
	for _, l := range leads {
		out = append(out, toLeadResponse(l))
	}
	return out
}

func toCampaignJobResponse(s jobs.Status) transport.CampaignJobResponse {
	job := s.Job
	resp := transport.CampaignJobResponse{
		ID:              job.ID,
		Status:          string(job.Status),
		Channel:         string(job.Params.Channel),
		TemplateID:      job.Params.TemplateID,
		DryRun:          job.Params.DryRun,
		TotalItems:      job.TotalItems,
		ProcessedItems:  job.ProcessedItems,
		SuccessfulItems: job.SuccessfulItems,
		FailedItems:     job.FailedItems,
		SkippedItems:    job.SkippedItems,
		ProgressPercent: job.ProgressPercent(),
		ErrorMessage:    job.ErrorMessage,
		ItemErrors:      make([]transport.ItemErrorResponse, 0, len(job.ItemErrors)),
		CreatedAt:       job.CreatedAt,
		StartedAt:       job.StartedAt,
		CompletedAt:     job.CompletedAt,
	}
	if s.EstimatedTimeRemaining != nil {
		secs := int64(s.EstimatedTimeRemaining.Seconds())
		resp.EstimatedSecondsRemaining = &secs
	}
	for _, e := range job.ItemErrors {
		resp.ItemErrors = append(resp.ItemErrors, transport.ItemErrorResponse{
			LeadID:  e.LeadID,
			Outcome: string(e.Outcome),
			Reason:  e.Reason,
		})
	}
	return resp
}

func toContactAttemptResponse(a domain.ContactAttempt) transport.ContactAttemptResponse {
	return transport.ContactAttemptResponse{
		ID:                a.ID,
		Channel:           string(a.Channel),
		Source:            string(a.Source),
		TemplateID:        a.TemplateID,
		Variant:           a.Variant,
		ProviderMessageID: a.ProviderMessageID,
		JobID:             a.JobID,
		SequenceID:        a.SequenceID,
		StepNumber:        a.StepNumber,
		SentAt:            a.SentAt,
		DeliveredAt:       a.DeliveredAt,
		RespondedAt:       a.RespondedAt,
	}
}

func toSequenceRunResponse(r sequence.Report) transport.SequenceRunResponse {
	resp := transport.SequenceRunResponse{
		Processed:  r.Processed,
		Sent:       r.Sent,
		Unenrolled: r.Unenrolled,
		Skipped:    r.Skipped,
		Errors:     make([]transport.LeadErrorResponse, 0, len(r.Errors)),
	}
	for _, e := range r.Errors {
		resp.Errors = append(resp.Errors, transport.LeadErrorResponse{LeadID: e.LeadID, Error: e.Error})
	}
	return resp
}
