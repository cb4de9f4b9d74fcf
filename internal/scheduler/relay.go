package scheduler

import (
	"context"

	"lead_outreach_backend/internal/outreach/jobs"
	"lead_outreach_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const cancelChannel = "outreach:campaign:cancel"

// CancelRelay carries campaign cancellations from the API to every worker process.
type CancelRelay struct {
	rdb *redis.Client
	log *logger.Logger
}

func NewCancelRelay(rdb *redis.Client, log *logger.Logger) *CancelRelay {
	return &CancelRelay{rdb: rdb, log: log}
}

// BroadcastCancel publishes jobID to all listening workers.
func (r *CancelRelay) BroadcastCancel(ctx context.Context, jobID uuid.UUID) error {
	return r.rdb.Publish(ctx, cancelChannel, jobID.String()).Err()
}

// Listen cancels local runs named on the channel until ctx is done.
func (r *CancelRelay) Listen(ctx context.Context, registry *jobs.Registry) {
	sub := r.rdb.Subscribe(ctx, cancelChannel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() == nil {
			r.log.Error("cancel relay subscribe failed", "error", err)
		}
		return
	}
	r.listen(ctx, sub.Channel(), registry)
}

func (r *CancelRelay) listen(ctx context.Context, messages <-chan *redis.Message, registry *jobs.Registry) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			jobID, err := uuid.Parse(msg.Payload)
			if err != nil {
				r.log.Warn("cancel relay ignored malformed job id", "payload", msg.Payload)
				continue
			}
			if registry.Cancel(jobID) {
				r.log.Info("campaign run interrupted by cancel", "jobId", jobID)
			}
		}
	}
}
