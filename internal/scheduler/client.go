package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"lead_outreach_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	client   *asynq.Client
	queue    string
	maxRetry int
}

// CampaignEnqueuer hands a campaign job to the worker queue.
type CampaignEnqueuer interface {
	EnqueueCampaignJob(ctx context.Context, jobID uuid.UUID) error
}

func NewClient(cfg config.SchedulerConfig, maxRetry int) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client:   asynq.NewClient(opt),
		queue:    queueName(cfg),
		maxRetry: maxRetry,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueCampaignJob enqueues the bulk send of jobID. The task id is the job id,
// so enqueueing the same job twice is a no-op.
func (c *Client) EnqueueCampaignJob(ctx context.Context, jobID uuid.UUID) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("task queue not configured")
	}

	task, err := NewCampaignBulkSendTask(CampaignBulkSendPayload{JobID: jobID.String()})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID(jobID.String()),
		asynq.MaxRetry(c.maxRetry),
		asynq.Timeout(24*time.Hour),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func queueName(cfg config.SchedulerConfig) string {
	if queue := cfg.GetAsynqQueueName(); queue != "" {
		return queue
	}
	return "default"
}

// NewRedisClient opens the go-redis client used for task locks and the cancel relay.
func NewRedisClient(cfg config.SchedulerConfig) (*redis.Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	opt.TLSConfig = tlsConfig(opt.TLSConfig, cfg.GetRedisTLSInsecure())
	return redis.NewClient(opt), nil
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig(opt.TLSConfig, tlsInsecure),
	}, nil
}

// tlsConfig keeps TLS only for rediss:// URLs; insecure skips certificate checks there.
func tlsConfig(parsed *tls.Config, insecure bool) *tls.Config {
	if parsed == nil {
		return nil
	}
	clone := parsed.Clone()
	if insecure {
		clone.InsecureSkipVerify = true
	}
	return clone
}
