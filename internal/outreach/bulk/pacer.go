package bulk

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces provider sends. Wait is called before every real send and
// Pause between batches.
type Pacer interface {
	Wait(ctx context.Context) error
	Pause(ctx context.Context, d time.Duration) error
}

// NewSendLimiter returns the token bucket shared by every dispatcher and the
// sequence engine of a process: one send per interval, no burst.
func NewSendLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// TokenBucketPacer paces sends with a shared rate.Limiter.
type TokenBucketPacer struct {
	limiter *rate.Limiter
}

func NewTokenBucketPacer(limiter *rate.Limiter) *TokenBucketPacer {
	if limiter == nil {
		limiter = NewSendLimiter(0)
	}
	return &TokenBucketPacer{limiter: limiter}
}

func (p *TokenBucketPacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Pause sleeps for d or until ctx is done.
func (p *TokenBucketPacer) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
