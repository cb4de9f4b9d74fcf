// Package scheduler runs the periodic outreach tasks, the campaign job queue
// and the plumbing that connects the API process to the worker process.
package scheduler

import (
	"context"
	"errors"
	"time"

	"lead_outreach_backend/internal/outreach/sequence"
	"lead_outreach_backend/platform/apperr"
	"lead_outreach_backend/platform/logger"
)

const (
	decayLockName    = "decay"
	sequenceLockName = "sequences"

	defaultDecayLockTTL    = 30 * time.Minute
	defaultSequenceLockTTL = 15 * time.Minute
)

type Decayer interface {
	DecayAll(ctx context.Context, now time.Time) (int, error)
}

type SequenceProcessor interface {
	ProcessDue(ctx context.Context, now time.Time) (sequence.Report, error)
}

// Locker serializes a named task across processes.
type Locker interface {
	Do(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// SchedulerContext carries what the periodic tasks need. Each process builds
// one at start-up and hands it to the cron triggers and the manual API triggers.
type SchedulerContext struct {
	Scoring   Decayer
	Sequences SequenceProcessor
	// Lock is optional; without it tasks only guard against themselves in-process.
	Lock            Locker
	DecayLockTTL    time.Duration
	SequenceLockTTL time.Duration
	Log             *logger.Logger
	Now             func() time.Time
}

func (s *SchedulerContext) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// RunDecay applies the daily score decay and returns the number of leads changed.
func (s *SchedulerContext) RunDecay(ctx context.Context) (int, error) {
	var decayed int
	err := s.locked(ctx, decayLockName, ttlOr(s.DecayLockTTL, defaultDecayLockTTL), func(ctx context.Context) error {
		n, err := s.Scoring.DecayAll(ctx, s.now())
		decayed = n
		return err
	})
	if err != nil {
		return decayed, err
	}
	s.Log.Info("score decay finished", "decayed", decayed)
	return decayed, nil
}

// RunSequences processes one tick of due sequence steps.
func (s *SchedulerContext) RunSequences(ctx context.Context) (sequence.Report, error) {
	var report sequence.Report
	err := s.locked(ctx, sequenceLockName, ttlOr(s.SequenceLockTTL, defaultSequenceLockTTL), func(ctx context.Context) error {
		r, err := s.Sequences.ProcessDue(ctx, s.now())
		report = r
		return err
	})
	return report, err
}

func (s *SchedulerContext) locked(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) error {
	if s.Lock == nil {
		return fn(ctx)
	}
	err := s.Lock.Do(ctx, name, ttl, fn)
	if errors.Is(err, ErrLocked) {
		return apperr.Conflict(name + " task is already running")
	}
	return err
}

func ttlOr(ttl, fallback time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return fallback
}
