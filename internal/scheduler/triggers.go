package scheduler

import (
	"context"
	"fmt"
	"time"

	"lead_outreach_backend/platform/apperr"
	"lead_outreach_backend/platform/config"
	"lead_outreach_backend/platform/logger"

	"github.com/robfig/cron/v3"
)

// Triggers fires the decay and sequence tasks on their cron schedules.
// A run that is still going when its next tick arrives makes that tick a no-op.
type Triggers struct {
	sc       *SchedulerContext
	loc      *time.Location
	decay    cron.Schedule
	sequence cron.Schedule
	log      *logger.Logger
}

func NewTriggers(sc *SchedulerContext, cfg config.TriggerConfig, log *logger.Logger) (*Triggers, error) {
	loc, err := time.LoadLocation(cfg.GetSchedulerTimezone())
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone: %w", err)
	}
	decay, err := cron.ParseStandard(cfg.GetDecaySchedule())
	if err != nil {
		return nil, fmt.Errorf("decay schedule: %w", err)
	}
	seq, err := cron.ParseStandard(cfg.GetSequenceSchedule())
	if err != nil {
		return nil, fmt.Errorf("sequence schedule: %w", err)
	}
	return &Triggers{sc: sc, loc: loc, decay: decay, sequence: seq, log: log}, nil
}

// Run blocks until ctx is done, then waits for running tasks to return.
func (t *Triggers) Run(ctx context.Context) {
	cl := cronLogger{log: t.log}
	c := cron.New(
		cron.WithLocation(t.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	c.Schedule(t.decay, cron.FuncJob(func() {
		if _, err := t.sc.RunDecay(ctx); err != nil {
			t.logRunError("decay", err)
		}
	}))
	c.Schedule(t.sequence, cron.FuncJob(func() {
		if _, err := t.sc.RunSequences(ctx); err != nil {
			t.logRunError("sequences", err)
		}
	}))

	c.Start()
	t.log.Info("scheduler triggers started", "tz", t.loc.String())

	<-ctx.Done()
	<-c.Stop().Done()
}

func (t *Triggers) logRunError(task string, err error) {
	if apperr.Is(err, apperr.KindConflict) {
		t.log.Debug("scheduled task skipped", "task", task, "reason", err)
		return
	}
	t.log.Error("scheduled task failed", "task", task, "error", err)
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
