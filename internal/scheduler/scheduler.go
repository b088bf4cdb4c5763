// Package scheduler drives periodic pipeline runs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/finwatch/bad-news-radar/internal/pipeline"
)

// Scheduler triggers a pipeline run at a fixed interval. Overlapping runs are
// skipped twice over: cron skips a job still running, and the runner's own
// lock rejects anything that slips through (a manual web trigger, say).
type Scheduler struct {
	cron   *cron.Cron
	runner *pipeline.Runner
	params pipeline.Params
	log    *slog.Logger
}

// New builds a Scheduler around the runner.
func New(runner *pipeline.Runner, params pipeline.Params, log *slog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cronLogger{log: log}),
			cron.Recover(cronLogger{log: log}),
		)),
		runner: runner,
		params: params,
		log:    log,
	}
}

// Start registers the job and begins the schedule. The first run fires after
// one full interval, not immediately; callers wanting an immediate run call
// RunOnce first.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	spec := fmt.Sprintf("@every %s", interval)
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("register schedule %q: %w", spec, err)
	}

	s.cron.Start()
	s.log.Info("scheduler started", slog.Duration("interval", interval))
	return nil
}

// RunOnce executes a single cycle, logging instead of propagating failures so
// a bad cycle never kills the schedule.
func (s *Scheduler) RunOnce(ctx context.Context) {
	started := time.Now()
	summary, err := s.runner.Run(ctx, s.params)
	if err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			s.log.Warn("skipping cycle, previous run still active")
			return
		}
		s.log.Error("scheduled run failed",
			slog.Duration("took", time.Since(started)),
			slog.Any("err", err))
		return
	}

	s.log.Info("scheduled run completed",
		slog.Duration("took", time.Since(started)),
		slog.Int("fetched", summary.Fetched),
		slog.Int("persisted", summary.Persisted),
		slog.Int("negative", summary.Negative),
		slog.Int("warnings", len(summary.Warnings)))
}

// Stop halts the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.log.Info("scheduler stopped")
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, slog.Any("err", err))...)
}
