package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sagarc03/sitehost"
)

type blobSweeper interface {
	Sweep(ctx context.Context, opts sitehost.SweepOptions) (sitehost.SweepResult, error)
}

// sweepScheduler runs the orphan blob sweep on a cron schedule. Runs that
// overlap a still running sweep are skipped.
type sweepScheduler struct {
	cron    *cron.Cron
	sweeper blobSweeper
	opts    sitehost.SweepOptions
	timeout time.Duration
}

func newSweepScheduler(sweeper blobSweeper, schedule string, grace time.Duration) (*sweepScheduler, error) {
	logger := cronLogger{}
	s := &sweepScheduler{
		cron:    cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		sweeper: sweeper,
		opts:    sitehost.SweepOptions{GracePeriod: grace},
		timeout: 10 * time.Minute,
	}

	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("schedule sweep %q: %w", schedule, err)
	}
	return s, nil
}

func (s *sweepScheduler) Start() {
	s.cron.Start()
	slog.Info("orphan sweeper started", "entries", len(s.cron.Entries()))
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *sweepScheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		slog.Warn("orphan sweeper did not stop in time")
	}
}

func (s *sweepScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	result, err := s.sweeper.Sweep(ctx, s.opts)
	if err != nil {
		slog.Warn("scheduled sweep failed", "error", err)
		return
	}
	slog.Info("scheduled sweep complete", "scanned", result.Scanned, "orphaned", len(result.Orphaned), "removed", result.Removed)
}

// cronLogger forwards cron's own messages to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
