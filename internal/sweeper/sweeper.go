package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/metrics"
)

// Store lists jobs whose processing rows have outlived the timeout.
type Store interface {
	ListStaleProcessing(ctx context.Context, olderThan time.Duration) ([]string, error)
}

// Resolver bulk-fails a stuck job. Satisfied by the reconciler so the
// sweep goes through the same absorbing-state rules a webhook would.
type Resolver interface {
	ApplyJobFailure(ctx context.Context, jobID, reason string) error
}

// Sweeper resolves jobs stuck in processing. The worker normally
// settles every row with a terminal webhook; when it dies mid-job the
// rows would sit in processing forever, so a scheduled sweep fails
// them after a configured timeout.
type Sweeper struct {
	store    Store
	resolver Resolver
	timeout  time.Duration
	schedule string
	logger   *slog.Logger
	cron     *cron.Cron
}

// NewSweeper creates a new Sweeper instance
func NewSweeper(store Store, resolver Resolver, schedule string, timeout time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		resolver: resolver,
		timeout:  timeout,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the sweep on the cron schedule and runs it until
// Stop is called.
func (s *Sweeper) Start() error {
	s.cron = cron.New()

	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.Sweep(context.Background()); err != nil {
			s.logger.Error("Sweep run failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Sweeper started",
		slog.String("schedule", s.schedule),
		slog.Duration("processing_timeout", s.timeout),
	)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("Sweeper stopped")
}

// Sweep fails every job stuck in processing past the timeout. Rows
// that reached a terminal state in the meantime are untouched by the
// resolver's compare-and-set writes.
func (s *Sweeper) Sweep(ctx context.Context) error {
	jobIDs, err := s.store.ListStaleProcessing(ctx, s.timeout)
	if err != nil {
		return fmt.Errorf("failed to list stale jobs: %w", err)
	}
	if len(jobIDs) == 0 {
		return nil
	}

	s.logger.Info("Sweeping stuck jobs", slog.Int("count", len(jobIDs)))

	for _, jobID := range jobIDs {
		if err := s.resolver.ApplyJobFailure(ctx, jobID, "automation timed out"); err != nil {
			s.logger.Error("Failed to sweep job",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
			continue
		}
		metrics.JobSwept()
	}

	return nil
}
