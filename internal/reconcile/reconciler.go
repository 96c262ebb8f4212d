package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/domain"
	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/metrics"
)

// Store is the slice of the record store the reconciler mutates. Every
// write is a compare-and-set: a false/zero return means the row was
// already terminal or the update was stale, which the reconciler treats
// as a successful no-op.
type Store interface {
	AdvanceProgress(ctx context.Context, jobID, marketplace string, progress int) (bool, error)
	CompleteResult(ctx context.Context, jobID, marketplace, status string, externalURL, errorMessage *string) (bool, error)
	FailJob(ctx context.Context, jobID, reason string) (int, error)
	ListResultsByJob(ctx context.Context, jobID string) ([]domain.ListingResult, error)
}

// StatusPublisher pushes a best-effort realtime snapshot of a job's
// per-marketplace states. Failures are logged and swallowed.
type StatusPublisher interface {
	PublishJobStatus(ctx context.Context, jobID string, results []domain.ListingResult) error
}

// Reconciler converts worker webhook events into record-store state.
// It is safe under at-least-once, out-of-order delivery: every event is
// applied through conditional writes, so a duplicate or late event
// degrades to a no-op instead of clobbering a terminal row.
type Reconciler struct {
	store     Store
	publisher StatusPublisher
	logger    *slog.Logger
}

// NewReconciler creates a new Reconciler instance. publisher may be nil
// when no realtime layer is configured.
func NewReconciler(store Store, publisher StatusPublisher, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// HandleEvent applies one parsed webhook event. Returns an error only
// for infrastructure failures; stale and duplicate events succeed as
// no-ops.
func (r *Reconciler) HandleEvent(ctx context.Context, ev *domain.WebhookEvent) error {
	metrics.WebhookEvent(ev.Type)

	switch ev.Type {
	case domain.EventJobProgress:
		return r.ApplyProgress(ctx, ev.JobID, ev.Marketplace, *ev.Progress)
	case domain.EventJobCompleted:
		return r.ApplyCompletion(ctx, ev.JobID, ev.Results)
	case domain.EventJobFailed:
		return r.ApplyJobFailure(ctx, ev.JobID, ev.Error)
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnrecognizedEvent, ev.Type)
	}
}

// ApplyProgress moves one marketplace row to processing with a
// monotonically non-decreasing progress value.
func (r *Reconciler) ApplyProgress(ctx context.Context, jobID, marketplace string, progress int) error {
	applied, err := r.store.AdvanceProgress(ctx, jobID, marketplace, progress)
	if err != nil {
		return fmt.Errorf("failed to apply progress: %w", err)
	}
	if !applied {
		metrics.WebhookNoop()
		r.logger.Debug("Ignored stale progress event",
			slog.String("job_id", jobID),
			slog.String("marketplace", marketplace),
			slog.Int("progress", progress),
		)
		return nil
	}

	r.publishSnapshot(ctx, jobID)
	return nil
}

// ApplyCompletion resolves every marketplace in a job_completed event
// to its terminal state. Marketplaces already terminal are left
// untouched.
func (r *Reconciler) ApplyCompletion(ctx context.Context, jobID string, results map[string]domain.MarketplaceResult) error {
	applied := 0
	for marketplace, result := range results {
		status := domain.StatusCompleted
		var externalURL, errorMessage *string
		if result.Success {
			if result.URL != "" {
				url := result.URL
				externalURL = &url
			}
		} else {
			status = domain.StatusFailed
			msg := result.Error
			if msg == "" {
				msg = "marketplace posting failed"
			}
			errorMessage = &msg
		}

		ok, err := r.store.CompleteResult(ctx, jobID, marketplace, status, externalURL, errorMessage)
		if err != nil {
			return fmt.Errorf("failed to apply completion for %s: %w", marketplace, err)
		}
		if ok {
			applied++
		}
	}

	if applied == 0 {
		metrics.WebhookNoop()
		r.logger.Debug("Ignored duplicate completion event", slog.String("job_id", jobID))
		return nil
	}

	r.logger.Info("Applied job completion",
		slog.String("job_id", jobID),
		slog.Int("marketplaces", applied),
	)
	r.publishSnapshot(ctx, jobID)
	return nil
}

// ApplyJobFailure fails every still-running row of a job with the given
// reason. Used by both job_failed webhooks and the stuck-job sweeper.
func (r *Reconciler) ApplyJobFailure(ctx context.Context, jobID, reason string) error {
	count, err := r.store.FailJob(ctx, jobID, reason)
	if err != nil {
		return fmt.Errorf("failed to apply job failure: %w", err)
	}
	if count == 0 {
		metrics.WebhookNoop()
		r.logger.Debug("Ignored failure event for settled job", slog.String("job_id", jobID))
		return nil
	}

	r.logger.Info("Applied job failure",
		slog.String("job_id", jobID),
		slog.String("reason", reason),
		slog.Int("marketplaces", count),
	)
	r.publishSnapshot(ctx, jobID)
	return nil
}

func (r *Reconciler) publishSnapshot(ctx context.Context, jobID string) {
	if r.publisher == nil {
		return
	}

	results, err := r.store.ListResultsByJob(ctx, jobID)
	if err != nil {
		r.logger.Warn("Failed to load results for status snapshot",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := r.publisher.PublishJobStatus(ctx, jobID, results); err != nil {
		r.logger.Warn("Failed to publish status snapshot",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}
