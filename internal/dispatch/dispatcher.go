package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/domain"
	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/metrics"
)

// Store is the slice of the Job Record Store the dispatcher writes.
type Store interface {
	CreateJob(ctx context.Context, job *domain.AutomationJob) error
	InsertResultIfNotActive(ctx context.Context, r *domain.ListingResult) (bool, error)
	FailJob(ctx context.Context, jobID, reason string) (int, error)
	CountActive(ctx context.Context, window time.Duration) (int, error)
	QueueStats(ctx context.Context, window time.Duration) (domain.QueueStats, error)
}

// Publisher hands a job envelope to the dispatch channel. The external
// worker consumes the other end; submission never waits for it to be
// reachable beyond the broker publish itself.
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// Sessions is the vault view the dispatcher needs: existence checks
// only, no secret material.
type Sessions interface {
	HasActiveSession(ctx context.Context, userID, marketplace string) (bool, error)
}

// FreshnessChecker optionally gates submission on a live session
// validation against the marketplace.
type FreshnessChecker interface {
	Validate(ctx context.Context, userID, marketplace string) (bool, error)
}

// Config holds dispatcher configuration
type Config struct {
	MaxQueueDepth       int
	StatsWindow         time.Duration
	RequireFreshSession bool
}

// Dispatcher accepts automation requests, deduplicates them per
// (listing, marketplace), applies backpressure and enqueues accepted
// work for the external worker.
type Dispatcher struct {
	store     Store
	publisher Publisher
	sessions  Sessions
	freshness FreshnessChecker // nil unless RequireFreshSession
	config    Config
	logger    *slog.Logger
}

// NewDispatcher creates a new Dispatcher instance. freshness may be
// nil when fresh-session gating is disabled.
func NewDispatcher(store Store, publisher Publisher, sessions Sessions, freshness FreshnessChecker, config Config, logger *slog.Logger) *Dispatcher {
	if config.StatsWindow <= 0 {
		config.StatsWindow = 24 * time.Hour
	}
	return &Dispatcher{
		store:     store,
		publisher: publisher,
		sessions:  sessions,
		freshness: freshness,
		config:    config,
		logger:    logger,
	}
}

// Submit handles one bulk-posting request. Each requested marketplace
// is accepted or rejected independently; all accepted marketplaces
// share a single job id and a single envelope on the dispatch channel.
// When every requested marketplace already has an active run, Submit
// fails with ErrAlreadyInFlight instead of returning an empty outcome.
func (d *Dispatcher) Submit(ctx context.Context, userID, listingID string, marketplaces []string) (*domain.SubmitOutcome, error) {
	if userID == "" || listingID == "" {
		return nil, fmt.Errorf("%w: user id and listing id are required", domain.ErrValidation)
	}
	if len(marketplaces) == 0 {
		return nil, fmt.Errorf("%w: at least one marketplace is required", domain.ErrValidation)
	}

	depth, err := d.store.CountActive(ctx, d.config.StatsWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to check queue depth: %w", err)
	}
	if depth >= d.config.MaxQueueDepth {
		d.logger.Warn("Submission rejected, queue saturated",
			slog.Int("depth", depth),
			slog.Int("ceiling", d.config.MaxQueueDepth),
		)
		metrics.SubmissionRejected("queue_saturated")
		return nil, domain.ErrQueueSaturated
	}

	outcome := &domain.SubmitOutcome{JobID: uuid.New().String()}
	now := time.Now()

	for _, marketplace := range dedupe(marketplaces) {
		reason, err := d.admit(ctx, userID, marketplace)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			outcome.Rejected = append(outcome.Rejected, domain.RejectedMarketplace{
				Marketplace: marketplace,
				Reason:      reason,
			})
			metrics.SubmissionRejected(reason)
			continue
		}

		inserted, err := d.store.InsertResultIfNotActive(ctx, &domain.ListingResult{
			JobID:       outcome.JobID,
			UserID:      userID,
			ListingID:   listingID,
			Marketplace: marketplace,
			Status:      domain.StatusQueued,
			CreatedAt:   now,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create result row: %w", err)
		}
		if !inserted {
			outcome.Rejected = append(outcome.Rejected, domain.RejectedMarketplace{
				Marketplace: marketplace,
				Reason:      domain.RejectAlreadyInFlight,
			})
			metrics.SubmissionRejected(domain.RejectAlreadyInFlight)
			continue
		}

		outcome.Accepted = append(outcome.Accepted, marketplace)
	}

	if len(outcome.Accepted) == 0 {
		d.logger.Info("Submission accepted no marketplaces",
			slog.String("job_id", outcome.JobID),
			slog.String("listing_id", listingID),
			slog.Int("rejected", len(outcome.Rejected)),
		)
		if allRejectedAs(outcome.Rejected, domain.RejectAlreadyInFlight) {
			return nil, fmt.Errorf("%w: listing %s", domain.ErrAlreadyInFlight, listingID)
		}
		return outcome, nil
	}

	job := &domain.AutomationJob{
		JobID:        outcome.JobID,
		UserID:       userID,
		ListingID:    listingID,
		Marketplaces: outcome.Accepted,
		CreatedAt:    now,
	}
	if err := d.store.CreateJob(ctx, job); err != nil {
		d.abandon(ctx, outcome.JobID, "failed to record job")
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	body, err := json.Marshal(domain.JobEnvelope{
		JobID:        job.JobID,
		UserID:       job.UserID,
		ListingID:    job.ListingID,
		Marketplaces: job.Marketplaces,
	})
	if err != nil {
		d.abandon(ctx, outcome.JobID, "failed to encode job envelope")
		return nil, fmt.Errorf("failed to encode job envelope: %w", err)
	}

	if err := d.publisher.PublishWithRetry(ctx, body, "application/json"); err != nil {
		// rows exist but the worker will never see them; fail them now
		// rather than stranding queued rows forever
		d.abandon(ctx, outcome.JobID, "failed to enqueue automation job")
		return nil, fmt.Errorf("failed to publish job: %w", err)
	}

	metrics.JobSubmitted(len(outcome.Accepted))
	d.logger.Info("Automation job enqueued",
		slog.String("job_id", job.JobID),
		slog.String("user_id", userID),
		slog.String("listing_id", listingID),
		slog.Any("marketplaces", outcome.Accepted),
		slog.Int("rejected", len(outcome.Rejected)),
	)

	return outcome, nil
}

// admit decides whether a marketplace can be submitted at all, before
// the dedupe insert. Returns a rejection reason or "".
func (d *Dispatcher) admit(ctx context.Context, userID, marketplace string) (string, error) {
	ok, err := d.sessions.HasActiveSession(ctx, userID, marketplace)
	if err != nil {
		return "", fmt.Errorf("failed to check session for %s: %w", marketplace, err)
	}
	if !ok {
		return domain.RejectNoSession, nil
	}

	if d.config.RequireFreshSession && d.freshness != nil {
		valid, err := d.freshness.Validate(ctx, userID, marketplace)
		if err != nil {
			return "", fmt.Errorf("failed to validate session for %s: %w", marketplace, err)
		}
		if !valid {
			return domain.RejectStaleSession, nil
		}
	}

	return "", nil
}

// abandon bulk-fails the rows of a job whose envelope never reached
// the dispatch channel.
func (d *Dispatcher) abandon(ctx context.Context, jobID, reason string) {
	if _, err := d.store.FailJob(ctx, jobID, reason); err != nil {
		d.logger.Error("Failed to abandon job rows",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
	}
}

// Stats returns queue lifecycle counts over the bounded window and
// refreshes the queue depth gauges.
func (d *Dispatcher) Stats(ctx context.Context) (domain.QueueStats, error) {
	stats, err := d.store.QueueStats(ctx, d.config.StatsWindow)
	if err != nil {
		return domain.QueueStats{}, fmt.Errorf("failed to collect queue stats: %w", err)
	}
	metrics.SetQueueDepth(stats)
	return stats, nil
}

func allRejectedAs(rejected []domain.RejectedMarketplace, reason string) bool {
	if len(rejected) == 0 {
		return false
	}
	for _, r := range rejected {
		if r.Reason != reason {
			return false
		}
	}
	return true
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
