package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/domain"
	"github.com/john-nxt1sports/Ai-resell-agent-sub002/shared/postgresql"
)

// Storage is the Job Record Store: durable per-(job, marketplace)
// status rows, the single source of truth for UI polling. All writes
// that can race with duplicate webhook deliveries are conditional on
// the current status so a lost update is impossible.
type Storage struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

// NewStorage creates a new Storage instance
func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// CreateJob inserts the immutable bulk-request row.
func (s *Storage) CreateJob(ctx context.Context, job *domain.AutomationJob) error {
	query := `
		INSERT INTO automation_jobs (job_id, user_id, listing_id, marketplaces, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.UserID,
		job.ListingID,
		pq.Array(job.Marketplaces),
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetJob retrieves a job by id.
func (s *Storage) GetJob(ctx context.Context, jobID string) (*domain.AutomationJob, error) {
	query := `
		SELECT job_id, user_id, listing_id, marketplaces, created_at
		FROM automation_jobs
		WHERE job_id = $1
	`

	var job domain.AutomationJob
	var marketplaces pq.StringArray
	err := s.db.QueryRowContext(ctx, query, jobID).Scan(
		&job.JobID,
		&job.UserID,
		&job.ListingID,
		&marketplaces,
		&job.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	job.Marketplaces = marketplaces

	return &job, nil
}

// InsertResultIfNotActive creates a queued result row unless the
// (listing, marketplace) pair already has a non-terminal attempt. The
// dedupe is enforced by a partial unique index, so under two
// concurrent submissions exactly one insert lands and the other
// observes zero affected rows.
func (s *Storage) InsertResultIfNotActive(ctx context.Context, r *domain.ListingResult) (bool, error) {
	query := `
		INSERT INTO listing_results
			(job_id, user_id, listing_id, marketplace, status, progress, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (listing_id, marketplace) WHERE status IN ('queued', 'processing')
		DO NOTHING
	`

	res, err := s.db.ExecContext(
		ctx,
		query,
		r.JobID,
		r.UserID,
		r.ListingID,
		r.Marketplace,
		domain.StatusQueued,
		0,
		r.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert result: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected == 1, nil
}

// GetResult retrieves one (job, marketplace) row.
func (s *Storage) GetResult(ctx context.Context, jobID, marketplace string) (*domain.ListingResult, error) {
	query := `
		SELECT id, job_id, user_id, listing_id, marketplace, status, progress,
		       external_url, error_message, created_at, updated_at, completed_at
		FROM listing_results
		WHERE job_id = $1 AND marketplace = $2
	`

	var r domain.ListingResult
	if err := s.db.GetContext(ctx, &r, query, jobID, marketplace); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	return &r, nil
}

// ListResultsByJob returns every marketplace row for a job.
func (s *Storage) ListResultsByJob(ctx context.Context, jobID string) ([]domain.ListingResult, error) {
	query := `
		SELECT id, job_id, user_id, listing_id, marketplace, status, progress,
		       external_url, error_message, created_at, updated_at, completed_at
		FROM listing_results
		WHERE job_id = $1
		ORDER BY marketplace
	`

	var results []domain.ListingResult
	if err := s.db.SelectContext(ctx, &results, query, jobID); err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}

	return results, nil
}

// AdvanceProgress moves a row to processing with a monotonically
// non-decreasing progress value. The WHERE clause makes the write a
// compare-and-set: terminal rows are untouched and GREATEST drops a
// progress value smaller than what is already stored. Returns false
// for the stale/duplicate no-op case.
func (s *Storage) AdvanceProgress(ctx context.Context, jobID, marketplace string, progress int) (bool, error) {
	query := `
		UPDATE listing_results
		SET status = $1,
		    progress = GREATEST(progress, $2),
		    updated_at = NOW()
		WHERE job_id = $3
		  AND marketplace = $4
		  AND status IN ('queued', 'processing')
	`

	res, err := s.db.ExecContext(ctx, query, domain.StatusProcessing, progress, jobID, marketplace)
	if err != nil {
		return false, fmt.Errorf("failed to advance progress: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected == 1, nil
}

// CompleteResult transitions a row to completed or failed and stamps
// completed_at. The status precondition means the first terminal write
// wins; a duplicate or late delivery affects zero rows and returns
// false.
func (s *Storage) CompleteResult(ctx context.Context, jobID, marketplace, status string, externalURL, errorMessage *string) (bool, error) {
	if !domain.IsTerminal(status) {
		return false, fmt.Errorf("%w: %q is not a terminal status", domain.ErrValidation, status)
	}

	query := `
		UPDATE listing_results
		SET status = $1,
		    progress = 100,
		    external_url = $2,
		    error_message = $3,
		    updated_at = NOW(),
		    completed_at = NOW()
		WHERE job_id = $4
		  AND marketplace = $5
		  AND status IN ('queued', 'processing')
	`

	res, err := s.db.ExecContext(ctx, query, status, externalURL, errorMessage, jobID, marketplace)
	if err != nil {
		return false, fmt.Errorf("failed to complete result: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected == 1, nil
}

// FailJob marks every still-running row of a job failed with the given
// reason. Terminal rows are untouched. Returns the number of rows
// transitioned.
func (s *Storage) FailJob(ctx context.Context, jobID, reason string) (int, error) {
	query := `
		UPDATE listing_results
		SET status = $1,
		    error_message = $2,
		    updated_at = NOW(),
		    completed_at = NOW()
		WHERE job_id = $3
		  AND status IN ('queued', 'processing')
	`

	res, err := s.db.ExecContext(ctx, query, domain.StatusFailed, reason, jobID)
	if err != nil {
		return 0, fmt.Errorf("failed to fail job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(affected), nil
}

// CountActive returns the queued+processing backlog created within the
// window, used by the submit backpressure check.
func (s *Storage) CountActive(ctx context.Context, window time.Duration) (int, error) {
	query, args, err := s.sb.
		Select("COUNT(*)").
		From("listing_results").
		Where(sq.Eq{"status": []string{domain.StatusQueued, domain.StatusProcessing}}).
		Where(sq.Gt{"created_at": time.Now().Add(-window)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count active sql: %w", err)
	}

	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count active results: %w", err)
	}

	return count, nil
}

// QueueStats counts rows grouped by status within the window. Derived,
// never persisted, for health reporting only.
func (s *Storage) QueueStats(ctx context.Context, window time.Duration) (domain.QueueStats, error) {
	query, args, err := s.sb.
		Select("status", "COUNT(*) AS count").
		From("listing_results").
		Where(sq.Gt{"created_at": time.Now().Add(-window)}).
		GroupBy("status").
		ToSql()
	if err != nil {
		return domain.QueueStats{}, fmt.Errorf("build queue stats sql: %w", err)
	}

	rows := []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}{}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return domain.QueueStats{}, fmt.Errorf("failed to query queue stats: %w", err)
	}

	var stats domain.QueueStats
	for _, row := range rows {
		switch row.Status {
		case domain.StatusQueued:
			stats.Waiting = row.Count
		case domain.StatusProcessing:
			stats.Active = row.Count
		case domain.StatusCompleted:
			stats.Completed = row.Count
		case domain.StatusFailed:
			stats.Failed = row.Count
		}
	}

	return stats, nil
}

// ListStaleProcessing returns the ids of jobs with processing rows
// whose last transition is older than the cutoff. Staleness is measured
// from updated_at, so time spent queued before the worker picked the
// row up does not count against the processing timeout. The sweeper
// resolves these through the same bulk-failure path an operator would
// use.
func (s *Storage) ListStaleProcessing(ctx context.Context, olderThan time.Duration) ([]string, error) {
	query := `
		SELECT DISTINCT job_id
		FROM listing_results
		WHERE status = $1
		  AND updated_at < $2
	`

	var jobIDs []string
	cutoff := time.Now().Add(-olderThan)
	if err := s.db.SelectContext(ctx, &jobIDs, query, domain.StatusProcessing, cutoff); err != nil {
		return nil, fmt.Errorf("failed to list stale processing jobs: %w", err)
	}

	return jobIDs, nil
}

// ResultFilter narrows ListUserResults.
type ResultFilter struct {
	UserID      string
	Marketplace string
	Status      string
	PageSize    int
	Cursor      *ResultCursor
}

// ResultCursor is the keyset position for result pagination.
type ResultCursor struct {
	CreatedAt time.Time
	ID        int64
}

// ListUserResults returns a user's result rows newest-first with
// keyset pagination. Fetches one row beyond PageSize so the caller can
// tell whether more pages exist.
func (s *Storage) ListUserResults(ctx context.Context, filter ResultFilter) ([]domain.ListingResult, error) {
	b := s.sb.
		Select("id", "job_id", "user_id", "listing_id", "marketplace", "status", "progress",
			"external_url", "error_message", "created_at", "updated_at", "completed_at").
		From("listing_results").
		Where(sq.Eq{"user_id": filter.UserID})

	if filter.Marketplace != "" {
		b = b.Where(sq.Eq{"marketplace": filter.Marketplace})
	}
	if filter.Status != "" {
		b = b.Where(sq.Eq{"status": filter.Status})
	}
	if filter.Cursor != nil {
		b = b.Where(sq.Expr("(created_at, id) < (?, ?)", filter.Cursor.CreatedAt, filter.Cursor.ID))
	}

	query, args, err := b.
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(filter.PageSize + 1)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list results sql: %w", err)
	}

	var results []domain.ListingResult
	if err := s.db.SelectContext(ctx, &results, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list user results: %w", err)
	}

	return results, nil
}
