package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/domain"
)

const jobKeyPrefix = "job:"

// StatusCache pushes job status snapshots into Redis for the
// dashboard's realtime layer. The durable store stays the single
// source of truth; every write here is best-effort and a miss or
// failure only means the UI falls back to polling.
type StatusCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewStatusCache creates a new StatusCache instance
func NewStatusCache(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *StatusCache {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &StatusCache{rdb: rdb, ttl: ttl, logger: logger}
}

type resultSnapshot struct {
	Status      string  `json:"status"`
	Progress    int     `json:"progress"`
	ExternalURL *string `json:"external_url,omitempty"`
	Error       *string `json:"error,omitempty"`
}

// PublishJobStatus overwrites the job:<id> snapshot with the current
// per-marketplace states.
func (c *StatusCache) PublishJobStatus(ctx context.Context, jobID string, results []domain.ListingResult) error {
	snapshot := make(map[string]resultSnapshot, len(results))
	for _, r := range results {
		snapshot[r.Marketplace] = resultSnapshot{
			Status:      r.Status,
			Progress:    r.Progress,
			ExternalURL: r.ExternalURL,
			Error:       r.ErrorMessage,
		}
	}

	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode status snapshot: %w", err)
	}

	if err := c.rdb.Set(ctx, jobKeyPrefix+jobID, body, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write status snapshot: %w", err)
	}

	c.logger.Debug("Published job status snapshot",
		slog.String("job_id", jobID),
		slog.Int("marketplaces", len(results)),
	)
	return nil
}
