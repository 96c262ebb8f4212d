package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/domain"
)

type fakeStore struct {
	activeCount   int
	activePairs   map[string]bool // listingID|marketplace already in flight
	createJobErr  error
	insertedRows  []domain.ListingResult
	createdJobs   []domain.AutomationJob
	failedJobs    map[string]string
	statsToReturn domain.QueueStats
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		activePairs: make(map[string]bool),
		failedJobs:  make(map[string]string),
	}
}

func (s *fakeStore) CreateJob(_ context.Context, job *domain.AutomationJob) error {
	if s.createJobErr != nil {
		return s.createJobErr
	}
	s.createdJobs = append(s.createdJobs, *job)
	return nil
}

func (s *fakeStore) InsertResultIfNotActive(_ context.Context, r *domain.ListingResult) (bool, error) {
	key := r.ListingID + "|" + r.Marketplace
	if s.activePairs[key] {
		return false, nil
	}
	s.activePairs[key] = true
	s.insertedRows = append(s.insertedRows, *r)
	return true, nil
}

func (s *fakeStore) FailJob(_ context.Context, jobID, reason string) (int, error) {
	s.failedJobs[jobID] = reason
	count := 0
	for _, r := range s.insertedRows {
		if r.JobID == jobID {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) CountActive(_ context.Context, _ time.Duration) (int, error) {
	return s.activeCount, nil
}

func (s *fakeStore) QueueStats(_ context.Context, _ time.Duration) (domain.QueueStats, error) {
	return s.statsToReturn, nil
}

type fakePublisher struct {
	published [][]byte
	err       error
}

func (p *fakePublisher) PublishWithRetry(_ context.Context, body []byte, _ string) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, body)
	return nil
}

type fakeSessions struct {
	active map[string]bool // marketplace -> has active session
}

func (s *fakeSessions) HasActiveSession(_ context.Context, _, marketplace string) (bool, error) {
	return s.active[marketplace], nil
}

type fakeFreshness struct {
	valid map[string]bool
}

func (f *fakeFreshness) Validate(_ context.Context, _, marketplace string) (bool, error) {
	return f.valid[marketplace], nil
}

func newTestDispatcher(store Store, publisher Publisher, sessions Sessions, freshness FreshnessChecker, config Config) *Dispatcher {
	return NewDispatcher(store, publisher, sessions, freshness, config, slog.New(slog.DiscardHandler))
}

func TestDispatcher_SubmitHappyPath(t *testing.T) {
	store := newFakeStore()
	publisher := &fakePublisher{}
	sessions := &fakeSessions{active: map[string]bool{"ebay": true, "poshmark": true}}
	d := newTestDispatcher(store, publisher, sessions, nil, Config{MaxQueueDepth: 100})

	outcome, err := d.Submit(context.Background(), "user-1", "listing-1", []string{"ebay", "poshmark"})

	require.NoError(t, err)
	assert.NotEmpty(t, outcome.JobID)
	assert.ElementsMatch(t, []string{"ebay", "poshmark"}, outcome.Accepted)
	assert.Empty(t, outcome.Rejected)

	require.Len(t, store.createdJobs, 1)
	assert.Equal(t, outcome.JobID, store.createdJobs[0].JobID)
	assert.Len(t, store.insertedRows, 2)
	for _, row := range store.insertedRows {
		assert.Equal(t, domain.StatusQueued, row.Status)
		assert.Zero(t, row.Progress)
	}
	require.Len(t, publisher.published, 1)
	assert.Contains(t, string(publisher.published[0]), outcome.JobID)
}

func TestDispatcher_SubmitValidation(t *testing.T) {
	d := newTestDispatcher(newFakeStore(), &fakePublisher{}, &fakeSessions{}, nil, Config{MaxQueueDepth: 100})
	ctx := context.Background()

	tests := []struct {
		name         string
		userID       string
		listingID    string
		marketplaces []string
	}{
		{name: "missing user", listingID: "listing-1", marketplaces: []string{"ebay"}},
		{name: "missing listing", userID: "user-1", marketplaces: []string{"ebay"}},
		{name: "no marketplaces", userID: "user-1", listingID: "listing-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Submit(ctx, tt.userID, tt.listingID, tt.marketplaces)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestDispatcher_SubmitQueueSaturated(t *testing.T) {
	store := newFakeStore()
	store.activeCount = 100
	d := newTestDispatcher(store, &fakePublisher{}, &fakeSessions{}, nil, Config{MaxQueueDepth: 100})

	_, err := d.Submit(context.Background(), "user-1", "listing-1", []string{"ebay"})

	assert.ErrorIs(t, err, domain.ErrQueueSaturated)
	assert.Empty(t, store.insertedRows)
}

func TestDispatcher_SubmitRejectsWithoutSession(t *testing.T) {
	store := newFakeStore()
	publisher := &fakePublisher{}
	sessions := &fakeSessions{active: map[string]bool{"ebay": true}}
	d := newTestDispatcher(store, publisher, sessions, nil, Config{MaxQueueDepth: 100})

	outcome, err := d.Submit(context.Background(), "user-1", "listing-1", []string{"ebay", "mercari"})

	require.NoError(t, err)
	assert.Equal(t, []string{"ebay"}, outcome.Accepted)
	require.Len(t, outcome.Rejected, 1)
	assert.Equal(t, "mercari", outcome.Rejected[0].Marketplace)
	assert.Equal(t, domain.RejectNoSession, outcome.Rejected[0].Reason)
}

func TestDispatcher_SubmitRejectsStaleSession(t *testing.T) {
	store := newFakeStore()
	sessions := &fakeSessions{active: map[string]bool{"ebay": true, "poshmark": true}}
	freshness := &fakeFreshness{valid: map[string]bool{"ebay": true}}
	d := newTestDispatcher(store, &fakePublisher{}, sessions, freshness,
		Config{MaxQueueDepth: 100, RequireFreshSession: true})

	outcome, err := d.Submit(context.Background(), "user-1", "listing-1", []string{"ebay", "poshmark"})

	require.NoError(t, err)
	assert.Equal(t, []string{"ebay"}, outcome.Accepted)
	require.Len(t, outcome.Rejected, 1)
	assert.Equal(t, domain.RejectStaleSession, outcome.Rejected[0].Reason)
}

func TestDispatcher_SubmitRejectsInFlightDuplicate(t *testing.T) {
	store := newFakeStore()
	sessions := &fakeSessions{active: map[string]bool{"ebay": true}}
	d := newTestDispatcher(store, &fakePublisher{}, sessions, nil, Config{MaxQueueDepth: 100})
	ctx := context.Background()

	first, err := d.Submit(ctx, "user-1", "listing-1", []string{"ebay"})
	require.NoError(t, err)
	require.Equal(t, []string{"ebay"}, first.Accepted)

	_, err = d.Submit(ctx, "user-1", "listing-1", []string{"ebay"})
	assert.ErrorIs(t, err, domain.ErrAlreadyInFlight)

	// No job row and no envelope for an all-rejected submission.
	assert.Len(t, store.createdJobs, 1)
}

func TestDispatcher_SubmitPartialInFlightReturnsOutcome(t *testing.T) {
	store := newFakeStore()
	sessions := &fakeSessions{active: map[string]bool{"ebay": true, "poshmark": true}}
	d := newTestDispatcher(store, &fakePublisher{}, sessions, nil, Config{MaxQueueDepth: 100})
	ctx := context.Background()

	_, err := d.Submit(ctx, "user-1", "listing-1", []string{"ebay"})
	require.NoError(t, err)

	// Only ebay is a duplicate, so poshmark still goes through and the
	// rejection is reported per marketplace rather than as a hard error.
	outcome, err := d.Submit(ctx, "user-1", "listing-1", []string{"ebay", "poshmark"})
	require.NoError(t, err)
	assert.Equal(t, []string{"poshmark"}, outcome.Accepted)
	require.Len(t, outcome.Rejected, 1)
	assert.Equal(t, domain.RejectAlreadyInFlight, outcome.Rejected[0].Reason)
}

func TestDispatcher_SubmitDedupesMarketplaces(t *testing.T) {
	store := newFakeStore()
	sessions := &fakeSessions{active: map[string]bool{"ebay": true}}
	d := newTestDispatcher(store, &fakePublisher{}, sessions, nil, Config{MaxQueueDepth: 100})

	outcome, err := d.Submit(context.Background(), "user-1", "listing-1", []string{"ebay", "ebay", ""})

	require.NoError(t, err)
	assert.Equal(t, []string{"ebay"}, outcome.Accepted)
	assert.Empty(t, outcome.Rejected)
}

func TestDispatcher_PublishFailureAbandonsRows(t *testing.T) {
	store := newFakeStore()
	publisher := &fakePublisher{err: errors.New("broker unavailable")}
	sessions := &fakeSessions{active: map[string]bool{"ebay": true}}
	d := newTestDispatcher(store, publisher, sessions, nil, Config{MaxQueueDepth: 100})

	_, err := d.Submit(context.Background(), "user-1", "listing-1", []string{"ebay"})

	require.Error(t, err)
	require.Len(t, store.failedJobs, 1)
	for _, reason := range store.failedJobs {
		assert.Equal(t, "failed to enqueue automation job", reason)
	}
}

func TestDispatcher_Stats(t *testing.T) {
	store := newFakeStore()
	store.statsToReturn = domain.QueueStats{Waiting: 3, Active: 2, Completed: 10, Failed: 1}
	d := newTestDispatcher(store, &fakePublisher{}, &fakeSessions{}, nil, Config{MaxQueueDepth: 100})

	stats, err := d.Stats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 5, stats.Depth())
	assert.Equal(t, 10, stats.Completed)
}
