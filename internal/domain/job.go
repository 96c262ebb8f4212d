package domain

import "time"

// Result statuses for a single (job, marketplace) posting attempt.
// completed and failed are terminal; once a row reaches either, no
// further write may change status, external_url or error_message.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// IsTerminal reports whether a status is absorbing.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// AutomationJob identifies one bulk-posting request. Immutable after
// creation; per-marketplace outcomes live in ListingResult rows.
type AutomationJob struct {
	JobID        string    `db:"job_id"`
	UserID       string    `db:"user_id"`
	ListingID    string    `db:"listing_id"`
	Marketplaces []string  `db:"-"`
	CreatedAt    time.Time `db:"created_at"`
}

// ListingResult is one row per (job_id, marketplace). Created by the
// dispatcher with status=queued, progress=0; mutated only by the
// reconciler under compare-and-set rules.
type ListingResult struct {
	ID           int64      `db:"id"`
	JobID        string     `db:"job_id"`
	UserID       string     `db:"user_id"`
	ListingID    string     `db:"listing_id"`
	Marketplace  string     `db:"marketplace"`
	Status       string     `db:"status"`
	Progress     int        `db:"progress"`
	ExternalURL  *string    `db:"external_url"`
	ErrorMessage *string    `db:"error_message"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	CompletedAt  *time.Time `db:"completed_at"`
}

// Terminal reports whether the row has reached an absorbing state.
func (r *ListingResult) Terminal() bool {
	return IsTerminal(r.Status)
}

// QueueStats are derived counts over a bounded recent window, used for
// health reporting only, never for correctness decisions. Delayed is
// always zero on the AMQP dispatch path; the field is kept so the
// dashboard's queue widget keeps its shape.
type QueueStats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Delayed   int `json:"delayed"`
}

// Depth is the backlog the backpressure ceiling applies to.
func (s QueueStats) Depth() int {
	return s.Waiting + s.Active
}

// RejectedMarketplace explains why a requested marketplace was not
// accepted by Submit.
type RejectedMarketplace struct {
	Marketplace string `json:"marketplace"`
	Reason      string `json:"reason"`
}

// Rejection reasons returned by Submit.
const (
	RejectAlreadyInFlight = "already_in_flight"
	RejectNoSession       = "no_session"
	RejectStaleSession    = "stale_session"
)

// SubmitOutcome is the result of one bulk submission: a single job id
// covering every accepted marketplace plus the per-marketplace
// rejections.
type SubmitOutcome struct {
	JobID    string                `json:"job_id"`
	Accepted []string              `json:"accepted"`
	Rejected []RejectedMarketplace `json:"rejected,omitempty"`
}

// JobEnvelope is the work item handed to the external automation
// worker over the dispatch channel. Field names match the queue
// contract the worker already consumes.
type JobEnvelope struct {
	JobID        string   `json:"job_id"`
	UserID       string   `json:"user_id"`
	ListingID    string   `json:"listing_id"`
	Marketplaces []string `json:"marketplaces"`
}
