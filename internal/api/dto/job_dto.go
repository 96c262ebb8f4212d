package dto

// SubmitJobRequest is the body of POST /api/v1/jobs. The caller
// identity comes from the X-User-ID header, not the body.
type SubmitJobRequest struct {
	ListingID    string   `json:"listing_id" binding:"required"`
	Marketplaces []string `json:"marketplaces" binding:"required"`
}

// RejectedDTO explains one marketplace the dispatcher did not accept.
type RejectedDTO struct {
	Marketplace string `json:"marketplace"`
	Reason      string `json:"reason"`
}

// SubmitJobResponse mirrors the dispatcher outcome.
type SubmitJobResponse struct {
	JobID    string        `json:"job_id"`
	Accepted []string      `json:"accepted"`
	Rejected []RejectedDTO `json:"rejected,omitempty"`
}

// ResultDTO is the read-only projection of one (job, marketplace) row.
type ResultDTO struct {
	ID          int64   `json:"id"`
	JobID       string  `json:"job_id"`
	ListingID   string  `json:"listing_id"`
	Marketplace string  `json:"marketplace"`
	Status      string  `json:"status"`
	Progress    int     `json:"progress"`
	ExternalURL *string `json:"external_url,omitempty"`
	Error       *string `json:"error,omitempty"`
	CreatedAt   string  `json:"created_at"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

// JobResponse is the body of GET /api/v1/jobs/:job_id.
type JobResponse struct {
	JobID        string      `json:"job_id"`
	ListingID    string      `json:"listing_id"`
	Marketplaces []string    `json:"marketplaces"`
	CreatedAt    string      `json:"created_at"`
	Results      []ResultDTO `json:"results"`
}

// ListResultsRequest is the query of GET /api/v1/jobs.
type ListResultsRequest struct {
	Marketplace string `form:"marketplace"`
	Status      string `form:"status"`
	PageSize    int    `form:"page_size"`
	Cursor      string `form:"cursor"`
}

// ListResultsResponse is a cursor page of the caller's result rows.
type ListResultsResponse struct {
	Results    []ResultDTO `json:"results"`
	NextCursor string      `json:"next_cursor,omitempty"`
}
