package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/api/dto"
	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/dispatch"
	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/domain"
	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/storage"
)

// JobHandler handles automation job HTTP requests
type JobHandler struct {
	logger     *slog.Logger
	storage    *storage.Storage
	dispatcher *dispatch.Dispatcher
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:     deps.Logger,
		storage:    deps.Storage,
		dispatcher: deps.Dispatcher,
	}
}

// SubmitJob handles POST /api/v1/jobs
// Accepts a bulk cross-listing request and enqueues it for the worker
func (h *JobHandler) SubmitJob(c *gin.Context) {
	userID := callerID(c)

	var req dto.SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	outcome, err := h.dispatcher.Submit(c.Request.Context(), userID, req.ListingID, req.Marketplaces)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrAlreadyInFlight):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrQueueSaturated):
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Queue is saturated, retry later",
			})
		default:
			h.logger.Error("Failed to submit job", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to submit job",
			})
		}
		return
	}

	resp := dto.SubmitJobResponse{
		JobID:    outcome.JobID,
		Accepted: outcome.Accepted,
	}
	for _, r := range outcome.Rejected {
		resp.Rejected = append(resp.Rejected, dto.RejectedDTO{
			Marketplace: r.Marketplace,
			Reason:      r.Reason,
		})
	}

	status := http.StatusAccepted
	if len(outcome.Accepted) == 0 {
		// every marketplace was rejected; nothing was enqueued
		status = http.StatusConflict
	}
	c.JSON(status, resp)
}

// GetJob handles GET /api/v1/jobs/:job_id
// Returns the job plus its per-marketplace result projection
func (h *JobHandler) GetJob(c *gin.Context) {
	userID := callerID(c)
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.storage.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get job"})
		return
	}

	if job.UserID != userID {
		// Hide other users' jobs entirely.
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	results, err := h.storage.ListResultsByJob(c.Request.Context(), jobID)
	if err != nil {
		h.logger.Error("Failed to list job results", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get job"})
		return
	}

	resp := dto.JobResponse{
		JobID:        job.JobID,
		ListingID:    job.ListingID,
		Marketplaces: job.Marketplaces,
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
		Results:      make([]dto.ResultDTO, len(results)),
	}
	for i, r := range results {
		resp.Results[i] = toResultDTO(r)
	}

	c.JSON(http.StatusOK, resp)
}

// ListJobs handles GET /api/v1/jobs
// Lists the caller's result rows with filtering and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	userID := callerID(c)

	var req dto.ListResultsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeResultCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.ResultFilter{
		UserID:      userID,
		Marketplace: req.Marketplace,
		Status:      req.Status,
		PageSize:    req.PageSize,
		Cursor:      cursor,
	}

	results, err := h.storage.ListUserResults(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list results", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list results",
		})
		return
	}

	hasMore := len(results) > req.PageSize
	if hasMore {
		results = results[:req.PageSize]
	}

	resp := dto.ListResultsResponse{
		Results: make([]dto.ResultDTO, len(results)),
	}
	for i, r := range results {
		resp.Results[i] = toResultDTO(r)
	}

	if hasMore {
		last := results[len(results)-1]
		resp.NextCursor = EncodeResultCursor(&storage.ResultCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	c.JSON(http.StatusOK, resp)
}

// QueueStats handles GET /api/v1/queue/stats
// Returns derived queue lifecycle counts for operational dashboards
func (h *JobHandler) QueueStats(c *gin.Context) {
	stats, err := h.dispatcher.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to collect queue stats", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to collect queue stats",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func toResultDTO(r domain.ListingResult) dto.ResultDTO {
	d := dto.ResultDTO{
		ID:          r.ID,
		JobID:       r.JobID,
		ListingID:   r.ListingID,
		Marketplace: r.Marketplace,
		Status:      r.Status,
		Progress:    r.Progress,
		ExternalURL: r.ExternalURL,
		Error:       r.ErrorMessage,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
	}
	if r.CompletedAt != nil {
		completed := r.CompletedAt.Format(time.RFC3339)
		d.CompletedAt = &completed
	}
	return d
}
