package domain

import (
	"encoding/json"
	"fmt"
)

// Webhook event types reported by the external automation worker.
const (
	EventJobProgress  = "job_progress"
	EventJobCompleted = "job_completed"
	EventJobFailed    = "job_failed"
)

// MarketplaceResult is the per-marketplace outcome inside a
// job_completed event.
type MarketplaceResult struct {
	Success bool   `json:"success"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WebhookEvent is the tagged union delivered on the webhook channel,
// keyed by Type. The worker delivers at-least-once and in any order;
// only the fields belonging to the event's type are meaningful.
type WebhookEvent struct {
	Type  string `json:"type"`
	JobID string `json:"job_id"`

	// job_progress
	Marketplace string `json:"marketplace,omitempty"`
	Progress    *int   `json:"progress,omitempty"`
	Status      string `json:"status,omitempty"`

	// job_completed
	Results             map[string]MarketplaceResult `json:"results,omitempty"`
	SuccessfulPlatforms []string                     `json:"successful_platforms,omitempty"`
	TotalPlatforms      int                          `json:"total_platforms,omitempty"`

	// job_failed
	Error string `json:"error,omitempty"`
}

// ParseWebhookEvent decodes and validates a webhook body. Unknown
// types map to ErrUnrecognizedEvent; structurally invalid payloads map
// to ErrValidation. Validation is structural only: stale or duplicate
// events are well-formed and are resolved later by the reconciler.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON body: %v", ErrValidation, err)
	}

	if ev.JobID == "" {
		return nil, fmt.Errorf("%w: job_id is required", ErrValidation)
	}

	switch ev.Type {
	case EventJobProgress:
		if ev.Marketplace == "" {
			return nil, fmt.Errorf("%w: job_progress requires marketplace", ErrValidation)
		}
		if ev.Progress == nil {
			return nil, fmt.Errorf("%w: job_progress requires progress", ErrValidation)
		}
		if *ev.Progress < 0 || *ev.Progress > 100 {
			return nil, fmt.Errorf("%w: progress must be between 0 and 100, got %d", ErrValidation, *ev.Progress)
		}
	case EventJobCompleted:
		if len(ev.Results) == 0 {
			return nil, fmt.Errorf("%w: job_completed requires a results map", ErrValidation)
		}
	case EventJobFailed:
		if ev.Error == "" {
			return nil, fmt.Errorf("%w: job_failed requires an error", ErrValidation)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnrecognizedEvent, ev.Type)
	}

	return &ev, nil
}
