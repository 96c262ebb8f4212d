package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultCheckTimeout = 15 * time.Second

// HTTPChecker asks the marketplace session checker service over HTTP
// whether a cookie jar is still accepted.
type HTTPChecker struct {
	baseURL string
	client  *http.Client
}

// NewHTTPChecker creates a new HTTPChecker instance
func NewHTTPChecker(baseURL string, timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &HTTPChecker{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type checkRequest struct {
	Marketplace string          `json:"marketplace"`
	Cookies     json.RawMessage `json:"cookies"`
}

type checkResponse struct {
	Valid bool `json:"valid"`
}

// CheckSession posts the jar to the checker. A 200 response carries
// the verdict; 401/403 mean the marketplace rejected the session.
func (c *HTTPChecker) CheckSession(ctx context.Context, marketplace string, cookies []byte) (bool, error) {
	body, err := json.Marshal(checkRequest{Marketplace: marketplace, Cookies: cookies})
	if err != nil {
		return false, fmt.Errorf("failed to encode check request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sessions/check", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to build check request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("session checker unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var result checkResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return false, fmt.Errorf("failed to decode check response: %w", err)
		}
		return result.Valid, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return false, nil
	default:
		return false, fmt.Errorf("session checker returned status %d", resp.StatusCode)
	}
}
