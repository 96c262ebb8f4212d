package dto

import "encoding/json"

// CreateCredentialRequest is the body of POST /api/v1/credentials.
// Exactly one of Password (password class) or Cookies (session class)
// must be present; the handler validates the discriminator.
type CreateCredentialRequest struct {
	Marketplace string          `json:"marketplace" binding:"required"`
	Username    string          `json:"username"`
	Password    string          `json:"password"`
	Cookies     json.RawMessage `json:"cookies"`
}

// CredentialDTO is the metadata projection of one vaulted credential.
type CredentialDTO struct {
	ID          int64   `json:"id"`
	Marketplace string  `json:"marketplace"`
	Kind        string  `json:"kind"`
	Username    *string `json:"username,omitempty"`
	IsActive    bool    `json:"is_active"`
	LastUsed    *string `json:"last_used,omitempty"`
	UpdatedAt   string  `json:"updated_at"`
}

// ListCredentialsResponse is the body of GET /api/v1/credentials.
type ListCredentialsResponse struct {
	Credentials []CredentialDTO `json:"credentials"`
}

// ValidateSessionResponse is the body of the freshness check.
type ValidateSessionResponse struct {
	Marketplace string `json:"marketplace"`
	Valid       bool   `json:"valid"`
}
