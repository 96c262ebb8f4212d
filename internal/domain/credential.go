package domain

import "time"

// Credential kinds stored in the vault. Password-class material is
// hashed one-way; session-class material (cookie jars) is encrypted
// reversibly because the worker must present it verbatim.
const (
	CredentialPassword = "password"
	CredentialSession  = "session"
)

// CredentialInfo is the metadata view of a vaulted credential. Secret
// material never leaves the vault; this is all a caller outside it may
// see.
type CredentialInfo struct {
	ID          int64      `db:"id" json:"id"`
	Marketplace string     `db:"marketplace" json:"marketplace"`
	Kind        string     `db:"kind" json:"kind"`
	Username    *string    `db:"username" json:"username,omitempty"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	LastUsed    *time.Time `db:"last_used" json:"last_used,omitempty"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
