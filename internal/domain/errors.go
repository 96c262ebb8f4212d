package domain

import "errors"

var (
	// ErrAlreadyInFlight is returned when a (listing, marketplace) pair
	// already has a non-terminal automation attempt.
	ErrAlreadyInFlight = errors.New("automation already in flight for this marketplace")

	// ErrQueueSaturated is returned when queue depth exceeds the
	// configured ceiling; callers should retry later with backoff.
	ErrQueueSaturated = errors.New("automation queue is saturated")

	// ErrNotFound is returned when a job, result or credential does not
	// exist or is no longer active.
	ErrNotFound = errors.New("not found")

	// ErrDecryptionFailed is returned when a stored session envelope is
	// corrupt or was written under an incompatible master key.
	ErrDecryptionFailed = errors.New("session envelope decryption failed")

	// ErrUnrecognizedEvent is returned for webhook payloads whose type
	// is not part of the worker contract.
	ErrUnrecognizedEvent = errors.New("unrecognized webhook event type")

	// ErrValidation is returned for missing or malformed request fields.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized is returned when caller identity is missing or the
	// webhook token does not match.
	ErrUnauthorized = errors.New("unauthorized")
)
