package shared

import "errors"

// Error classes shared by both services. Concrete failures wrap one of these
// so callers can branch with errors.Is regardless of which layer produced them.
var (
	// ErrMalformedEnvelope marks a message that can never be processed. It is
	// dropped (or dead-lettered) rather than retried.
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrPersistence       = errors.New("persistence failure")
	ErrPublish           = errors.New("publish failure")
	ErrInvalidInput      = errors.New("invalid input")
)
