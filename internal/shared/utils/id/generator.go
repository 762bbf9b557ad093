// Package id generates the identifiers propagated across task execution
// boundaries: task ids, request ids, consent ids and checkpoint ids.
package id

import (
	"fmt"

	"github.com/google/uuid"
)

// NewTaskID generates a new task identifier with a stable prefix for display.
func NewTaskID() string {
	return newIdentifier("task")
}

// NewRequestID generates an identifier tagging one inference request.
func NewRequestID() string {
	return newIdentifier("req")
}

// NewConsentID generates an opaque consent-request token.
func NewConsentID() string {
	return newIdentifier("consent")
}

// NewCheckpointID generates a checkpoint identifier.
func NewCheckpointID() string {
	return newIdentifier("ckpt")
}

// NewSessionID generates a session identifier.
func NewSessionID() string {
	return newIdentifier("session")
}

func newIdentifier(prefix string) string {
	body, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the entropy source does; fall back to v4.
		return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
	}
	return fmt.Sprintf("%s-%s", prefix, body.String())
}
