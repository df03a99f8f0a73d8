package api

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound maps a 404 response. On attempt lookup it means the
	// candidate has no attempt yet and one should be created.
	ErrNotFound = errors.New("resource not found")

	// ErrConflict maps a 409 response: the attempt is no longer active
	// server-side. Callers treat this as an authoritative external
	// status transition, never as a retryable failure.
	ErrConflict = errors.New("attempt already closed")
)

// Error is a non-2xx backend response that is not one of the sentinel
// protocol statuses above.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}
