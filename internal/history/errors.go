package history

import "errors"

var (
	// ErrSessionIDRequired is returned when a record lacks a session id.
	ErrSessionIDRequired = errors.New("history: session id is required")

	// ErrInvalidRetention is returned by Prune for a non-positive duration.
	ErrInvalidRetention = errors.New("history: retention must be positive")
)
