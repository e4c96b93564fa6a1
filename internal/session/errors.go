package session

import "errors"

// Domain errors for session management.
var (
	// ErrSessionNotFound is returned when no live session has the given id.
	ErrSessionNotFound = errors.New("session: not found")

	// ErrTooManySessions is returned by Create when the session cap is reached.
	ErrTooManySessions = errors.New("session: too many sessions")
)

// errSessionKept reports that a conditional removal found the session in use.
var errSessionKept = errors.New("session: in use")
