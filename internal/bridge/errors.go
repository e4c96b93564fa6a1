package bridge

import "errors"

// Domain errors for the bridge package.
var (
	// ErrInvalidCommand is returned for a command payload that is not a
	// JSON home.Command with an action.
	ErrInvalidCommand = errors.New("bridge: invalid command payload")

	// ErrNotStarted is returned by Stop before Start.
	ErrNotStarted = errors.New("bridge: not started")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("bridge: already started")
)
