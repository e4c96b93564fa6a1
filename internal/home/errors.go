package home

import "errors"

// Domain errors for the home package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, home.ErrUnknownEntity) {
//	    // reject the request
//	}
//
// A call that returns one of these errors has not modified the Home.
var (
	// ErrInvalidParameter is returned when a value is outside its declared
	// domain (thermostat target, fan level, irrigation duration, schedule).
	ErrInvalidParameter = errors.New("home: invalid parameter")

	// ErrUnknownEntity is returned for a room, door, camera, zone or network
	// that is not part of the home.
	ErrUnknownEntity = errors.New("home: unknown entity")

	// ErrInvariantViolation is returned when a defensive check finds the
	// state inconsistent, e.g. two networks marked connected.
	ErrInvariantViolation = errors.New("home: invariant violation")
)
