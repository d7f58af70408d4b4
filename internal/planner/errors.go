package planner

import "errors"

var (
	// ErrInputSuspended is returned for clicks and drags made during the
	// cooldown that follows an address lookup.
	ErrInputSuspended = errors.New("map input is suspended while an address lookup is in flight")

	// ErrInvalidPosition is returned for coordinates outside the lng/lat range.
	ErrInvalidPosition = errors.New("invalid position")

	// ErrStopNotFound is returned when a stop ID is not in the list.
	ErrStopNotFound = errors.New("stop not found")

	// ErrIndexOutOfRange is returned when removing an index outside a non-empty list.
	ErrIndexOutOfRange = errors.New("stop index out of range")

	// ErrDeviceLocationUnavailable is returned when the device could not
	// report its location. No stop is created.
	ErrDeviceLocationUnavailable = errors.New("device location unavailable")
)
