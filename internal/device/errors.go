package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a UDID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidUDID is returned when an operation is given an empty UDID.
	ErrInvalidUDID = errors.New("device: invalid udid")

	// ErrInvalidStatus is returned when a status value is not recognised.
	ErrInvalidStatus = errors.New("device: invalid status")
)
