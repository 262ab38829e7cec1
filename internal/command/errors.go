package command

import "errors"

// Domain errors for the command package.
var (
	// ErrCommandNotFound is returned when a command UUID does not exist, or
	// when a device has no pending command.
	ErrCommandNotFound = errors.New("command: not found")

	// ErrNoPendingCommand is returned by Dispatch when the device's queue
	// is empty. It is not a failure; the device may idle.
	ErrNoPendingCommand = errors.New("command: no pending command")

	// ErrUnknownCommandType is returned when a command kind is outside the
	// supported set.
	ErrUnknownCommandType = errors.New("command: unknown command type")

	// ErrUnknownDevice is returned when enqueueing for a UDID that has no
	// device record.
	ErrUnknownDevice = errors.New("command: unknown device")

	// ErrEncoding is returned when a command payload cannot be serialised.
	ErrEncoding = errors.New("command: payload encoding failed")
)
