package mdm

import "errors"

// Domain errors for the mdm package.
var (
	// ErrProtocolDecode is returned when a device message is not a
	// property list or has no UDID.
	ErrProtocolDecode = errors.New("mdm: undecodable device message")

	// ErrUnrecognizedMessageType is returned for a check-in MessageType
	// other than Authenticate, TokenUpdate or CheckOut.
	ErrUnrecognizedMessageType = errors.New("mdm: unrecognised check-in message type")
)
