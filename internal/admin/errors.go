package admin

import "errors"

// ErrDeviceNotEnrolled is returned when an action needs an enrolled device
// and the device has checked out or been unenrolled.
var ErrDeviceNotEnrolled = errors.New("admin: device is not enrolled")
