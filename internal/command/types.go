package command

import "time"

// Kind identifies one of the supported command kinds.
type Kind string

// Supported command kinds.
const (
	KindDeviceInformation Kind = "DeviceInformation"
	KindSendMessage       Kind = "SendMessage"
	KindEnableLostMode    Kind = "EnableLostMode"
	KindDisableLostMode   Kind = "DisableLostMode"
	KindDeviceLock        Kind = "DeviceLock"
	KindRemoveProfile     Kind = "RemoveProfile"
	KindEraseDevice       Kind = "EraseDevice"
)

// AllKinds returns every supported kind.
func AllKinds() []Kind {
	return []Kind{
		KindDeviceInformation,
		KindSendMessage,
		KindEnableLostMode,
		KindDisableLostMode,
		KindDeviceLock,
		KindRemoveProfile,
		KindEraseDevice,
	}
}

// Status is the lifecycle state of a queued command.
//
// The five named values are the ones this server assigns. A device may
// report a status outside that set; it is kept verbatim as an extension
// value rather than dropped.
type Status string

// Command lifecycle states.
const (
	StatusPending      Status = "pending"
	StatusSent         Status = "sent"
	StatusAcknowledged Status = "acknowledged"
	StatusError        Status = "error"
	StatusFormatError  Status = "format_error"
)

// Status values reported by devices on the poll channel.
const (
	ReportAcknowledged       = "Acknowledged"
	ReportError              = "Error"
	ReportCommandFormatError = "CommandFormatError"
	ReportNotNow             = "NotNow"
)

// StatusFromReport maps a device-reported status to a command Status.
// Unrecognised reports pass through unchanged.
func StatusFromReport(reported string) Status {
	switch reported {
	case ReportAcknowledged:
		return StatusAcknowledged
	case ReportError:
		return StatusError
	case ReportCommandFormatError:
		return StatusFormatError
	default:
		return Status(reported)
	}
}

// Known reports whether s is one of the named lifecycle states.
func (s Status) Known() bool {
	switch s {
	case StatusPending, StatusSent, StatusAcknowledged, StatusError, StatusFormatError:
		return true
	}
	return false
}

// Extension reports whether s is a device-reported value outside the
// named lifecycle states.
func (s Status) Extension() bool {
	return s != "" && !s.Known()
}

// Final reports whether no further response will be recorded for a command
// in this state.
func (s Status) Final() bool {
	return s == StatusAcknowledged || s == StatusError || s == StatusFormatError
}

// Command is one management instruction queued for a device.
type Command struct {
	ID          int64      `json:"-"`
	UUID        string     `json:"command_uuid"`
	DeviceUDID  string     `json:"device_udid"`
	Type        Kind       `json:"command_type"`
	Payload     string     `json:"payload"`
	Status      Status     `json:"status"`
	Result      *string    `json:"result,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// Descriptor is the output of Build: a fresh command identifier and the
// serialised document the device will receive.
type Descriptor struct {
	UUID    string
	Kind    Kind
	Payload []byte
}
