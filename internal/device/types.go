package device

import "time"

// Status is the enrolment state of a device.
type Status string

// Device enrolment states.
const (
	StatusEnrolled   Status = "enrolled"
	StatusUnenrolled Status = "unenrolled"
)

// Valid reports whether s is a known enrolment state.
func (s Status) Valid() bool {
	return s == StatusEnrolled || s == StatusUnenrolled
}

// Device is the identity and liveness record of a managed device.
//
// UDID is assigned by the device and never changes. Identity attributes
// arrive with Authenticate, push credentials with TokenUpdate; either may
// be absent until the corresponding message has been seen.
type Device struct {
	ID   int64  `json:"-"`
	UDID string `json:"udid"`

	SerialNumber *string `json:"serial_number,omitempty"`
	DeviceName   *string `json:"device_name,omitempty"`
	Model        *string `json:"model,omitempty"`
	OSVersion    *string `json:"os_version,omitempty"`

	// PushToken is hex-encoded, the form APNs expects as a device token.
	PushToken *string `json:"push_token,omitempty"`
	PushMagic *string `json:"-"`
	// UnlockToken is base64-encoded.
	UnlockToken *string `json:"-"`
	Topic       *string `json:"topic,omitempty"`

	Status     Status     `json:"status"`
	EnrolledAt time.Time  `json:"enrolled_at"`
	LastSeen   *time.Time `json:"last_seen,omitempty"`
}

// Enrolled reports whether the device is currently enrolled.
func (d *Device) Enrolled() bool {
	return d.Status == StatusEnrolled
}

// HasPushCredentials reports whether a wake signal can be addressed to the
// device.
func (d *Device) HasPushCredentials() bool {
	return deref(d.PushToken) != "" && deref(d.PushMagic) != ""
}

// Name returns the reported device name, or the UDID when none was reported.
func (d *Device) Name() string {
	if n := deref(d.DeviceName); n != "" {
		return n
	}
	return d.UDID
}

// Fields is a partial device update. Nil fields are left untouched when
// merged into an existing record.
type Fields struct {
	SerialNumber *string
	DeviceName   *string
	Model        *string
	OSVersion    *string
	PushToken    *string
	PushMagic    *string
	UnlockToken  *string
	Topic        *string
}

// IsEmpty reports whether no field is set.
func (f Fields) IsEmpty() bool {
	return f.SerialNumber == nil && f.DeviceName == nil && f.Model == nil &&
		f.OSVersion == nil && f.PushToken == nil && f.PushMagic == nil &&
		f.UnlockToken == nil && f.Topic == nil
}

// String returns a pointer to s, or nil when s is empty. Devices omit keys
// rather than sending empty values, so an empty string means "not supplied".
func String(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the value of an optional attribute, or "" when absent.
func Deref(s *string) string {
	return deref(s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
