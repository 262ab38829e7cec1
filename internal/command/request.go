package command

import "fmt"

// Default parameter values applied when a request field is empty.
const (
	DefaultMessage           = "Message from MDM Server"
	DefaultLostModeMessage   = "This device has been marked as lost."
	DefaultLostModeFootnote  = "Contact IT department"
	DefaultProfileIdentifier = "com.mdmserver.enrollment"
)

// deviceInformationQueries is the fixed query list sent with
// DeviceInformation.
var deviceInformationQueries = []string{
	"UDID", "DeviceName", "OSVersion", "BuildVersion",
	"ModelName", "Model", "SerialNumber", "BatteryLevel",
	"ICCID", "IMEI", "IsSupervised",
}

// DeviceInformationQueries returns a copy of the query list sent with a
// DeviceInformation command.
func DeviceInformationQueries() []string {
	return append([]string(nil), deviceInformationQueries...)
}

// Request is a command to build. The set of implementations is closed:
// only the types in this package satisfy it.
type Request interface {
	Kind() Kind

	// wire returns the value encoded under the document's Command key.
	wire() any
}

// DeviceInformation asks the device to report its identity attributes.
type DeviceInformation struct{}

// SendMessage shows a message on the device's lock screen.
type SendMessage struct {
	Message     string
	PhoneNumber string
	PIN         string
}

// EnableLostMode locks the device into lost mode with a contact message.
type EnableLostMode struct {
	Message     string
	PhoneNumber string
	Footnote    string
}

// DisableLostMode takes the device out of lost mode.
type DisableLostMode struct{}

// DeviceLock locks the device, optionally with a PIN.
type DeviceLock struct {
	PIN string
}

// RemoveProfile removes the enrolment profile, unenrolling the device.
type RemoveProfile struct {
	// Identifier of the profile to remove. Empty means
	// DefaultProfileIdentifier.
	Identifier string
}

// EraseDevice wipes the device.
type EraseDevice struct{}

func (DeviceInformation) Kind() Kind { return KindDeviceInformation }
func (SendMessage) Kind() Kind       { return KindSendMessage }
func (EnableLostMode) Kind() Kind    { return KindEnableLostMode }
func (DisableLostMode) Kind() Kind   { return KindDisableLostMode }
func (DeviceLock) Kind() Kind        { return KindDeviceLock }
func (RemoveProfile) Kind() Kind     { return KindRemoveProfile }
func (EraseDevice) Kind() Kind       { return KindEraseDevice }

// Wire bodies. Empty strings are encoded rather than omitted: devices
// expect PhoneNumber and PIN keys to be present.

type requestOnly struct {
	RequestType string `plist:"RequestType"`
}

type queriesBody struct {
	RequestType string   `plist:"RequestType"`
	Queries     []string `plist:"Queries"`
}

type messageBody struct {
	RequestType string `plist:"RequestType"`
	Message     string `plist:"Message"`
	PhoneNumber string `plist:"PhoneNumber"`
	PIN         string `plist:"PIN"`
}

type lostModeBody struct {
	RequestType string `plist:"RequestType"`
	Message     string `plist:"Message"`
	PhoneNumber string `plist:"PhoneNumber"`
	Footnote    string `plist:"Footnote"`
}

type lockBody struct {
	RequestType string `plist:"RequestType"`
	PIN         string `plist:"PIN"`
}

type removeProfileBody struct {
	RequestType string `plist:"RequestType"`
	Identifier  string `plist:"Identifier"`
}

func (DeviceInformation) wire() any {
	return queriesBody{RequestType: "DeviceInformation", Queries: DeviceInformationQueries()}
}

// SendMessage is delivered as a DeviceLock carrying a message.
func (r SendMessage) wire() any {
	return messageBody{
		RequestType: "DeviceLock",
		Message:     orDefault(r.Message, DefaultMessage),
		PhoneNumber: r.PhoneNumber,
		PIN:         r.PIN,
	}
}

func (r EnableLostMode) wire() any {
	return lostModeBody{
		RequestType: "EnableLostMode",
		Message:     orDefault(r.Message, DefaultLostModeMessage),
		PhoneNumber: r.PhoneNumber,
		Footnote:    orDefault(r.Footnote, DefaultLostModeFootnote),
	}
}

func (DisableLostMode) wire() any { return requestOnly{RequestType: "DisableLostMode"} }

func (r DeviceLock) wire() any { return lockBody{RequestType: "DeviceLock", PIN: r.PIN} }

func (r RemoveProfile) wire() any {
	return removeProfileBody{
		RequestType: "RemoveProfile",
		Identifier:  orDefault(r.Identifier, DefaultProfileIdentifier),
	}
}

func (EraseDevice) wire() any { return requestOnly{RequestType: "EraseDevice"} }

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Params carries the loosely typed parameters accepted by the admin API.
// Fields irrelevant to a kind are ignored.
type Params struct {
	Message     string `json:"message"`
	PhoneNumber string `json:"phoneNumber"`
	Footnote    string `json:"footnote"`
	PIN         string `json:"pin"`
	Identifier  string `json:"identifier"`
}

// ParseRequest builds a Request from a kind name and parameters.
// Returns ErrUnknownCommandType for any kind outside the supported set.
func ParseRequest(kind string, p Params) (Request, error) {
	switch Kind(kind) {
	case KindDeviceInformation:
		return DeviceInformation{}, nil
	case KindSendMessage:
		return SendMessage{Message: p.Message, PhoneNumber: p.PhoneNumber, PIN: p.PIN}, nil
	case KindEnableLostMode:
		return EnableLostMode{Message: p.Message, PhoneNumber: p.PhoneNumber, Footnote: p.Footnote}, nil
	case KindDisableLostMode:
		return DisableLostMode{}, nil
	case KindDeviceLock:
		return DeviceLock{PIN: p.PIN}, nil
	case KindRemoveProfile:
		return RemoveProfile{Identifier: p.Identifier}, nil
	case KindEraseDevice:
		return EraseDevice{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommandType, kind)
	}
}
