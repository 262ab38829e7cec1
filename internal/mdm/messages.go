package mdm

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"howett.net/plist"

	"github.com/nerrad567/gray-logic-mdm/internal/device"
)

// MessageType is the MessageType key of a check-in message.
type MessageType string

// Check-in message types handled by the server.
const (
	MessageAuthenticate MessageType = "Authenticate"
	MessageTokenUpdate  MessageType = "TokenUpdate"
	MessageCheckOut     MessageType = "CheckOut"
)

// checkinMessage is the union of the check-in message keys the server reads.
type checkinMessage struct {
	MessageType  string `plist:"MessageType"`
	UDID         string `plist:"UDID"`
	Topic        string `plist:"Topic"`
	SerialNumber string `plist:"SerialNumber"`
	DeviceName   string `plist:"DeviceName"`
	Model        string `plist:"Model"`
	OSVersion    string `plist:"OSVersion"`
	Token        []byte `plist:"Token"`
	PushMagic    string `plist:"PushMagic"`
	UnlockToken  []byte `plist:"UnlockToken"`
}

// decodeCheckin parses a check-in body strictly.
func decodeCheckin(body []byte) (checkinMessage, error) {
	var msg checkinMessage
	if _, err := plist.Unmarshal(body, &msg); err != nil {
		return checkinMessage{}, fmt.Errorf("%w: %w", ErrProtocolDecode, err)
	}
	if msg.UDID == "" {
		return checkinMessage{}, fmt.Errorf("%w: missing UDID", ErrProtocolDecode)
	}
	return msg, nil
}

// identityFields are the Authenticate attributes.
func (m checkinMessage) identityFields() device.Fields {
	return device.Fields{
		SerialNumber: device.String(m.SerialNumber),
		DeviceName:   device.String(m.DeviceName),
		Model:        device.String(m.Model),
		OSVersion:    device.String(m.OSVersion),
		Topic:        device.String(m.Topic),
	}
}

// tokenFields are the TokenUpdate attributes. The push token is stored
// hex-encoded, which is what APNs addresses devices by.
func (m checkinMessage) tokenFields() device.Fields {
	f := device.Fields{
		PushMagic: device.String(m.PushMagic),
		Topic:     device.String(m.Topic),
	}
	if len(m.Token) > 0 {
		f.PushToken = device.String(hex.EncodeToString(m.Token))
	}
	if len(m.UnlockToken) > 0 {
		f.UnlockToken = device.String(base64.StdEncoding.EncodeToString(m.UnlockToken))
	}
	return f
}

// pollMessage holds the server channel keys the server reads.
type pollMessage struct {
	UDID        string `plist:"UDID"`
	Status      string `plist:"Status"`
	CommandUUID string `plist:"CommandUUID"`
}

// decodePoll parses a server channel body permissively. A body that does
// not fit pollMessage is retried as a generic dictionary so unexpected
// value types in other keys cannot hide the UDID. ok is false when the
// body is not a dictionary at all.
func decodePoll(body []byte) (msg pollMessage, ok bool) {
	if _, err := plist.Unmarshal(body, &msg); err == nil {
		return msg, true
	}

	var dict map[string]any
	if _, err := plist.Unmarshal(body, &dict); err != nil {
		return pollMessage{}, false
	}
	msg.UDID, _ = dict["UDID"].(string)
	msg.Status, _ = dict["Status"].(string)
	msg.CommandUUID, _ = dict["CommandUUID"].(string)
	return msg, true
}
