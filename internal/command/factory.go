package command

import (
	"fmt"

	"github.com/google/uuid"
	"howett.net/plist"
)

// document is the top-level structure of every command sent to a device.
type document struct {
	CommandUUID string `plist:"CommandUUID"`
	Command     any    `plist:"Command"`
}

// Build assigns a fresh UUID to req and serialises it as an XML property
// list of the form {CommandUUID, Command: {RequestType, ...}}.
func Build(req Request) (Descriptor, error) {
	if req == nil {
		return Descriptor{}, fmt.Errorf("%w: nil request", ErrUnknownCommandType)
	}

	id := uuid.NewString()
	payload, err := plist.MarshalIndent(document{
		CommandUUID: id,
		Command:     req.wire(),
	}, plist.XMLFormat, "\t")
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: %s: %v", ErrEncoding, req.Kind(), err)
	}

	return Descriptor{
		UUID:    id,
		Kind:    req.Kind(),
		Payload: payload,
	}, nil
}

// Decoded is a command document parsed back from its payload.
type Decoded struct {
	CommandUUID string         `plist:"CommandUUID"`
	Command     map[string]any `plist:"Command"`
}

// RequestType returns the Command.RequestType value.
func (d Decoded) RequestType() string {
	s, _ := d.Command["RequestType"].(string)
	return s
}

// Field returns a string field of the Command dictionary.
func (d Decoded) Field(key string) string {
	s, _ := d.Command[key].(string)
	return s
}

// Decode parses a payload produced by Build.
func Decode(payload []byte) (Decoded, error) {
	var d Decoded
	if _, err := plist.Unmarshal(payload, &d); err != nil {
		return Decoded{}, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return d, nil
}
