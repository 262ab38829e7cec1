package command

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestBuild_DeviceInformation(t *testing.T) {
	desc, err := Build(DeviceInformation{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if desc.Kind != KindDeviceInformation {
		t.Errorf("Kind = %q, want %q", desc.Kind, KindDeviceInformation)
	}
	if _, err := uuid.Parse(desc.UUID); err != nil {
		t.Errorf("UUID %q is not a UUID: %v", desc.UUID, err)
	}

	doc, err := Decode(desc.Payload)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if doc.CommandUUID != desc.UUID {
		t.Errorf("CommandUUID = %q, want %q", doc.CommandUUID, desc.UUID)
	}
	if doc.RequestType() != "DeviceInformation" {
		t.Errorf("RequestType = %q, want DeviceInformation", doc.RequestType())
	}

	raw, ok := doc.Command["Queries"].([]any)
	if !ok {
		t.Fatalf("Queries has type %T, want []any", doc.Command["Queries"])
	}
	got := make([]string, len(raw))
	for i, q := range raw {
		got[i], _ = q.(string)
	}
	want := []string{
		"UDID", "DeviceName", "OSVersion", "BuildVersion", "ModelName", "Model",
		"SerialNumber", "BatteryLevel", "ICCID", "IMEI", "IsSupervised",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Queries = %v, want %v", got, want)
	}
}

func TestBuild_EnableLostModeLiterals(t *testing.T) {
	desc, err := Build(EnableLostMode{Message: "lost", PhoneNumber: "555", Footnote: "call us"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	doc, err := Decode(desc.Payload)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	checks := map[string]string{
		"RequestType": "EnableLostMode",
		"Message":     "lost",
		"PhoneNumber": "555",
		"Footnote":    "call us",
	}
	for key, want := range checks {
		if got := doc.Field(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
}

func TestBuild_Defaults(t *testing.T) {
	tests := []struct {
		name        string
		req         Request
		requestType string
		fields      map[string]string
	}{
		{
			name:        "send message",
			req:         SendMessage{},
			requestType: "DeviceLock",
			fields:      map[string]string{"Message": DefaultMessage, "PhoneNumber": "", "PIN": ""},
		},
		{
			name:        "lost mode",
			req:         EnableLostMode{PhoneNumber: "123"},
			requestType: "EnableLostMode",
			fields: map[string]string{
				"Message":     DefaultLostModeMessage,
				"PhoneNumber": "123",
				"Footnote":    DefaultLostModeFootnote,
			},
		},
		{
			name:        "disable lost mode",
			req:         DisableLostMode{},
			requestType: "DisableLostMode",
		},
		{
			name:        "device lock",
			req:         DeviceLock{PIN: "123456"},
			requestType: "DeviceLock",
			fields:      map[string]string{"PIN": "123456"},
		},
		{
			name:        "remove profile default identifier",
			req:         RemoveProfile{},
			requestType: "RemoveProfile",
			fields:      map[string]string{"Identifier": DefaultProfileIdentifier},
		},
		{
			name:        "remove profile configured identifier",
			req:         RemoveProfile{Identifier: "uk.co.graylogic.mdm"},
			requestType: "RemoveProfile",
			fields:      map[string]string{"Identifier": "uk.co.graylogic.mdm"},
		},
		{
			name:        "erase",
			req:         EraseDevice{},
			requestType: "EraseDevice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, err := Build(tt.req)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			doc, err := Decode(desc.Payload)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if doc.RequestType() != tt.requestType {
				t.Errorf("RequestType = %q, want %q", doc.RequestType(), tt.requestType)
			}
			for key, want := range tt.fields {
				v, present := doc.Command[key]
				if !present {
					t.Errorf("%s missing from payload", key)
					continue
				}
				if v != want {
					t.Errorf("%s = %v, want %q", key, v, want)
				}
			}
			if len(tt.fields) == 0 && len(doc.Command) != 1 {
				t.Errorf("Command has extra keys: %v", doc.Command)
			}
		})
	}
}

func TestBuild_FreshUUIDs(t *testing.T) {
	a, err := Build(EraseDevice{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	b, err := Build(EraseDevice{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if a.UUID == b.UUID {
		t.Errorf("two builds share UUID %q", a.UUID)
	}
}

func TestBuild_XMLPropertyList(t *testing.T) {
	desc, err := Build(DeviceLock{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	s := string(desc.Payload)
	if !strings.HasPrefix(s, "<?xml") || !strings.Contains(s, "<plist") {
		t.Errorf("payload is not an XML plist: %q", s)
	}
}

func TestParseRequest(t *testing.T) {
	p := Params{Message: "m", PhoneNumber: "p", Footnote: "f", PIN: "1234", Identifier: "id"}
	tests := []struct {
		kind string
		want Request
	}{
		{"DeviceInformation", DeviceInformation{}},
		{"SendMessage", SendMessage{Message: "m", PhoneNumber: "p", PIN: "1234"}},
		{"EnableLostMode", EnableLostMode{Message: "m", PhoneNumber: "p", Footnote: "f"}},
		{"DisableLostMode", DisableLostMode{}},
		{"DeviceLock", DeviceLock{PIN: "1234"}},
		{"RemoveProfile", RemoveProfile{Identifier: "id"}},
		{"EraseDevice", EraseDevice{}},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			got, err := ParseRequest(tt.kind, p)
			if err != nil {
				t.Fatalf("ParseRequest() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseRequest() = %#v, want %#v", got, tt.want)
			}
			if string(got.Kind()) != tt.kind {
				t.Errorf("Kind() = %q, want %q", got.Kind(), tt.kind)
			}
		})
	}

	for _, kind := range []string{"", "Restart", "deviceinformation"} {
		t.Run("unknown "+kind, func(t *testing.T) {
			_, err := ParseRequest(kind, p)
			if !errors.Is(err, ErrUnknownCommandType) {
				t.Errorf("ParseRequest(%q) error = %v, want ErrUnknownCommandType", kind, err)
			}
		})
	}
}

func TestAllKindsParse(t *testing.T) {
	for _, k := range AllKinds() {
		if _, err := ParseRequest(string(k), Params{}); err != nil {
			t.Errorf("ParseRequest(%q) error = %v", k, err)
		}
	}
}

func TestBuild_NilRequest(t *testing.T) {
	if _, err := Build(nil); !errors.Is(err, ErrUnknownCommandType) {
		t.Errorf("Build(nil) error = %v, want ErrUnknownCommandType", err)
	}
}
