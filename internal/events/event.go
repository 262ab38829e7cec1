package events

import (
	"time"

	"github.com/nerrad567/gray-logic-mdm/internal/command"
)

// Type names a lifecycle event.
type Type string

// Event types.
const (
	TypeDeviceCheckin    Type = "device.checkin"
	TypeDeviceCheckout   Type = "device.checkout"
	TypeDeviceUnenrolled Type = "device.unenrolled"
	TypeCommandQueued    Type = "command.queued"
	TypeCommandSent      Type = "command.sent"
	TypeCommandResponded Type = "command.responded"
	TypePushSent         Type = "push.sent"
)

// Event is a committed change to a device or command, published after the
// change is durable.
type Event struct {
	Type        Type      `json:"type"`
	DeviceUDID  string    `json:"udid"`
	CommandUUID string    `json:"command_uuid,omitempty"`
	CommandType string    `json:"command_type,omitempty"`
	Status      string    `json:"status,omitempty"`
	MessageType string    `json:"message_type,omitempty"`
	PushMode    string    `json:"push_mode,omitempty"`
	Success     *bool     `json:"success,omitempty"`
	Timestamp   time.Time `json:"timestamp"`

	// Latency is the time since the command's previous transition.
	Latency time.Duration `json:"-"`
}

// CommandEvent converts a command in its current state to an event.
func CommandEvent(cmd command.Command) Event {
	e := Event{
		DeviceUDID:  cmd.DeviceUDID,
		CommandUUID: cmd.UUID,
		CommandType: string(cmd.Type),
		Status:      string(cmd.Status),
	}

	switch cmd.Status {
	case command.StatusPending:
		e.Type = TypeCommandQueued
		e.Timestamp = cmd.CreatedAt
	case command.StatusSent:
		e.Type = TypeCommandSent
		if cmd.SentAt != nil {
			e.Timestamp = *cmd.SentAt
			e.Latency = cmd.SentAt.Sub(cmd.CreatedAt)
		}
	default:
		e.Type = TypeCommandResponded
		if cmd.RespondedAt != nil {
			e.Timestamp = *cmd.RespondedAt
			if cmd.SentAt != nil {
				e.Latency = cmd.RespondedAt.Sub(*cmd.SentAt)
			}
		}
	}
	return e
}

// PushEvent builds the event for a wake request outcome.
func PushEvent(udid, commandUUID, mode string, success bool) Event {
	return Event{
		Type:        TypePushSent,
		DeviceUDID:  udid,
		CommandUUID: commandUUID,
		PushMode:    mode,
		Success:     &success,
	}
}
