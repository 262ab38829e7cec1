package mdm

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-mdm/internal/command"
	"github.com/nerrad567/gray-logic-mdm/internal/device"
	"github.com/nerrad567/gray-logic-mdm/internal/events"
)

// Logger defines the logging interface used by the Service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DeviceStore is the subset of the device registry the protocol needs.
type DeviceStore interface {
	Upsert(ctx context.Context, udid string, fields device.Fields) (*device.Device, error)
	SetStatus(ctx context.Context, udid string, status device.Status) error
}

// CommandQueue is the subset of the command queue the protocol needs.
type CommandQueue interface {
	RecordResponse(ctx context.Context, udid, uuid, reported string, raw []byte) (*command.Command, error)
	Dispatch(ctx context.Context, udid string) (*command.Command, error)
}

// Publisher receives device lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, e events.Event)
}

// Service implements the device side of the protocol: the check-in
// channel and the server (poll) channel.
type Service struct {
	devices  DeviceStore
	commands CommandQueue
	events   Publisher
	logger   Logger
}

// NewService creates a protocol service.
func NewService(devices DeviceStore, commands CommandQueue) *Service {
	return &Service{
		devices:  devices,
		commands: commands,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// SetPublisher sets the destination for check-in events.
func (s *Service) SetPublisher(p Publisher) {
	s.events = p
}

// HandleCheckin processes one check-in message.
//
// The body is decoded before anything is written, so a malformed message
// changes nothing. A CheckOut for an unknown device is accepted.
func (s *Service) HandleCheckin(ctx context.Context, body []byte) (MessageType, error) {
	msg, err := decodeCheckin(body)
	if err != nil {
		return "", err
	}

	mt := MessageType(msg.MessageType)
	s.logger.Info("check-in received", "message_type", mt, "udid", msg.UDID)

	switch mt {
	case MessageAuthenticate:
		if _, err := s.devices.Upsert(ctx, msg.UDID, msg.identityFields()); err != nil {
			return mt, fmt.Errorf("authenticate %s: %w", msg.UDID, err)
		}
		s.publish(ctx, events.TypeDeviceCheckin, msg.UDID, mt)

	case MessageTokenUpdate:
		if _, err := s.devices.Upsert(ctx, msg.UDID, msg.tokenFields()); err != nil {
			return mt, fmt.Errorf("token update %s: %w", msg.UDID, err)
		}
		s.publish(ctx, events.TypeDeviceCheckin, msg.UDID, mt)

	case MessageCheckOut:
		err := s.devices.SetStatus(ctx, msg.UDID, device.StatusUnenrolled)
		switch {
		case errors.Is(err, device.ErrDeviceNotFound):
			s.logger.Warn("check-out from unknown device", "udid", msg.UDID)
		case err != nil:
			return mt, fmt.Errorf("check-out %s: %w", msg.UDID, err)
		}
		s.publish(ctx, events.TypeDeviceCheckout, msg.UDID, mt)

	default:
		s.logger.Warn("unrecognised check-in message type", "message_type", mt, "udid", msg.UDID)
		return mt, fmt.Errorf("%w: %q", ErrUnrecognizedMessageType, msg.MessageType)
	}
	return mt, nil
}

// HandlePoll processes one server channel request and returns the command
// to deliver, or nil when the device has nothing queued.
//
// The device may report the outcome of its previous command in the same
// request; that report is recorded before the next command is chosen and
// only applies to commands sent to the same UDID. An acknowledged
// RemoveProfile leaves the device unenrolled even though the poll itself
// refreshes the record. An undecodable body or one without a UDID yields
// (nil, nil) and no writes.
func (s *Service) HandlePoll(ctx context.Context, body []byte) (*command.Command, error) {
	msg, ok := decodePoll(body)
	if !ok || msg.UDID == "" {
		s.logger.Debug("ignoring undecodable poll", "bytes", len(body))
		return nil, nil //nolint:nilnil // nothing to deliver is not an error
	}

	s.logger.Debug("poll received",
		"udid", msg.UDID, "status", msg.Status, "command_uuid", msg.CommandUUID)

	var recorded *command.Command
	if msg.CommandUUID != "" && msg.Status != "" {
		var err error
		recorded, err = s.commands.RecordResponse(ctx, msg.UDID, msg.CommandUUID, msg.Status, body)
		if err != nil {
			return nil, fmt.Errorf("recording response %s: %w", msg.CommandUUID, err)
		}
	}

	if _, err := s.devices.Upsert(ctx, msg.UDID, device.Fields{}); err != nil {
		return nil, fmt.Errorf("refreshing %s: %w", msg.UDID, err)
	}

	if removedProfile(recorded) {
		if err := s.devices.SetStatus(ctx, msg.UDID, device.StatusUnenrolled); err != nil {
			return nil, fmt.Errorf("unenrolling %s: %w", msg.UDID, err)
		}
		s.logger.Info("profile removal acknowledged", "udid", msg.UDID, "command_uuid", recorded.UUID)
		s.publish(ctx, events.TypeDeviceUnenrolled, msg.UDID, "")
	}

	cmd, err := s.commands.Dispatch(ctx, msg.UDID)
	if errors.Is(err, command.ErrNoPendingCommand) {
		return nil, nil //nolint:nilnil // nothing to deliver is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("dispatching to %s: %w", msg.UDID, err)
	}
	return cmd, nil
}

func removedProfile(cmd *command.Command) bool {
	return cmd != nil && cmd.Type == command.KindRemoveProfile && cmd.Status == command.StatusAcknowledged
}

func (s *Service) publish(ctx context.Context, t events.Type, udid string, mt MessageType) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, events.Event{Type: t, DeviceUDID: udid, MessageType: string(mt)})
}
