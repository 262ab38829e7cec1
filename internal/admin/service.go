package admin

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-mdm/internal/audit"
	"github.com/nerrad567/gray-logic-mdm/internal/command"
	"github.com/nerrad567/gray-logic-mdm/internal/device"
	"github.com/nerrad567/gray-logic-mdm/internal/events"
	"github.com/nerrad567/gray-logic-mdm/internal/push"
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

// DeviceStore is the subset of the device registry used by actions.
type DeviceStore interface {
	Get(ctx context.Context, udid string) (*device.Device, error)
	SetStatus(ctx context.Context, udid string, status device.Status) error
}

// CommandQueue is the subset of the command queue used by actions.
type CommandQueue interface {
	Enqueue(ctx context.Context, udid string, req command.Request) (*command.Command, error)
}

// AuditLog records completed actions.
type AuditLog interface {
	Create(ctx context.Context, e *audit.Entry) error
}

// Publisher receives push and unenrolment events.
type Publisher interface {
	Publish(ctx context.Context, e events.Event)
}

// Config holds the identifiers actions fall back on.
type Config struct {
	// DefaultTopic is used for devices that never reported a topic.
	DefaultTopic string

	// ProfileIdentifier is the enrollment profile removed on unenrol.
	ProfileIdentifier string
}

// Result is the outcome of an action. The command is queued whenever a
// Result is returned; Push reports whether the wake signal went out.
type Result struct {
	Success     bool        `json:"success"`
	CommandUUID string      `json:"command_uuid"`
	Push        push.Result `json:"apns"`
	Message     string      `json:"message"`
}

// Service implements administrative actions. Each action checks the
// device, queues one command, wakes the device and records the outcome.
type Service struct {
	devices  DeviceStore
	commands CommandQueue
	notifier push.Notifier
	audit    AuditLog
	events   Publisher
	cfg      Config
	logger   Logger
}

// NewService creates an admin service.
func NewService(devices DeviceStore, commands CommandQueue, notifier push.Notifier, cfg Config) *Service {
	return &Service{
		devices:  devices,
		commands: commands,
		notifier: notifier,
		cfg:      cfg,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// SetAuditLog sets where completed actions are recorded.
func (s *Service) SetAuditLog(a AuditLog) {
	s.audit = a
}

// SetPublisher sets the destination for push events.
func (s *Service) SetPublisher(p Publisher) {
	s.events = p
}

// action describes one admin operation.
type action struct {
	name            string
	message         string
	requireEnrolled bool
	unenroll        bool
}

var (
	actNotify = action{
		name:            audit.ActionNotify,
		message:         "Push notification command queued. Device will receive it on next check-in.",
		requireEnrolled: true,
	}
	actEnableLostMode = action{
		name:            audit.ActionEnableLostMode,
		message:         "Lost mode command queued.",
		requireEnrolled: true,
	}
	actDisableLostMode = action{
		name:    audit.ActionDisableLostMode,
		message: "Disable lost mode command queued.",
	}
	actUnenroll = action{
		name:            audit.ActionUnenroll,
		message:         "Unenroll command queued. Device will remove MDM profile on next check-in.",
		requireEnrolled: true,
		unenroll:        true,
	}
	actQuery = action{
		name:            audit.ActionQuery,
		message:         "Device information query queued.",
		requireEnrolled: true,
	}
	actLock = action{
		name:            audit.ActionLock,
		message:         "Device lock command queued.",
		requireEnrolled: true,
	}
	actErase = action{
		name:            audit.ActionErase,
		message:         "Erase command queued.",
		requireEnrolled: true,
	}
)

// Notify shows a message on the device's lock screen.
func (s *Service) Notify(ctx context.Context, udid string, req command.SendMessage) (*Result, error) {
	return s.run(ctx, udid, actNotify, req)
}

// EnableLostMode locks the device into Lost Mode.
func (s *Service) EnableLostMode(ctx context.Context, udid string, req command.EnableLostMode) (*Result, error) {
	return s.run(ctx, udid, actEnableLostMode, req)
}

// DisableLostMode releases Lost Mode. It is allowed for unenrolled devices
// so a device that checked out while lost can still be released.
func (s *Service) DisableLostMode(ctx context.Context, udid string) (*Result, error) {
	return s.run(ctx, udid, actDisableLostMode, command.DisableLostMode{})
}

// Unenroll queues removal of the enrollment profile and marks the device
// unenrolled straight away.
func (s *Service) Unenroll(ctx context.Context, udid string) (*Result, error) {
	return s.run(ctx, udid, actUnenroll, command.RemoveProfile{Identifier: s.cfg.ProfileIdentifier})
}

// QueryDeviceInfo asks the device for its standard attributes.
func (s *Service) QueryDeviceInfo(ctx context.Context, udid string) (*Result, error) {
	return s.run(ctx, udid, actQuery, command.DeviceInformation{})
}

// Lock locks the device, optionally with a PIN.
func (s *Service) Lock(ctx context.Context, udid, pin string) (*Result, error) {
	return s.run(ctx, udid, actLock, command.DeviceLock{PIN: pin})
}

// Erase wipes the device.
func (s *Service) Erase(ctx context.Context, udid string) (*Result, error) {
	return s.run(ctx, udid, actErase, command.EraseDevice{})
}

// Execute queues any supported command kind by name.
// Unknown kinds return command.ErrUnknownCommandType.
func (s *Service) Execute(ctx context.Context, udid, kind string, params command.Params) (*Result, error) {
	req, err := command.ParseRequest(kind, params)
	if err != nil {
		return nil, err
	}
	if rp, ok := req.(command.RemoveProfile); ok && rp.Identifier == "" {
		req = command.RemoveProfile{Identifier: s.cfg.ProfileIdentifier}
	}
	return s.run(ctx, udid, actionFor(req.Kind()), req)
}

func actionFor(k command.Kind) action {
	switch k {
	case command.KindSendMessage:
		return actNotify
	case command.KindEnableLostMode:
		return actEnableLostMode
	case command.KindDisableLostMode:
		return actDisableLostMode
	case command.KindRemoveProfile:
		return actUnenroll
	case command.KindDeviceInformation:
		return actQuery
	case command.KindDeviceLock:
		return actLock
	case command.KindEraseDevice:
		return actErase
	}
	return action{name: audit.ActionCommand, message: "Command queued.", requireEnrolled: true}
}

// run is the shared action path: check, enqueue, push, then bookkeeping.
// The push happens only after the command is committed, and a failed push
// is reported in the Result without undoing the enqueue.
func (s *Service) run(ctx context.Context, udid string, act action, req command.Request) (*Result, error) {
	dev, err := s.devices.Get(ctx, udid)
	if err != nil {
		return nil, err
	}
	if act.requireEnrolled && !dev.Enrolled() {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotEnrolled, udid)
	}

	cmd, err := s.commands.Enqueue(ctx, udid, req)
	if err != nil {
		return nil, fmt.Errorf("queueing %s: %w", req.Kind(), err)
	}

	outcome := s.wake(ctx, dev, cmd.UUID)

	if act.unenroll {
		if err := s.devices.SetStatus(ctx, udid, device.StatusUnenrolled); err != nil {
			return nil, fmt.Errorf("marking %s unenrolled: %w", udid, err)
		}
		s.publish(ctx, events.Event{Type: events.TypeDeviceUnenrolled, DeviceUDID: udid})
	}

	s.record(ctx, act, udid, cmd, outcome)

	s.logger.Info("admin action queued",
		"action", act.name,
		"udid", udid,
		"command_uuid", cmd.UUID,
		"push_success", outcome.Success,
	)

	return &Result{
		Success:     true,
		CommandUUID: cmd.UUID,
		Push:        outcome,
		Message:     act.message,
	}, nil
}

func (s *Service) wake(ctx context.Context, dev *device.Device, commandUUID string) push.Result {
	target := push.Target{
		UDID:      dev.UDID,
		PushToken: device.Deref(dev.PushToken),
		PushMagic: device.Deref(dev.PushMagic),
		Topic:     device.Deref(dev.Topic),
	}
	if target.Topic == "" {
		target.Topic = s.cfg.DefaultTopic
	}

	res, err := s.notifier.Send(ctx, target)
	if err != nil {
		s.logger.Warn("wake signal failed, command stays queued",
			"udid", dev.UDID, "command_uuid", commandUUID, "error", err)
		res = push.Result{Success: false, Error: err.Error()}
	}

	s.publish(ctx, events.PushEvent(dev.UDID, commandUUID, s.notifier.Mode(), res.Success))
	return res
}

func (s *Service) record(ctx context.Context, act action, udid string, cmd *command.Command, outcome push.Result) {
	if s.audit == nil {
		return
	}
	details := map[string]any{
		"command_uuid": cmd.UUID,
		"command_type": string(cmd.Type),
		"push_mode":    s.notifier.Mode(),
		"push_success": outcome.Success,
	}
	if outcome.Error != "" {
		details["push_error"] = outcome.Error
	}

	err := s.audit.Create(ctx, &audit.Entry{
		Action:     act.name,
		EntityType: audit.EntityDevice,
		EntityID:   udid,
		Source:     audit.SourceAPI,
		Details:    details,
	})
	if err != nil {
		s.logger.Error("failed to write audit entry", "action", act.name, "udid", udid, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if s.events != nil {
		s.events.Publish(ctx, e)
	}
}
