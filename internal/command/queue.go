package command

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Logger defines the logging interface used by the Queue.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer is told about every committed command transition. It runs
// after the transaction and cannot affect its outcome.
type Observer interface {
	CommandChanged(ctx context.Context, cmd Command)
}

// Queue owns the per-device command queues and their status machine.
//
// Commands move pending → sent → final. Each transition is a single
// guarded write, so two polls racing for the same device never both
// receive the same command.
type Queue struct {
	repo     Repository
	logger   Logger
	observer Observer
	now      func() time.Time
}

// NewQueue creates a command queue backed by repo.
func NewQueue(repo Repository) *Queue {
	return &Queue{
		repo:   repo,
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the queue.
func (q *Queue) SetLogger(logger Logger) {
	q.logger = logger
}

// SetObserver registers an observer for committed transitions.
func (q *Queue) SetObserver(o Observer) {
	q.observer = o
}

// Enqueue builds req and persists it as a pending command for udid.
// It does not wake the device.
func (q *Queue) Enqueue(ctx context.Context, udid string, req Request) (*Command, error) {
	desc, err := Build(req)
	if err != nil {
		return nil, err
	}

	cmd := &Command{
		UUID:       desc.UUID,
		DeviceUDID: udid,
		Type:       desc.Kind,
		Payload:    string(desc.Payload),
		Status:     StatusPending,
		CreatedAt:  q.now().UTC(),
	}
	if err := q.repo.Create(ctx, cmd); err != nil {
		return nil, fmt.Errorf("enqueueing %s: %w", desc.Kind, err)
	}

	q.logger.Info("command queued", "udid", udid, "command_uuid", cmd.UUID, "type", cmd.Type)
	q.notify(ctx, *cmd)
	return cmd, nil
}

// NextPending returns the oldest pending command for udid without
// changing it. Returns ErrCommandNotFound when the queue is empty.
func (q *Queue) NextPending(ctx context.Context, udid string) (*Command, error) {
	return q.repo.NextPending(ctx, udid)
}

// Dispatch claims the oldest pending command for udid and marks it sent.
// Returns ErrNoPendingCommand when the queue is empty.
func (q *Queue) Dispatch(ctx context.Context, udid string) (*Command, error) {
	cmd, err := q.repo.DispatchNext(ctx, udid, q.now())
	if err != nil {
		if !errors.Is(err, ErrNoPendingCommand) {
			q.logger.Error("failed to dispatch command", "udid", udid, "error", err)
		}
		return nil, err
	}

	q.logger.Info("command dispatched", "udid", udid, "command_uuid", cmd.UUID, "type", cmd.Type)
	q.notify(ctx, *cmd)
	return cmd, nil
}

// RecordResponse stores udid's reported outcome for a command and returns
// the updated command. The reported status is mapped through
// StatusFromReport and raw is kept as the command result.
//
// A report that does not apply returns (nil, nil): an unknown UUID, a
// command owned by another device, one not yet sent, or one that already
// has a final status. Devices may echo stale identifiers and that must
// not fail their poll.
func (q *Queue) RecordResponse(ctx context.Context, udid, uuid, reported string, raw []byte) (*Command, error) {
	status := StatusFromReport(reported)

	updated, err := q.repo.RecordResponse(ctx, udid, uuid, status, string(raw), q.now())
	if err != nil {
		return nil, err
	}
	if !updated {
		q.logger.Warn("response for unknown, foreign or completed command ignored",
			"udid", udid, "command_uuid", uuid, "reported", reported)
		return nil, nil //nolint:nilnil // an ignored report is not an error
	}

	q.logger.Info("command response recorded", "udid", udid, "command_uuid", uuid, "status", status)
	cmd, err := q.repo.GetByUUID(ctx, uuid)
	if err != nil {
		return nil, fmt.Errorf("reloading command %s: %w", uuid, err)
	}
	q.notify(ctx, *cmd)
	return cmd, nil
}

// Get retrieves a command by UUID.
func (q *Queue) Get(ctx context.Context, uuid string) (*Command, error) {
	return q.repo.GetByUUID(ctx, uuid)
}

// ListForDevice returns a device's commands, newest first.
func (q *Queue) ListForDevice(ctx context.Context, udid string) ([]Command, error) {
	commands, err := q.repo.ListForDevice(ctx, udid)
	if err != nil {
		return nil, fmt.Errorf("listing commands: %w", err)
	}
	return commands, nil
}

// Count returns the number of commands per status.
func (q *Queue) Count(ctx context.Context) (map[Status]int, error) {
	return q.repo.CountByStatus(ctx)
}

func (q *Queue) notify(ctx context.Context, cmd Command) {
	if q.observer != nil {
		q.observer.CommandChanged(ctx, cmd)
	}
}
