package device

import (
	"context"
	"errors"
	"fmt"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
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

// Registry is the single owner of device records.
//
// It holds no in-memory copy of device state: every call goes straight to
// the Repository, and every read-modify-write is one store transaction.
// Concurrent check-ins and polls for the same device are therefore
// serialised by the store rather than by a lock in this process.
//
// All public methods are safe for concurrent use.
type Registry struct {
	repo   Repository
	logger Logger
}

// NewRegistry creates a new device registry backed by repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Upsert records a message from a device. An unseen UDID creates an
// enrolled record; a known UDID has only the supplied fields overwritten.
// Calling Upsert with empty Fields refreshes liveness only.
func (r *Registry) Upsert(ctx context.Context, udid string, fields Fields) (*Device, error) {
	dev, err := r.repo.Upsert(ctx, udid, fields)
	if err != nil {
		return nil, err
	}
	if !fields.IsEmpty() {
		r.logger.Debug("device record merged", "udid", udid, "status", dev.Status)
	}
	return dev, nil
}

// SetStatus changes a device's enrolment status.
// Returns ErrDeviceNotFound if the UDID is unknown; callers decide whether
// that matters.
func (r *Registry) SetStatus(ctx context.Context, udid string, status Status) error {
	if err := r.repo.SetStatus(ctx, udid, status); err != nil {
		if !errors.Is(err, ErrDeviceNotFound) {
			r.logger.Error("failed to set device status", "udid", udid, "status", status, "error", err)
		}
		return err
	}
	r.logger.Info("device status changed", "udid", udid, "status", status)
	return nil
}

// Get retrieves a device by UDID.
// Returns ErrDeviceNotFound if the device does not exist.
func (r *Registry) Get(ctx context.Context, udid string) (*Device, error) {
	return r.repo.GetByUDID(ctx, udid)
}

// List returns every device, most recently enrolled first.
func (r *Registry) List(ctx context.Context) ([]Device, error) {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	return devices, nil
}

// Count returns the number of devices per status.
func (r *Registry) Count(ctx context.Context) (map[Status]int, error) {
	return r.repo.CountByStatus(ctx)
}
