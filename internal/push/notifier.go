package push

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-mdm/internal/infrastructure/config"
)

// Target addresses a wake signal to one device.
type Target struct {
	UDID string

	// PushToken is the hex-encoded APNs device token.
	PushToken string
	PushMagic string

	// Topic is the push certificate topic. Empty uses the notifier's
	// default topic.
	Topic string
}

func (t Target) hasCredentials() bool {
	return t.PushToken != "" && t.PushMagic != ""
}

// Result describes the outcome of a Send.
type Result struct {
	Success bool   `json:"success"`
	Mock    bool   `json:"mock,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`

	// ID is the transport's identifier for the notification, if any.
	ID string `json:"id,omitempty"`
}

// Notifier delivers a wake signal prompting a device to poll.
//
// Callers must only call Send after the command it announces has been
// committed, so a failed push never loses a command: the device collects
// it on its next unprompted poll.
type Notifier interface {
	// Send delivers a wake signal carrying the push magic.
	// Failures wrap ErrDeliveryFailed.
	Send(ctx context.Context, target Target) (Result, error)

	// Mode returns the configured push mode name.
	Mode() string
}

// Logger defines the logging interface used by notifiers.
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

// New builds the Notifier selected by cfg.Mode. pub is required for mqtt
// mode and ignored otherwise.
func New(cfg config.PushConfig, defaultTopic string, pub JSONPublisher, logger Logger) (Notifier, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	switch cfg.Mode {
	case config.PushModeMock, "":
		return NewMockNotifier(defaultTopic, logger), nil
	case config.PushModeAPNs:
		return NewAPNsNotifier(cfg.APNs, defaultTopic, logger)
	case config.PushModeMQTT:
		if pub == nil {
			return nil, fmt.Errorf("%w: mqtt mode needs an mqtt connection", ErrInvalidMode)
		}
		return NewMQTTNotifier(pub, defaultTopic, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, cfg.Mode)
	}
}

func resolveTopic(t Target, defaultTopic string) string {
	if t.Topic != "" {
		return t.Topic
	}
	return defaultTopic
}
