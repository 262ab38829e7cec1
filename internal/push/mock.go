package push

import (
	"context"

	"github.com/nerrad567/gray-logic-mdm/internal/infrastructure/logging"
)

// MockMessage is returned in every mock Result.
const MockMessage = "Mock push notification sent. Device will not actually wake up."

// MockNotifier logs wake requests instead of sending them. It is the
// default mode, for development without an MDM push certificate.
type MockNotifier struct {
	defaultTopic string
	logger       Logger
}

// NewMockNotifier creates a mock notifier.
func NewMockNotifier(defaultTopic string, logger Logger) *MockNotifier {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MockNotifier{defaultTopic: defaultTopic, logger: logger}
}

// Send logs the target and reports success. It never fails.
func (m *MockNotifier) Send(_ context.Context, t Target) (Result, error) {
	m.logger.Info("mock push notification",
		"udid", t.UDID,
		"push_token", logging.Redact(t.PushToken),
		"push_magic", logging.Redact(t.PushMagic),
		"topic", resolveTopic(t, m.defaultTopic),
	)
	return Result{Success: true, Mock: true, Message: MockMessage}, nil
}

// Mode returns "mock".
func (m *MockNotifier) Mode() string { return "mock" }
