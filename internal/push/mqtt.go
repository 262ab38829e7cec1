package push

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-mdm/internal/infrastructure/mqtt"
)

// JSONPublisher is the subset of the MQTT client used by MQTTNotifier.
type JSONPublisher interface {
	PublishJSON(topic string, v any) error
}

// WakeRequest is published for an external push gateway holding the APNs
// certificate.
type WakeRequest struct {
	UDID        string `json:"udid"`
	PushToken   string `json:"push_token"`
	PushMagic   string `json:"push_magic"`
	Topic       string `json:"topic"`
	RequestedAt string `json:"requested_at"`
}

// MQTTNotifier relays wake signals over MQTT to graylogic/mdm/push/{udid}.
// Success means the broker accepted the request, not that the device woke.
type MQTTNotifier struct {
	pub          JSONPublisher
	defaultTopic string
	logger       Logger
	now          func() time.Time
}

// NewMQTTNotifier creates a relay notifier.
func NewMQTTNotifier(pub JSONPublisher, defaultTopic string, logger Logger) *MQTTNotifier {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTTNotifier{pub: pub, defaultTopic: defaultTopic, logger: logger, now: time.Now}
}

// Send publishes a WakeRequest.
func (n *MQTTNotifier) Send(_ context.Context, t Target) (Result, error) {
	if !t.hasCredentials() {
		return Result{}, fmt.Errorf("%w: %w: %s", ErrDeliveryFailed, ErrMissingCredentials, t.UDID)
	}

	topic := mqtt.Topics{}.Push(t.UDID)
	req := WakeRequest{
		UDID:        t.UDID,
		PushToken:   t.PushToken,
		PushMagic:   t.PushMagic,
		Topic:       resolveTopic(t, n.defaultTopic),
		RequestedAt: n.now().UTC().Format(time.RFC3339),
	}
	if err := n.pub.PublishJSON(topic, req); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	n.logger.Debug("wake request relayed", "udid", t.UDID, "mqtt_topic", topic)
	return Result{Success: true, Message: "Wake request relayed to push gateway."}, nil
}

// Mode returns "mqtt".
func (n *MQTTNotifier) Mode() string { return "mqtt" }
