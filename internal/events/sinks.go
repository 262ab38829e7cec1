package events

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-mdm/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-mdm/internal/infrastructure/mqtt"
)

// JSONPublisher is the subset of the MQTT client used by MQTTSink.
type JSONPublisher interface {
	PublishJSON(topic string, v any) error
}

// MQTTSink republishes events to graylogic/mdm/event/{type}/{udid}.
type MQTTSink struct {
	pub    JSONPublisher
	logger Logger
}

// NewMQTTSink creates a sink publishing through pub.
func NewMQTTSink(pub JSONPublisher, logger Logger) *MQTTSink {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTTSink{pub: pub, logger: logger}
}

// Publish sends e to the broker. Failures are logged and dropped.
func (s *MQTTSink) Publish(_ context.Context, e Event) {
	topic := mqtt.Topics{}.Event(string(e.Type), e.DeviceUDID)
	if err := s.pub.PublishJSON(topic, e); err != nil {
		s.logger.Warn("failed to publish event to mqtt", "topic", topic, "error", err)
	}
}

// PointWriter is the subset of the InfluxDB client used by InfluxSink.
type PointWriter interface {
	WriteCommand(p influxdb.CommandPoint)
	WriteCheckin(udid, messageType string, at time.Time)
	WritePush(udid, mode string, success bool, at time.Time)
}

// InfluxSink records command, check-in and push events as time series.
type InfluxSink struct {
	w PointWriter
}

// NewInfluxSink creates a sink writing through w.
func NewInfluxSink(w PointWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// Publish writes the point for e, if e has one.
func (s *InfluxSink) Publish(_ context.Context, e Event) {
	switch e.Type {
	case TypeCommandQueued, TypeCommandSent, TypeCommandResponded:
		s.w.WriteCommand(influxdb.CommandPoint{
			DeviceUDID:  e.DeviceUDID,
			CommandUUID: e.CommandUUID,
			Kind:        e.CommandType,
			Status:      e.Status,
			Latency:     e.Latency,
			At:          e.Timestamp,
		})
	case TypeDeviceCheckin, TypeDeviceCheckout:
		s.w.WriteCheckin(e.DeviceUDID, e.MessageType, e.Timestamp)
	case TypePushSent:
		s.w.WritePush(e.DeviceUDID, e.PushMode, e.Success != nil && *e.Success, e.Timestamp)
	}
}
