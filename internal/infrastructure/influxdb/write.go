package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the MDM server.
const (
	MeasurementCommand = "mdm_command"
	MeasurementCheckin = "mdm_checkin"
	MeasurementPush    = "mdm_push"
	MeasurementDevices = "mdm_devices"
)

// CommandPoint describes one command lifecycle transition.
type CommandPoint struct {
	DeviceUDID  string
	CommandUUID string
	Kind        string
	Status      string

	// Latency is the time since the previous transition (queued → sent,
	// sent → responded). Zero when not applicable.
	Latency time.Duration
	At      time.Time
}

// WriteCommand records a command transition. Non-blocking.
func (c *Client) WriteCommand(p CommandPoint) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(commandPoint(p))
}

// WriteCheckin records a check-in channel message. Non-blocking.
func (c *Client) WriteCheckin(udid, messageType string, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(checkinPoint(udid, messageType, at))
}

// WritePush records the outcome of a wake request. Non-blocking.
func (c *Client) WritePush(udid, mode string, success bool, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(pushPoint(udid, mode, success, at))
}

// WriteDeviceCounts records the number of devices per enrolment status.
func (c *Client) WriteDeviceCounts(counts map[string]int, at time.Time) {
	if !c.IsConnected() {
		return
	}
	fields := make(map[string]interface{}, len(counts))
	for status, n := range counts {
		fields[status] = n
	}
	c.writeAPI.WritePoint(write.NewPoint(MeasurementDevices, nil, fields, at))
}

// WritePoint writes a custom point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, at))
}

// The UDID and command UUID are fields, not tags: both are unbounded and
// would explode series cardinality.

func commandPoint(p CommandPoint) *write.Point {
	fields := map[string]interface{}{
		"udid":         p.DeviceUDID,
		"command_uuid": p.CommandUUID,
		"count":        1,
	}
	if p.Latency > 0 {
		fields["latency_ms"] = p.Latency.Milliseconds()
	}
	return write.NewPoint(MeasurementCommand,
		map[string]string{"command_type": p.Kind, "status": p.Status},
		fields, p.At)
}

func checkinPoint(udid, messageType string, at time.Time) *write.Point {
	return write.NewPoint(MeasurementCheckin,
		map[string]string{"message_type": messageType},
		map[string]interface{}{"udid": udid, "count": 1},
		at)
}

func pushPoint(udid, mode string, success bool, at time.Time) *write.Point {
	return write.NewPoint(MeasurementPush,
		map[string]string{"mode": mode},
		map[string]interface{}{"udid": udid, "success": success},
		at)
}
