package mqtt

import "fmt"

// TopicPrefix is the base for every topic the MDM server publishes.
const TopicPrefix = "graylogic/mdm"

// Topics provides builders for MDM MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.Push("00008030-001A2D3C")
//	// Returns: "graylogic/mdm/push/00008030-001A2D3C"
type Topics struct{}

// Push returns the topic a push gateway subscribes to for wake requests.
//
// Example: graylogic/mdm/push/00008030-001A2D3C
func (Topics) Push(udid string) string {
	return fmt.Sprintf("%s/push/%s", TopicPrefix, udid)
}

// AllPush returns a wildcard matching every wake request.
func (Topics) AllPush() string {
	return TopicPrefix + "/push/+"
}

// Event returns the topic for a lifecycle event about a device.
//
// Example: graylogic/mdm/event/command.sent/00008030-001A2D3C
func (Topics) Event(eventType, udid string) string {
	return fmt.Sprintf("%s/event/%s/%s", TopicPrefix, eventType, udid)
}

// AllEvents returns a wildcard matching every lifecycle event.
func (Topics) AllEvents() string {
	return TopicPrefix + "/event/#"
}

// SystemStatus returns the retained online/offline status topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}
