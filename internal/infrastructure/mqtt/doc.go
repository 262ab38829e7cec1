// Package mqtt provides MQTT connectivity for the MDM server.
//
// The server publishes to two topic trees under graylogic/mdm:
//
//	graylogic/mdm/push/{udid}            wake requests for an external push gateway
//	graylogic/mdm/event/{type}/{udid}    device and command lifecycle events
//	graylogic/mdm/system/status          retained online/offline status (LWT)
//
// Connection management follows the rest of Gray Logic: auto-reconnect
// with backoff, clean sessions, TLS 1.2 minimum when enabled.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(mqtt.Topics{}.Push(udid), wake)
package mqtt
