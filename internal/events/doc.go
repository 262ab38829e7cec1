// Package events distributes device and command lifecycle events to
// observers outside the protocol path.
//
// Producers (the check-in and poll handlers, the command queue and the
// admin actions) publish to a Bus after their change has committed. The
// bus hands each event to every registered Sink from one goroutine:
//
//	bus := events.NewBus(0)
//	bus.Add(hub)                                  // websocket clients
//	bus.Add(events.NewMQTTSink(mqttClient, log))  // graylogic/mdm/event/...
//	bus.Add(events.NewInfluxSink(influxClient))   // time series
//	bus.Add(metrics)                              // prometheus counters
//	bus.Start(ctx)
//	defer bus.Close()
//
// Delivery is best effort. A full buffer drops events rather than block a
// device request.
package events
