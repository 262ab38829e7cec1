// Package metrics exposes MDM server counters and gauges to Prometheus.
//
// Counters are fed from the event bus (Metrics implements events.Sink) and
// from the HTTP middleware. Device and queue gauges are refreshed from the
// store when the exposition endpoint is scraped.
package metrics
