// Package api implements the HTTP surface of the MDM server.
//
// This package provides:
//   - the two device channels, PUT /mdm/checkin and PUT /mdm/server
//   - the enrollment profile download at GET /enroll/profile
//   - the admin JSON API under /api/v1 for devices, commands and actions
//   - a WebSocket hub streaming device and command events to admin UIs
//   - Prometheus exposition at /metrics/prometheus
//   - the middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Device channels
//
// Device channel bodies are property lists and responses are either empty
// or a command payload. Errors on these routes are plain text, since
// devices never read them.
//
// # Admin API
//
// Admin responses are JSON. Errors use the {status, code, message} shape
// written by writeError. Administrative authentication is not provided;
// deploy the admin API behind an authenticating proxy.
package api
