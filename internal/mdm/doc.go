// Package mdm implements the device side of the MDM protocol.
//
// Devices talk to two endpoints. The check-in channel carries enrolment
// lifecycle messages (Authenticate, TokenUpdate, CheckOut). The server
// channel is polled after a wake signal: each request may carry the result
// of the previous command and is answered with the next queued command, if
// any.
//
// Check-in decoding is strict and failures are reported. Poll decoding is
// lenient and failures are silently answered with an empty response, since
// an empty response is always safe for the device.
package mdm
